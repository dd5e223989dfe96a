package redscript

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Evaler is the part of a Redis connection a Script needs.
// *redis.Client, *redis.ClusterClient, *redis.Ring and redis.UniversalClient
// satisfy it. A redis.Pipeliner does too, but its replies arrive on Exec, so
// the NOSCRIPT fallback cannot happen inside a pipeline.
//
// The backend must add a script to its cache when it runs it with EVAL.
// Redis does; the fallback relies on it and never sends SCRIPT LOAD.
type Evaler interface {
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Script is an immutable Lua body with its precomputed digest.
// Safe for concurrent use; it holds no per-call state.
type Script struct {
	name  string
	body  string
	sha   string
	hooks Hooks
}

// NewScript returns an anonymous script for body.
func NewScript(body string) *Script {
	return newScript("", body, nil)
}

func newScript(name, body string, hooks Hooks) *Script {
	return &Script{
		name:  name,
		body:  body,
		sha:   Digest(body),
		hooks: coalesce[Hooks](hooks, NopHooks{}),
	}
}

// Name is the registry name, or "" for scripts built with NewScript.
func (s *Script) Name() string { return s.name }

// Body returns the Lua source.
func (s *Script) Body() string { return s.body }

// Hash returns the SHA-1 hex digest of Body.
func (s *Script) Hash() string { return s.sha }

// Run executes the script by digest and, if the server does not know it,
// once more by body. Errors come back classified: *UserError for compile or
// runtime faults in the script, anything else unchanged.
//
// A nil reply (Lua nil/false) surfaces as redis.Nil, as with any go-redis command.
func (s *Script) Run(ctx context.Context, c Evaler, keys []string, args ...any) (any, error) {
	v, err := c.EvalSha(ctx, s.sha, keys, args...).Result()
	if isNoScript(err) {
		s.hooks.ScriptMiss(s.name, s.sha)
		v, err = c.Eval(ctx, s.body, keys, args...).Result()
	}
	if err != nil {
		err = classify(s.name, err)
		if ue, ok := err.(*UserError); ok {
			s.hooks.UserScriptError(s.name, s.sha, ue.Err)
		}
		return v, err
	}
	return v, nil
}

// RunPositional is Run with keys and args merged into one list, EVAL style:
// the first numKeys params are keys, the rest are args.
func (s *Script) RunPositional(ctx context.Context, c Evaler, numKeys int, params ...any) (any, error) {
	if numKeys < 0 || numKeys > len(params) {
		return nil, fmt.Errorf("%w: %d keys, %d params", ErrNumKeys, numKeys, len(params))
	}
	keys := make([]string, numKeys)
	for i, p := range params[:numKeys] {
		keys[i] = keyString(p)
	}
	return s.Run(ctx, c, keys, params[numKeys:]...)
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case []byte:
		return string(k)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(v)
	}
}
