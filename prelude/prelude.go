// Package prelude bundles small coordination scripts and typed wrappers for them.
//
// The scripts run atomically on the server (Redis serializes script execution),
// which is the only mutual exclusion they rely on.
//
//	relock       acquire a lock, or extend it when the token matches
//	incrbyuntil  add to a counter, clamped at max
//	decrbyuntil  subtract from a counter, clamped at min
//	deleq        delete a key only if it holds an expected value
//
// Counters are Lua numbers (doubles) on the server and come back as truncated
// integers, so the Go side uses int64.
package prelude

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/redscript"
)

//go:embed *.lua
var scripts embed.FS

// Names registered by Install.
const (
	Relock      = "relock"
	IncrByUntil = "incrbyuntil"
	DecrByUntil = "decrbyuntil"
	DelEq       = "deleq"
)

// ErrTTL is returned by Relock for ttls below one second.
var ErrTTL = errors.New("prelude: relock ttl must be at least 1s")

// Prelude holds the installed scripts.
type Prelude struct {
	relock, incr, decr, deleq *redscript.Script
}

// Install registers the bundled scripts into reg, overwriting same-named entries,
// and returns handles for calling them.
func Install(reg *redscript.Registry) (*Prelude, error) {
	p := &Prelude{}
	for name, dst := range map[string]**redscript.Script{
		Relock:      &p.relock,
		IncrByUntil: &p.incr,
		DecrByUntil: &p.decr,
		DelEq:       &p.deleq,
	} {
		f, err := scripts.Open(name + ".lua")
		if err != nil {
			return nil, fmt.Errorf("prelude: %w", err)
		}
		err = reg.Set(name, f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		*dst, _ = reg.Get(name)
	}
	return p, nil
}

// Body returns the embedded source of a bundled script.
func Body(name string) (string, error) {
	b, err := scripts.ReadFile(name + ".lua")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Relock sets key to token with ttl when key is absent, and refreshes the ttl
// when key already holds token. It reports false, without touching the key,
// when another token holds it. ttl is rounded down to whole seconds
// (1500ms becomes 1s) because SETEX/EXPIRE take seconds.
func (p *Prelude) Relock(ctx context.Context, c redscript.Evaler, key string, ttl time.Duration, token string) (bool, error) {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		return false, ErrTTL
	}
	_, err := p.relock.Run(ctx, c, []string{key}, secs, token)
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IncrByUntil adds increment to the counter at key (def when absent) without
// passing max. A value already at or above max is returned unchanged.
// def > max is rejected by the script with a *redscript.UserError.
func (p *Prelude) IncrByUntil(ctx context.Context, c redscript.Evaler, key string, increment, max, def int64) (int64, error) {
	return runInt(ctx, p.incr, c, key, increment, max, def)
}

// DecrByUntil is IncrByUntil mirrored: subtracts decrement without passing min.
// def < min is rejected with a *redscript.UserError.
func (p *Prelude) DecrByUntil(ctx context.Context, c redscript.Evaler, key string, decrement, min, def int64) (int64, error) {
	return runInt(ctx, p.decr, c, key, decrement, min, def)
}

// DelEq deletes key if it holds expected and returns the number of keys removed (0 or 1).
func (p *Prelude) DelEq(ctx context.Context, c redscript.Evaler, key, expected string) (int64, error) {
	v, err := p.deleq.Run(ctx, c, []string{key}, expected)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func runInt(ctx context.Context, s *redscript.Script, c redscript.Evaler, key string, args ...any) (int64, error) {
	v, err := s.Run(ctx, c, []string{key}, args...)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	n, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("prelude: unexpected reply %T(%v)", v, v)
	}
	return n, nil
}
