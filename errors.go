package redscript

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUnknownScript is returned by Registry.Run when no script has the given name.
	ErrUnknownScript = errors.New("redscript: unknown script")
	// ErrNumKeys is returned by RunPositional when numKeys does not fit params.
	ErrNumKeys = errors.New("redscript: numKeys out of range")
)

// Server replies that mean the script itself is at fault.
// "user_script:N:" is how Redis 7+ reports compile and runtime faults.
var userErrorRe = regexp.MustCompile(`^ERR (Error (compiling|running)|user_script:\d+:)`)

const noScriptPrefix = "NOSCRIPT"

// UserError is a script authorship fault: the body failed to compile, raised at
// runtime, or rejected its arguments. Retrying will not help; fix the script or
// the input. Err is the original server reply.
type UserError struct {
	Script string // registry name; "" for anonymous scripts
	Err    error
}

func (e *UserError) Error() string {
	if e.Script == "" {
		return "redscript: user error: " + e.Err.Error()
	}
	return fmt.Sprintf("redscript: user error in %q: %v", e.Script, e.Err)
}

func (e *UserError) Unwrap() error { return e.Err }

// IsUserError reports whether err (or anything it wraps) is a *UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// serverReply returns the reply text when err is an error reply sent by Redis.
// Transport errors, context errors and client-side errors are not replies.
func serverReply(err error) (string, bool) {
	var rerr redis.Error
	if err == nil || errors.Is(err, redis.Nil) || !errors.As(err, &rerr) {
		return "", false
	}
	return rerr.Error(), true
}

func isNoScript(err error) bool {
	msg, ok := serverReply(err)
	return ok && strings.HasPrefix(msg, noScriptPrefix)
}

// classify is the only place that inspects reply text for fault attribution.
// Non-matching errors (including NOSCRIPT) are returned unchanged.
func classify(name string, err error) error {
	msg, ok := serverReply(err)
	if !ok || !userErrorRe.MatchString(msg) {
		return err
	}
	return &UserError{Script: name, Err: err}
}

// ConnError is one connection's failure inside EnsureLoaded.
type ConnError struct {
	Index int // position of the connection in the EnsureLoaded call
	Err   error
}

func (e ConnError) Error() string {
	return fmt.Sprintf("conn %d: %v", e.Index, e.Err)
}

func (e ConnError) Unwrap() error { return e.Err }

// PrimeError aggregates every failed connection of an EnsureLoaded call.
type PrimeError struct {
	Failures []ConnError
}

func (e *PrimeError) Error() string {
	switch len(e.Failures) {
	case 0:
		return "redscript: prime: unknown error"
	case 1:
		return "redscript: prime failed: " + e.Failures[0].Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("redscript: prime failed on %d connections: %s",
		len(e.Failures), strings.Join(parts, "; "))
}

func (e *PrimeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
