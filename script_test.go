package redscript

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// replyErr is an error reply sent by the server (implements redis.Error).
type replyErr string

func (e replyErr) Error() string { return string(e) }
func (replyErr) RedisError()     {}

type call struct {
	cmd  string // "evalsha" | "eval"
	head string // sha or body
	keys []string
	args []any
}

// fakeRedis is a scripted Evaler. Unless overridden, it behaves like a server
// script cache: EVALSHA misses until EVAL has seen the body.
type fakeRedis struct {
	mu     sync.Mutex
	calls  []call
	cache  map[string]bool
	shaErr error
	evErr  error
	reply  any
}

var _ Evaler = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis { return &fakeRedis{cache: map[string]bool{}, reply: "OK"} }

func (f *fakeRedis) EvalSha(_ context.Context, sha string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"evalsha", sha, keys, args})
	if f.shaErr != nil {
		return redis.NewCmdResult(nil, f.shaErr)
	}
	if !f.cache[sha] {
		return redis.NewCmdResult(nil, replyErr("NOSCRIPT No matching script. Please use EVAL."))
	}
	return redis.NewCmdResult(f.reply, nil)
}

func (f *fakeRedis) Eval(_ context.Context, body string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{"eval", body, keys, args})
	if f.evErr != nil {
		return redis.NewCmdResult(nil, f.evErr)
	}
	f.cache[Digest(body)] = true
	return redis.NewCmdResult(f.reply, nil)
}

func (f *fakeRedis) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.cmd
	}
	return out
}

type recHooks struct {
	NopHooks
	mu     sync.Mutex
	misses int
	user   []error
}

func (h *recHooks) ScriptMiss(string, string) {
	h.mu.Lock()
	h.misses++
	h.mu.Unlock()
}

func (h *recHooks) UserScriptError(_, _ string, err error) {
	h.mu.Lock()
	h.user = append(h.user, err)
	h.mu.Unlock()
}

func equalNames(a []string, b ...string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

func TestRunCacheHit(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return redis.call('ping')")
	f := newFakeRedis()
	f.cache[s.Hash()] = true

	v, err := s.Run(ctx, f, []string{"a"}, "b")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v != "OK" {
		t.Fatalf("reply=%v", v)
	}
	if !equalNames(f.names(), "evalsha") {
		t.Fatalf("calls=%v want [evalsha]", f.names())
	}
	c := f.calls[0]
	if c.head != s.Hash() || len(c.keys) != 1 || c.keys[0] != "a" || len(c.args) != 1 || c.args[0] != "b" {
		t.Fatalf("unexpected evalsha call: %+v", c)
	}
}

func TestRunCacheMissFallsBackOnceThenHits(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	s := newScript("ping", "return redis.call('ping')", h)
	f := newFakeRedis()

	if _, err := s.Run(ctx, f, []string{"a"}, "b"); err != nil {
		t.Fatalf("cold Run: %v", err)
	}
	if !equalNames(f.names(), "evalsha", "eval") {
		t.Fatalf("cold calls=%v want [evalsha eval]", f.names())
	}
	if f.calls[1].head != s.Body() {
		t.Fatalf("fallback must send the body")
	}
	if h.misses != 1 {
		t.Fatalf("misses=%d want 1", h.misses)
	}

	// any other holder of the same body now hits
	other := NewScript(s.Body())
	if _, err := other.Run(ctx, f, []string{"a"}, "b"); err != nil {
		t.Fatalf("warm Run: %v", err)
	}
	if !equalNames(f.names(), "evalsha", "eval", "evalsha") {
		t.Fatalf("warm calls=%v", f.names())
	}
}

func TestRunOtherErrorSkipsFallback(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	oom := replyErr("OOM command not allowed when used memory > 'maxmemory'.")
	f.shaErr = oom

	_, err := s.Run(ctx, f, nil)
	if !errors.Is(err, oom) {
		t.Fatalf("want original error, got %v", err)
	}
	if IsUserError(err) {
		t.Fatalf("OOM must not be a user error")
	}
	if !equalNames(f.names(), "evalsha") {
		t.Fatalf("calls=%v want [evalsha]", f.names())
	}
}

func TestRunTransportErrorUnclassified(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	f.shaErr = io.ErrUnexpectedEOF

	_, err := s.Run(ctx, f, nil)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("want io.ErrUnexpectedEOF unchanged, got %v", err)
	}
}

func TestRunUserErrorOnEvalSha(t *testing.T) {
	ctx := context.Background()
	h := &recHooks{}
	s := newScript("bad", "redis.call('ping')", h)
	f := newFakeRedis()
	orig := replyErr("ERR Error compiling script (new function): user_script:1: '=' expected near 'x'")
	f.shaErr = orig

	_, err := s.Run(ctx, f, []string{"a"}, "b")
	var ue *UserError
	if !errors.As(err, &ue) {
		t.Fatalf("want *UserError, got %T %v", err, err)
	}
	if ue.Script != "bad" || !errors.Is(err, orig) {
		t.Fatalf("user error lost context: %+v", ue)
	}
	if len(h.user) != 1 {
		t.Fatalf("UserScriptError hook calls=%d want 1", len(h.user))
	}
	if !equalNames(f.names(), "evalsha") {
		t.Fatalf("calls=%v", f.names())
	}
}

func TestRunUserErrorOnFallback(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return nosuchfn()")
	f := newFakeRedis()
	f.evErr = replyErr("ERR Error running script (call to f_x): @user_script:1: attempt to call a nil value")

	_, err := s.Run(ctx, f, nil)
	if !IsUserError(err) {
		t.Fatalf("want user error, got %v", err)
	}
	if !equalNames(f.names(), "evalsha", "eval") {
		t.Fatalf("calls=%v", f.names())
	}
}

func TestRunFallbackOperationalErrorUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	busy := replyErr("BUSY Redis is busy running a script.")
	f.evErr = busy

	_, err := s.Run(ctx, f, nil)
	if err != busy {
		t.Fatalf("want BUSY unchanged, got %v", err)
	}
}

func TestRunNoFallbackForNonReplyNoscriptText(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	// client-side error that merely looks like the marker
	f.shaErr = errors.New("NOSCRIPT but not from the server")

	if _, err := s.Run(ctx, f, nil); err == nil {
		t.Fatalf("expected error")
	}
	if !equalNames(f.names(), "evalsha") {
		t.Fatalf("calls=%v want [evalsha]", f.names())
	}
}

func TestRunNilReplyIsRedisNil(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return nil")
	f := newFakeRedis()
	f.shaErr = redis.Nil

	_, err := s.Run(ctx, f, nil)
	if err != redis.Nil {
		t.Fatalf("want redis.Nil, got %v", err)
	}
}

func TestRunPositionalSplitsKeysAndArgs(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	f.cache[s.Hash()] = true

	if _, err := s.RunPositional(ctx, f, 2, "k1", []byte("k2"), 10, "x"); err != nil {
		t.Fatalf("RunPositional: %v", err)
	}
	c := f.calls[0]
	if strings.Join(c.keys, ",") != "k1,k2" {
		t.Fatalf("keys=%v", c.keys)
	}
	if len(c.args) != 2 || c.args[0] != 10 || c.args[1] != "x" {
		t.Fatalf("args=%v", c.args)
	}
}

func TestRunPositionalRejectsBadNumKeys(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	f := newFakeRedis()
	for _, n := range []int{-1, 3} {
		if _, err := s.RunPositional(ctx, f, n, "a", "b"); !errors.Is(err, ErrNumKeys) {
			t.Fatalf("numKeys=%d: want ErrNumKeys, got %v", n, err)
		}
	}
	if len(f.names()) != 0 {
		t.Fatalf("no round-trip expected, got %v", f.names())
	}
}

func TestConcurrentRunsShareScript(t *testing.T) {
	ctx := context.Background()
	s := NewScript("return 1")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := newFakeRedis()
			if _, err := s.Run(ctx, f, nil); err != nil {
				t.Errorf("Run: %v", err)
			}
		}()
	}
	wg.Wait()
}
