// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    MissEvery: 10, // sample logs: ~every 10th NOSCRIPT fallback
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	reg := redscript.New(redscript.Options{Hooks: hooks})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/redscript"
)

type Hooks struct {
	inner redscript.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex // guards closed against sends on a closed q
	closed bool
}

var _ redscript.Hooks = (*Hooks)(nil)

func New(inner redscript.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) ScriptMiss(name, sha string) { h.try(func() { h.inner.ScriptMiss(name, sha) }) }
func (h *Hooks) Primed(conn, n int)          { h.try(func() { h.inner.Primed(conn, n) }) }
func (h *Hooks) PrimeFailed(conn int, err error) {
	h.try(func() { h.inner.PrimeFailed(conn, err) })
}
func (h *Hooks) UserScriptError(name, sha string, err error) {
	h.try(func() { h.inner.UserScriptError(name, sha, err) })
}
