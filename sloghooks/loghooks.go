package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/redscript"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	MissEvery      uint64
	UserErrorEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	missCtr      atomic.Uint64
	userErrorCtr atomic.Uint64
}

var _ redscript.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

// short trims a digest for log lines; 12 hex chars is plenty to grep for.
func short(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func (h *Hooks) ScriptMiss(name, sha string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("redscript.script_miss",
		"script", name,
		"sha", short(sha))
}

func (h *Hooks) UserScriptError(name, sha string, err error) {
	if h.l == nil || !sample(h.opts.UserErrorEvery, &h.userErrorCtr) {
		return
	}
	h.l.Warn("redscript.user_error",
		"script", name,
		"sha", short(sha),
		"err", err)
}

func (h *Hooks) Primed(conn int, scripts int) {
	if h.l == nil {
		return
	}
	h.l.Info("redscript.primed",
		"conn", conn,
		"scripts", scripts)
}

func (h *Hooks) PrimeFailed(conn int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("redscript.prime_failed",
		"conn", conn,
		"err", err)
}
