package redscript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const defaultExt = ".lua"

// Pipeliner is the part of a Redis connection EnsureLoaded needs.
// Any go-redis client satisfies it.
type Pipeliner interface {
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// Options tune a Registry. The zero value is usable.
type Options struct {
	Logger      Logger // if nil, NopLogger is used
	Hooks       Hooks  // if nil, NopHooks is used; handed to every registered Script
	Parallelism int    // max connections primed at once by EnsureLoaded; 0 => all
	Ext         string // suffix stripped from file names by LoadGlob/LoadFS; "" => ".lua"
}

// Registry maps names to scripts. It is populated at startup (LoadGlob, LoadFS,
// Set, Register) and read concurrently afterwards. Writers should not race
// each other; readers are always safe.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]*Script

	log         Logger
	hooks       Hooks
	parallelism int
	ext         string
}

// New returns an empty Registry; zero Options fields take their defaults.
func New(opts Options) *Registry {
	return &Registry{
		scripts:     make(map[string]*Script),
		log:         coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:       coalesce[Hooks](opts.Hooks, NopHooks{}),
		parallelism: opts.Parallelism,
		ext:         coalesce(opts.Ext, defaultExt),
	}
}

// LoadGlob registers every file matching pattern on the OS filesystem under its
// base name minus the extension. Existing names are overwritten. Files read
// before a failure stay registered.
func (r *Registry) LoadGlob(pattern string) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return fmt.Errorf("redscript: glob %q: %w", pattern, err)
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("redscript: load %s: %w", f, err)
		}
		r.Register(r.nameOf(filepath.Base(f)), string(b))
	}
	r.log.Debug("scripts loaded from glob", Fields{"pattern": pattern, "count": len(files)})
	return nil
}

// LoadFS is LoadGlob over fsys (embed.FS, os.DirFS, fstest.MapFS, ...).
func (r *Registry) LoadFS(fsys fs.FS, pattern string) error {
	files, err := fs.Glob(fsys, pattern)
	if err != nil {
		return fmt.Errorf("redscript: glob %q: %w", pattern, err)
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("redscript: load %s: %w", f, err)
		}
		r.Register(r.nameOf(path.Base(f)), string(b))
	}
	r.log.Debug("scripts loaded from fs", Fields{"pattern": pattern, "count": len(files)})
	return nil
}

// Set reads a body from src and registers it under name.
func (r *Registry) Set(name string, src io.Reader) error {
	b, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("redscript: read %q: %w", name, err)
	}
	r.Register(name, string(b))
	return nil
}

// Register stores body under name, replacing any previous script.
func (r *Registry) Register(name, body string) *Script {
	s := newScript(name, body, r.hooks)
	r.mu.Lock()
	r.scripts[name] = s
	r.mu.Unlock()
	r.log.Debug("script registered", Fields{"name": name, "sha": s.sha})
	return s
}

// Get returns the script registered under name.
func (r *Registry) Get(name string) (*Script, bool) {
	r.mu.RLock()
	s, ok := r.scripts[name]
	r.mu.RUnlock()
	return s, ok
}

// Names returns the registered names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.scripts))
	for n := range r.scripts {
		out = append(out, n)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Len returns the number of registered scripts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scripts)
}

// Run looks up name and runs it. See Script.Run.
func (r *Registry) Run(ctx context.Context, c Evaler, name string, keys []string, args ...any) (any, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScript, name)
	}
	return s.Run(ctx, c, keys, args...)
}

// EnsureLoaded sends SCRIPT LOAD for every registered script to each connection,
// one pipelined round-trip per connection. Connections are primed concurrently
// and independently; all failures are reported together in a *PrimeError.
// A nil connection (untyped or typed) is reported as that connection's failure.
func (r *Registry) EnsureLoaded(ctx context.Context, conns ...Pipeliner) error {
	scripts := r.snapshot()
	if len(scripts) == 0 || len(conns) == 0 {
		return nil
	}

	var g errgroup.Group
	if r.parallelism > 0 {
		g.SetLimit(r.parallelism)
	}
	errs := make([]error, len(conns))
	for i, conn := range conns {
		i, conn := i, conn
		g.Go(func() error {
			errs[i] = prime(ctx, conn, scripts)
			return nil // keep priming the other connections
		})
	}
	_ = g.Wait()

	var pe PrimeError
	for i, err := range errs {
		if err != nil {
			pe.Failures = append(pe.Failures, ConnError{Index: i, Err: err})
			r.hooks.PrimeFailed(i, err)
			r.log.Warn("script prime failed", Fields{"conn": i, "err": err})
			continue
		}
		r.hooks.Primed(i, len(scripts))
	}
	r.log.Info("scripts primed", Fields{
		"conns":   len(conns),
		"failed":  len(pe.Failures),
		"scripts": len(scripts),
	})
	if len(pe.Failures) > 0 {
		return &pe
	}
	return nil
}

var errNilConn = errors.New("nil connection")

func prime(ctx context.Context, conn Pipeliner, scripts []*Script) error {
	if isNil(conn) {
		return errNilConn
	}
	cmds := make([]*redis.StringCmd, 0, len(scripts))
	_, err := conn.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, s := range scripts {
			cmds = append(cmds, p.ScriptLoad(ctx, s.body))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for i, cmd := range cmds {
		if got := cmd.Val(); !strings.EqualFold(got, scripts[i].sha) {
			return fmt.Errorf("script %q: server digest %q != local %q", scripts[i].name, got, scripts[i].sha)
		}
	}
	return nil
}

// isNil also catches typed nils, e.g. a (*redis.Client)(nil) passed as Pipeliner.
func isNil(conn Pipeliner) bool {
	if conn == nil {
		return true
	}
	v := reflect.ValueOf(conn)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// snapshot returns the scripts sorted by name so batches are deterministic.
func (r *Registry) snapshot() []*Script {
	r.mu.RLock()
	out := make([]*Script, 0, len(r.scripts))
	for _, s := range r.scripts {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *Registry) nameOf(base string) string {
	return strings.TrimSuffix(base, r.ext)
}
