package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unkn0wn-root/redscript"
	asynchook "github.com/unkn0wn-root/redscript/hooks/async"
	zaplog "github.com/unkn0wn-root/redscript/log/zap"
	"github.com/unkn0wn-root/redscript/prelude"
	"github.com/unkn0wn-root/redscript/sloghooks"
)

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "redscript",
		Short: "Run and prime cached Redis Lua scripts",
		Long: `redscript registers Lua scripts by name, primes them into the script
cache of one or more Redis instances with a single pipelined round-trip each,
and runs them with EVALSHA (falling back to EVAL once on a cold cache).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	bindFlags(root.PersistentFlags())

	root.AddCommand(
		newDigestCmd(),
		newListCmd(),
		newLoadCmd(),
		newRunCmd(),
	)
	return root
}

// Execute runs root with cobra's own error printing silenced; errors are
// printed once, in color, by printError.
func Execute(root *cobra.Command) error {
	root.SilenceErrors = true
	root.SilenceUsage = true
	err := root.Execute()
	if err != nil {
		printError(root.ErrOrStderr(), err)
	}
	return err
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(root *cobra.Command, v, c, d string) {
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// env is everything a subcommand needs, built from the resolved Config.
type env struct {
	cfg     Config
	log     *zap.Logger
	hooks   *asynchook.Hooks
	reg     *redscript.Registry
	clients []*redis.Client
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	zl, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, err
	}
	events := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	hooks := asynchook.New(sloghooks.New(events, sloghooks.Options{}), 1, 256)

	reg := redscript.New(redscript.Options{
		Logger:      zaplog.ZapLogger{L: zl},
		Hooks:       hooks,
		Parallelism: cfg.Parallelism,
	})
	if err := populate(reg, cfg); err != nil {
		hooks.Close()
		return nil, err
	}

	e := &env{cfg: cfg, log: zl, hooks: hooks, reg: reg}
	for _, addr := range cfg.Addrs {
		e.clients = append(e.clients, redis.NewClient(&redis.Options{Addr: addr}))
	}
	return e, nil
}

func populate(reg *redscript.Registry, cfg Config) error {
	if cfg.Prelude {
		if _, err := prelude.Install(reg); err != nil {
			return err
		}
	}
	if cfg.Scripts != "" {
		return reg.LoadGlob(cfg.Scripts)
	}
	return nil
}

func (e *env) context(parent context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, e.cfg.Timeout)
}

func (e *env) pipeliners() []redscript.Pipeliner {
	out := make([]redscript.Pipeliner, len(e.clients))
	for i, c := range e.clients {
		out[i] = c
	}
	return out
}

func (e *env) Close() {
	for _, c := range e.clients {
		_ = c.Close()
	}
	e.hooks.Close()
	_ = e.log.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
