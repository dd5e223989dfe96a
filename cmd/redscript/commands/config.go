package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "REDSCRIPT"

// Config is the resolved CLI configuration. Precedence: flags, then
// REDSCRIPT_* environment, then the config file, then defaults.
type Config struct {
	Addrs       []string      `mapstructure:"addrs"`
	Scripts     string        `mapstructure:"scripts"`
	Prelude     bool          `mapstructure:"prelude"`
	Parallelism int           `mapstructure:"parallelism"`
	LogLevel    string        `mapstructure:"log-level"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

var errNoAddrs = errors.New("no redis address configured (use --addrs or REDSCRIPT_ADDRS)")

func bindFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.StringSlice("addrs", []string{"localhost:6379"}, "redis addresses; repeat or comma-separate")
	fs.String("scripts", "", "glob of script files to register, e.g. 'scripts/*.lua'")
	fs.Bool("prelude", true, "register the bundled prelude scripts")
	fs.Int("parallelism", 0, "max instances primed at once (0 = all)")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.Duration("timeout", 10*time.Second, "overall timeout for redis operations")
}

func loadConfig(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Addrs) == 0 {
		return Config{}, errNoAddrs
	}
	return cfg, nil
}
