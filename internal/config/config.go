package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	chnet "github.com/skshohagmiah/chanpool/internal/net"
)

// EnvPrefix is prepended to every environment override, e.g. CHANPOOL_MAX_FRAME_SIZE
const EnvPrefix = "CHANPOOL"

// Config holds the channel pool settings
type Config struct {
	MaxFrameSize        int           `mapstructure:"max_frame_size"`
	IdleTimeout         time.Duration `mapstructure:"idle_timeout"`
	ShutdownGrace       time.Duration `mapstructure:"shutdown_grace"`
	ShutdownConcurrency int           `mapstructure:"shutdown_concurrency"`
	Log                 LogConfig     `mapstructure:"log"`
}

// LogConfig represents logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{
	"max-frame-size":       "max_frame_size",
	"idle-timeout":         "idle_timeout",
	"shutdown-grace":       "shutdown_grace",
	"shutdown-concurrency": "shutdown_concurrency",
	"log-level":            "log.level",
	"log-format":           "log.format",
}

// RegisterFlags adds the config flags to fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("max-frame-size", 4194304, "maximum inbound message size in bytes")
	fs.Duration("idle-timeout", chnet.DefaultIdleTimeout, "idle timeout per channel")
	fs.Duration("shutdown-grace", chnet.DefaultShutdownGrace, "time to wait for each channel on close")
	fs.Int("shutdown-concurrency", 8, "channels shut down in parallel on close")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")
}

// Load reads configuration from defaults, an optional YAML file, CHANPOOL_*
// environment variables and changed flags, in increasing priority.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("max_frame_size", 4194304)
	v.SetDefault("idle_timeout", chnet.DefaultIdleTimeout)
	v.SetDefault("shutdown_grace", chnet.DefaultShutdownGrace)
	v.SetDefault("shutdown_concurrency", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if flag := fs.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxFrameSize <= 0 {
		return errors.New("max_frame_size must be positive")
	}

	if c.IdleTimeout < 0 {
		return errors.New("idle_timeout cannot be negative")
	}

	if c.ShutdownGrace <= 0 {
		return errors.New("shutdown_grace must be positive")
	}

	if c.ShutdownConcurrency < 1 {
		return errors.New("shutdown_concurrency must be at least 1")
	}

	if lvl, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil || lvl == zerolog.NoLevel {
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}

	return nil
}

// PoolOptions converts the config into channel pool options
func (c *Config) PoolOptions(logger *zerolog.Logger) *chnet.PoolOptions {
	opts := chnet.DefaultPoolOptions(c.MaxFrameSize)
	opts.IdleTimeout = c.IdleTimeout
	opts.ShutdownGrace = c.ShutdownGrace
	opts.ShutdownConcurrency = c.ShutdownConcurrency
	opts.Logger = logger
	return opts
}

// String returns a string representation of the configuration (for logging)
func (c *Config) String() string {
	return fmt.Sprintf("Config{MaxFrameSize: %d, IdleTimeout: %v, ShutdownGrace: %v, LogLevel: %s}",
		c.MaxFrameSize, c.IdleTimeout, c.ShutdownGrace, c.Log.Level)
}
