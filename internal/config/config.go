// Package config loads likemod CLI defaults from a config file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LIKEMOD_UNLOAD_TIMEOUT.
	EnvPrefix = "LIKEMOD"
	// DefaultPath is read when no config file is given and it exists.
	DefaultPath = "/etc/likemod/config.toml"
)

// Config holds the CLI defaults. Command line flags take precedence.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Load     LoadConfig   `mapstructure:"load"`
	Unload   UnloadConfig `mapstructure:"unload"`
}

// LoadConfig represents the `load` block.
type LoadConfig struct {
	IgnoreModversion bool `mapstructure:"ignore_modversion"`
	IgnoreVermagic   bool `mapstructure:"ignore_vermagic"`
}

// UnloadConfig represents the `unload` block.
type UnloadConfig struct {
	Force    bool          `mapstructure:"force"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

var levels = []string{"debug", "info", "warn", "error"}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel: "info",
		Unload: UnloadConfig{
			Interval: 500 * time.Millisecond,
			Timeout:  15 * time.Second,
		},
	}
}

// Load reads the config file at path, then applies LIKEMOD_* environment
// overrides. An empty path falls back to [DefaultPath] when it exists.
func Load(path string) (Config, error) {
	def := Default()

	v := viper.New()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("load.ignore_modversion", def.Load.IgnoreModversion)
	v.SetDefault("load.ignore_vermagic", def.Load.IgnoreVermagic)
	v.SetDefault("unload.force", def.Unload.Force)
	v.SetDefault("unload.interval", def.Unload.Interval)
	v.SetDefault("unload.timeout", def.Unload.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(levels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level %q (want one of %s)", c.LogLevel, strings.Join(levels, ", "))
	}
	if c.Unload.Interval <= 0 {
		return errors.New("unload.interval must be positive")
	}
	if c.Unload.Timeout < 0 {
		return errors.New("unload.timeout must not be negative")
	}
	return nil
}
