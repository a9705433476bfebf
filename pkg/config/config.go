// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads magician settings from defaults, an optional YAML
// file, MAGICIAN_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/poller"
	"github.com/Thermoquad/magician/pkg/transport"
)

// EnvPrefix prefixes every environment override, e.g. MAGICIAN_LOG_LEVEL
const EnvPrefix = "MAGICIAN"

// Config is the root application configuration.
type Config struct {
	// Port is the serial device, e.g. /dev/ttyUSB0
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`

	// URL selects a WebSocket serial bridge instead of a local port
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`

	// Sim talks to the built-in simulated arm
	Sim bool `mapstructure:"sim"`

	Link LinkConfig `mapstructure:"link"`
	Poll PollConfig `mapstructure:"poll"`
	Log  LogConfig  `mapstructure:"log"`
}

// LinkConfig tunes request correlation.
type LinkConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	ResyncBudget int           `mapstructure:"resync_budget"`
}

// PollConfig tunes the background status loop.
type PollConfig struct {
	Enable           bool          `mapstructure:"enable"`
	Interval         time.Duration `mapstructure:"interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	Rotation    RotationConfig `mapstructure:"rotation"`
	Development bool           `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with the driver defaults.
func Default() *Config {
	return &Config{
		Baud: transport.DefaultBaud,
		Link: LinkConfig{
			Timeout:      link.DefaultTimeout,
			ResyncBudget: link.DefaultResyncBudget,
		},
		Poll: PollConfig{
			Enable:           true,
			Interval:         poller.DefaultInterval,
			FailureThreshold: poller.DefaultFailureThreshold,
		},
		Log: LogConfig{
			Level:   "warn",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				Filename:   "logs/magician.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"port":          "port",
	"baud":          "baud",
	"url":           "url",
	"username":      "username",
	"no-ssl-verify": "no_ssl_verify",
	"sim":           "sim",
	"timeout":       "link.timeout",
	"poll-interval": "poll.interval",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// Load reads configuration from path (if non-empty), otherwise from
// magician.yaml in the working directory or ~/.magician. Flags that the
// user set on the command line override everything else; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Seed defaults so env-only configs work
	v.SetDefault("port", cfg.Port)
	v.SetDefault("baud", cfg.Baud)
	v.SetDefault("url", cfg.URL)
	v.SetDefault("username", cfg.Username)
	v.SetDefault("no_ssl_verify", cfg.NoSSLVerify)
	v.SetDefault("sim", cfg.Sim)
	v.SetDefault("link.timeout", cfg.Link.Timeout)
	v.SetDefault("link.resync_budget", cfg.Link.ResyncBudget)
	v.SetDefault("poll.enable", cfg.Poll.Enable)
	v.SetDefault("poll.interval", cfg.Poll.Interval)
	v.SetDefault("poll.failure_threshold", cfg.Poll.FailureThreshold)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("magician")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".magician"))
		}
	}

	// A missing config file is fine; defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and normalizes the log settings.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "":
		c.Log.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %q", c.Log.Format)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}

	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud: %d", c.Baud)
	}
	if c.Link.Timeout <= 0 {
		return fmt.Errorf("invalid link.timeout: %s", c.Link.Timeout)
	}
	if c.Link.ResyncBudget <= 0 {
		return fmt.Errorf("invalid link.resync_budget: %d", c.Link.ResyncBudget)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("invalid poll.interval: %s", c.Poll.Interval)
	}
	if c.Poll.FailureThreshold <= 0 {
		return fmt.Errorf("invalid poll.failure_threshold: %d", c.Poll.FailureThreshold)
	}
	return nil
}

// Transport returns the transport selection.
func (c *Config) Transport() transport.Config {
	return transport.Config{
		Port:        c.Port,
		Baud:        c.Baud,
		URL:         c.URL,
		Username:    c.Username,
		NoSSLVerify: c.NoSSLVerify,
		Sim:         c.Sim,
	}
}

// ArmOptions converts the link and poll settings into arm options.
func (c *Config) ArmOptions(logger *zap.Logger) []arm.Option {
	opts := []arm.Option{
		arm.WithTimeout(c.Link.Timeout),
		arm.WithResyncBudget(c.Link.ResyncBudget),
		arm.WithPollInterval(c.Poll.Interval),
		arm.WithFailureThreshold(c.Poll.FailureThreshold),
	}
	if !c.Poll.Enable {
		opts = append(opts, arm.WithoutPolling())
	}
	if logger != nil {
		opts = append(opts, arm.WithLogger(logger))
	}
	return opts
}
