// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/poller"
)

// Config holds the connection configuration.
type Config struct {
	// Link tunes request timeouts and resynchronization
	Link link.Config

	// Poll tunes the background status loop
	Poll poller.Config

	// Polling starts the background status loop. Cached reads and
	// WaitQueued depend on it.
	Polling bool

	// Logger is used by every component (optional)
	Logger *zap.Logger
}

func defaultConfig() Config {
	return Config{
		Link:    link.DefaultConfig(),
		Poll:    poller.DefaultConfig(),
		Polling: true,
	}
}

// Option is a functional option for configuring an Arm.
type Option func(*Config)

// WithConfig replaces the whole configuration, typically one loaded from
// a config file.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithTimeout sets the response window for every request.
//
// Example:
//
//	a, err := arm.Open(conn, arm.WithTimeout(time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Link.Timeout = timeout
		}
	}
}

// WithResyncBudget sets how many bytes may be discarded without a valid
// frame before outstanding requests fail.
func WithResyncBudget(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Link.ResyncBudget = n
		}
	}
}

// WithPollInterval sets the status polling period.
//
// Example:
//
//	a, err := arm.Open(conn, arm.WithPollInterval(100*time.Millisecond))
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.Poll.Interval = interval
		}
	}
}

// WithFailureThreshold sets how many consecutive failed poll cycles mark
// the link degraded.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Poll.FailureThreshold = n
		}
	}
}

// WithoutPolling disables the background status loop. Use the Fetch and
// live query methods instead of the cached ones.
func WithoutPolling() Option {
	return func(c *Config) {
		c.Polling = false
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
