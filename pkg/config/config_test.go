// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/link"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "magician.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Baud != 115200 {
		t.Errorf("Baud = %d", cfg.Baud)
	}
	if cfg.Link.Timeout != link.DefaultTimeout || cfg.Link.ResyncBudget != link.DefaultResyncBudget {
		t.Errorf("Link = %+v", cfg.Link)
	}
	if !cfg.Poll.Enable || cfg.Poll.Interval != 50*time.Millisecond || cfg.Poll.FailureThreshold != 5 {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.Log.Level != "warn" || len(cfg.Log.Outputs) != 1 || cfg.Log.Outputs[0] != "stderr" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_FileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
port: /dev/ttyUSB3
baud: 57600
link:
  timeout: 2s
  resync_budget: 64
poll:
  interval: 200ms
log:
  level: debug
  format: json
`)

	t.Setenv("MAGICIAN_POLL_FAILURE_THRESHOLD", "9")
	t.Setenv("MAGICIAN_LINK_RESYNC_BUDGET", "128")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("port", "p", "", "")
	flags.Duration("timeout", 0, "")
	flags.Int("baud", 115200, "")
	if err := flags.Parse([]string{"--timeout=750ms"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"port from file", cfg.Port, "/dev/ttyUSB3"},
		{"unset flag keeps file value", cfg.Baud, 57600},
		{"flag beats file", cfg.Link.Timeout, 750 * time.Millisecond},
		{"env beats file", cfg.Link.ResyncBudget, 128},
		{"env only", cfg.Poll.FailureThreshold, 9},
		{"file duration", cfg.Poll.Interval, 200 * time.Millisecond},
		{"level", cfg.Log.Level, "debug"},
		{"format", cfg.Log.Format, "json"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"level", "log:\n  level: loud\n", "log.level"},
		{"format", "log:\n  format: xml\n", "log.format"},
		{"timeout", "link:\n  timeout: 0s\n", "link.timeout"},
		{"threshold", "poll:\n  failure_threshold: 0\n", "poll.failure_threshold"},
		{"baud", "baud: -1\n", "baud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("missing explicit config file accepted")
	}
}

func TestArmOptions(t *testing.T) {
	cfg := Default()
	cfg.Link.Timeout = time.Second
	cfg.Poll.Interval = 20 * time.Millisecond
	cfg.Poll.Enable = false

	var ac arm.Config
	ac.Polling = true
	for _, opt := range cfg.ArmOptions(nil) {
		opt(&ac)
	}

	if ac.Link.Timeout != time.Second || ac.Link.ResyncBudget != link.DefaultResyncBudget {
		t.Errorf("Link = %+v", ac.Link)
	}
	if ac.Poll.Interval != 20*time.Millisecond || ac.Poll.FailureThreshold != 5 {
		t.Errorf("Poll = %+v", ac.Poll)
	}
	if ac.Polling {
		t.Error("polling still enabled")
	}
}

func TestTransport(t *testing.T) {
	cfg := Default()
	cfg.URL = "ws://bridge.local/serial"
	cfg.Username = "arm"

	tc := cfg.Transport()
	if tc.URL != cfg.URL || tc.Username != "arm" || tc.Baud != 115200 || tc.Sim {
		t.Errorf("Transport = %+v", tc)
	}
}
