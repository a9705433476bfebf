// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/config"
	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/logging"
	"github.com/Thermoquad/magician/pkg/poller"
	"github.com/Thermoquad/magician/pkg/transport"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "magician",
	Short: "Dobot Magician robotic arm driver",
	Long: `Magician drives a Dobot Magician robotic arm over its serial protocol.

It queues motion commands, reads pose and alarms, runs motion scripts and
monitors the arm in a terminal UI.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://bridge.local/serial [--username admin]
  Simulator: --sim

Settings can also come from magician.yaml (or --config) and MAGICIAN_*
environment variables. For WebSocket authentication, set MAGICIAN_PASSWORD
or enter the password when prompted.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger, err = logging.Setup(cfg.Log)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./magician.yaml or ~/.magician/magician.yaml)")
	flags.StringP("port", "p", "", "Serial port device (e.g., /dev/ttyUSB0)")
	flags.IntP("baud", "b", transport.DefaultBaud, "Baud rate (serial only)")
	flags.StringP("url", "u", "", "WebSocket bridge URL (e.g., ws://bridge.local/serial)")
	flags.String("username", "", "Username for WebSocket authentication")
	flags.Bool("no-ssl-verify", false, "Disable TLS certificate verification (wss:// only)")
	flags.Bool("sim", false, "Use the built-in simulated arm")
	flags.Duration("timeout", link.DefaultTimeout, "Response timeout per request")
	flags.Duration("poll-interval", poller.DefaultInterval, "Status polling interval")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
}

// formatAge renders how long ago t was, or "never"
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%v ago", time.Since(t).Round(time.Millisecond))
}
