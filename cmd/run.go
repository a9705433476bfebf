// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/script"
)

var (
	runPlay  bool
	runWait  bool
	runCheck bool
	runOut   string
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Queue a motion script",
	Long: `Queue every step of a YAML (.yaml, .yml) or CBOR (.cbor) motion script.

The whole script is validated before anything is sent. Use --check to only
validate it, or --convert to rewrite it as YAML or CBOR.

Example script:
  name: pick
  steps:
    - op: ptp_common
      velocity_ratio: 50
      acceleration_ratio: 50
    - op: ptp
      mode: movj_xyz
      x: 200
      y: 0
      z: 50
    - op: wait
      ms: 500`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runPlay, "play", false, "Start queue execution first")
	runCmd.Flags().BoolVar(&runWait, "wait", false, "Wait until the last step has executed")
	runCmd.Flags().BoolVar(&runCheck, "check", false, "Validate the script without connecting")
	runCmd.Flags().StringVar(&runOut, "convert", "", "Write the validated script to this path and exit")
}

func runScript(cmd *cobra.Command, args []string) error {
	if runCheck || runOut != "" {
		s, err := script.LoadFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d steps OK\n", args[0], len(s.Steps))
		if runOut != "" {
			return convertScript(s, runOut)
		}
		return nil
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, connInfo := openArm(ctx)
	defer a.Close()

	fmt.Printf("Connection: %s\n", connInfo)

	if runPlay {
		if err := a.Play(ctx); err != nil {
			return err
		}
	}

	last, err := a.Load(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Queued %s: last index %d\n", args[0], last)

	if runWait {
		return waitQueued(ctx, a, last)
	}
	return nil
}

func convertScript(s *script.Script, path string) error {
	format, err := script.FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := s.Marshal(format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes)\n", path, len(data))
	return nil
}
