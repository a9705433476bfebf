// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/dobot"
)

var (
	jogJoint    bool
	jogDuration time.Duration
)

var jogCmd = &cobra.Command{
	Use:   "jog <command>",
	Short: "Jog an axis or joint",
	Long: `Start a jog in one direction, or stop it with IDLE.

Commands: IDLE, AP_DOWN, AN_DOWN, BP_DOWN, BN_DOWN, CP_DOWN, CN_DOWN,
DP_DOWN, DN_DOWN. With --joint A-D are joints 1-4; otherwise they are
X, Y, Z and R.

With --duration the jog is stopped automatically after that long.`,
	Args: cobra.ExactArgs(1),
	RunE: runJog,
}

func init() {
	rootCmd.AddCommand(jogCmd)
	jogCmd.Flags().BoolVar(&jogJoint, "joint", false, "Jog joints instead of Cartesian axes")
	jogCmd.Flags().DurationVar(&jogDuration, "duration", 0, "Stop the jog after this long")
}

func runJog(cmd *cobra.Command, args []string) error {
	jc, err := dobot.ParseJOGCommand(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, _ := openArm(ctx)
	defer a.Close()

	idx, err := a.SetJOGCmd(ctx, jogJoint, jc)
	if err != nil {
		return err
	}
	fmt.Printf("Jog %s queued: index %d\n", jc, idx)

	if jogDuration <= 0 || jc == dobot.JogIdle {
		return nil
	}

	select {
	case <-time.After(jogDuration):
	case <-ctx.Done():
	}

	// Stop even if interrupted
	stopCtx, stopCancel := context.WithTimeout(cmd.Context(), 4*cfg.Link.Timeout)
	defer stopCancel()
	idx, err = a.SetJOGCmd(stopCtx, jogJoint, dobot.JogIdle)
	if err != nil {
		return err
	}
	fmt.Printf("Jog stopped: index %d\n", idx)
	return nil
}
