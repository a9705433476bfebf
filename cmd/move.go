// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/dobot"
)

var (
	motionWait bool
	motionPlay bool
)

var homeCmd = &cobra.Command{
	Use:   "home",
	Short: "Queue the homing routine",
	Args:  cobra.NoArgs,
	RunE:  runHome,
}

var moveCmd = &cobra.Command{
	Use:   "move <mode> <x> <y> <z> <r>",
	Short: "Queue a point-to-point move",
	Long: `Queue a point-to-point move.

Modes: JUMP_XYZ, MOVJ_XYZ, MOVL_XYZ, JUMP_ANGLE, MOVJ_ANGLE, MOVL_ANGLE,
MOVJ_INC, MOVL_INC, MOVJ_XYZ_INC, JUMP_MOVL_XYZ (case-insensitive, or 0-9).

For the _ANGLE modes the four values are joint angles in degrees; otherwise
they are x, y, z in millimetres and r in degrees.

Examples:
  magician --sim move movj_xyz 200 0 50 0 --wait
  magician -p /dev/ttyUSB0 move movl_xyz 180 20 40 0`,
	Args: cobra.ExactArgs(5),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(homeCmd)
	rootCmd.AddCommand(moveCmd)
	for _, c := range []*cobra.Command{homeCmd, moveCmd} {
		c.Flags().BoolVar(&motionWait, "wait", false, "Wait until the command has executed")
		c.Flags().BoolVar(&motionPlay, "play", false, "Start queue execution first")
	}
}

func runHome(cmd *cobra.Command, args []string) error {
	return runQueued(cmd, func(ctx context.Context, a *arm.Arm) (uint64, error) {
		return a.SetHomeCmd(ctx)
	})
}

func runMove(cmd *cobra.Command, args []string) error {
	mode, err := dobot.ParsePTPMode(args[0])
	if err != nil {
		return err
	}
	var v [4]float32
	for i, s := range args[1:] {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", s, err)
		}
		v[i] = float32(f)
	}

	return runQueued(cmd, func(ctx context.Context, a *arm.Arm) (uint64, error) {
		return a.SetPTPCmd(ctx, mode, v[0], v[1], v[2], v[3])
	})
}

// runQueued submits one queued command and optionally waits for it
func runQueued(cmd *cobra.Command, submit func(context.Context, *arm.Arm) (uint64, error)) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, _ := openArm(ctx)
	defer a.Close()

	if motionPlay {
		if err := a.Play(ctx); err != nil {
			return err
		}
	}

	idx, err := submit(ctx, a)
	if err != nil {
		return err
	}
	fmt.Printf("Queued: index %d\n", idx)

	if motionWait {
		return waitQueued(ctx, a, idx)
	}
	return nil
}

func waitQueued(ctx context.Context, a *arm.Arm, idx uint64) error {
	start := time.Now()
	if err := a.WaitQueued(ctx, idx); err != nil {
		return err
	}
	fmt.Printf("Executed: index %d after %v\n", idx, time.Since(start).Round(time.Millisecond))
	return nil
}
