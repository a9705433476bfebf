// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/dobot"
)

var (
	poseReset      bool
	poseRearAngle  float32
	poseFrontAngle float32
)

var poseCmd = &cobra.Command{
	Use:   "pose",
	Short: "Show the current Cartesian pose and joint angles",
	Long: `Read the end effector position and the four joint angles.

With --reset the pose is recalculated first. Passing --rear-angle or
--front-angle resets manually to those arm angles; otherwise the angle
sensors are used.`,
	Args: cobra.NoArgs,
	RunE: runPose,
}

func init() {
	rootCmd.AddCommand(poseCmd)
	poseCmd.Flags().BoolVar(&poseReset, "reset", false, "Reset the pose before reading it")
	poseCmd.Flags().Float32Var(&poseRearAngle, "rear-angle", 0, "Rear arm angle for a manual reset (degrees)")
	poseCmd.Flags().Float32Var(&poseFrontAngle, "front-angle", 0, "Front arm angle for a manual reset (degrees)")
}

func runPose(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, _ := openArm(ctx, arm.WithoutPolling())
	defer a.Close()

	if poseReset {
		manual := cmd.Flags().Changed("rear-angle") || cmd.Flags().Changed("front-angle")
		if err := a.ResetPose(ctx, manual, poseRearAngle, poseFrontAngle); err != nil {
			return err
		}
	}

	pose, err := a.FetchPose(ctx)
	if err != nil {
		return err
	}
	fmt.Print(dobot.FormatPose(pose))
	return nil
}
