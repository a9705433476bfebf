// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Control the device's command queue",
	Long: `Control execution of queued motion commands.

  play        start executing queued commands
  stop        pause after the current command
  force-stop  stop immediately
  clear       drop every queued command and reset the queue index
  status      show the current index and free slots`,
}

func queueAction(use, short string, fn func(*arm.Arm, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd)
			defer cancel()

			a, _ := openArm(ctx, arm.WithoutPolling())
			defer a.Close()

			if err := fn(a, ctx); err != nil {
				return err
			}
			return printQueueStatus(ctx, a)
		},
	}
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(
		queueAction("play", "Start executing queued commands", (*arm.Arm).Play),
		queueAction("stop", "Pause after the current command", (*arm.Arm).Stop),
		queueAction("force-stop", "Stop immediately", (*arm.Arm).ForceStop),
		queueAction("clear", "Drop every queued command", (*arm.Arm).Clear),
		queueAction("status", "Show queue progress", func(*arm.Arm, context.Context) error { return nil }),
	)
}

func printQueueStatus(ctx context.Context, a *arm.Arm) error {
	idx, err := a.QueuedCmdCurrentIndex(ctx)
	if err != nil {
		return err
	}
	left, err := a.QueuedCmdLeftSpace(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Current index: %d\n", idx)
	fmt.Printf("Free slots:    %d\n", left)
	return nil
}
