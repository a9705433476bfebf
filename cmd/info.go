// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
)

var infoSetName string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device identity, firmware version and queue state",
	Long: `Query the arm's serial number, name, firmware version and command queue.

Use --set-name to rename the device first.

Exit codes:
  0 - Query successful
  1 - A query failed or timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVar(&infoSetName, "set-name", "", "Rename the device before querying")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, connInfo := openArm(ctx, arm.WithoutPolling())
	defer a.Close()

	fmt.Printf("Magician - Device Info\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	if infoSetName != "" {
		if err := a.SetDeviceName(ctx, infoSetName); err != nil {
			return err
		}
	}

	sn, err := a.DeviceSN(ctx)
	if err != nil {
		return err
	}
	name, err := a.DeviceName(ctx)
	if err != nil {
		return err
	}
	version, err := a.DeviceVersion(ctx)
	if err != nil {
		return err
	}
	idx, err := a.QueuedCmdCurrentIndex(ctx)
	if err != nil {
		return err
	}
	left, err := a.QueuedCmdLeftSpace(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Serial:   %s\n", sn)
	fmt.Printf("Name:     %s\n", name)
	fmt.Printf("Firmware: %s\n", version)
	fmt.Printf("Queue:    index %d, %d slots free\n", idx, left)
	return nil
}
