// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/dobot"
)

var alarmsClear bool

var alarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "Show active alarms",
	Long: `Read the alarm bitfield and list the active alarm numbers.

With --clear all alarms are cleared and the state is read again.`,
	Args: cobra.NoArgs,
	RunE: runAlarms,
}

func init() {
	rootCmd.AddCommand(alarmsCmd)
	alarmsCmd.Flags().BoolVar(&alarmsClear, "clear", false, "Clear all alarms")
}

func runAlarms(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, _ := openArm(ctx, arm.WithoutPolling())
	defer a.Close()

	alarms, err := a.FetchAlarms(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Alarms: %s\n", dobot.FormatAlarms(alarms))

	if !alarmsClear || !alarms.Any() {
		return nil
	}

	if err := a.ClearAllAlarmsState(ctx); err != nil {
		return err
	}
	alarms, err = a.FetchAlarms(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("After clear: %s\n", dobot.FormatAlarms(alarms))
	return nil
}
