// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure request round trips to the arm",
	Long: `Send GetPose requests and report the round-trip time of each.

This is useful for verifying:
  - The serial port or WebSocket bridge is reachable
  - The arm answers and the link is not dropping frames
  - HTTP Basic authentication works (WebSocket only)

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	a, connInfo := openArm(ctx, arm.WithoutPolling())
	defer a.Close()

	fmt.Printf("Magician - Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	var total time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		pose, err := a.FetchPose(ctx)
		rtt := time.Since(start)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
		} else {
			fmt.Printf("pose x=%.1f y=%.1f z=%.1f, rtt=%v\n", pose.X, pose.Y, pose.Z, rtt.Round(time.Microsecond))
			successCount++
			total += rtt
		}

		if ctx.Err() != nil {
			break
		}
		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	failCount := pingCount - successCount
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(max(pingCount, 1))*100)
	if successCount > 0 {
		fmt.Printf("average rtt %v\n", (total / time.Duration(successCount)).Round(time.Microsecond))
	}
	fmt.Print(a.Statistics())

	if failCount > 0 {
		a.Close()
		os.Exit(1)
	}
	return nil
}
