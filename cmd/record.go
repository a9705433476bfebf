// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/state"
)

var (
	recordDuration time.Duration
	recordEvery    time.Duration
	recordReplay   bool
)

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record pose, alarms and queue progress to a CBOR file",
	Long: `Sample the polled device state at a fixed rate and append each snapshot
to a file as a CBOR sequence. Recording stops after --duration, on Ctrl+C,
or when the link drops.

With --replay the file is read back and printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Stop after this long (0 = until interrupted)")
	recordCmd.Flags().DurationVar(&recordEvery, "every", 100*time.Millisecond, "Sampling interval")
	recordCmd.Flags().BoolVar(&recordReplay, "replay", false, "Print a recording instead of making one")
}

func runRecord(cmd *cobra.Command, args []string) error {
	if recordReplay {
		return replayRecording(args[0])
	}
	if recordEvery <= 0 {
		return fmt.Errorf("invalid --every: %v", recordEvery)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	if recordDuration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, recordDuration)
		defer stop()
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	a, connInfo := openArm(ctx)
	defer a.Close()

	fmt.Printf("Recording %s from %s, Ctrl+C to stop\n", args[0], connInfo)

	rec := state.NewRecorder(w)
	ticker := time.NewTicker(recordEvery)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-a.Done():
			logger.Warn("link closed during recording")
			break loop
		case <-ticker.C:
			if err := rec.Record(a.Snapshot()); err != nil {
				return err
			}
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	logger.Info("recording finished", zap.String("file", args[0]), zap.Int("snapshots", rec.Count()))
	fmt.Printf("Wrote %d snapshots\n", rec.Count())
	return nil
}

func replayRecording(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	snaps, err := state.ReadSnapshots(bufio.NewReader(f))
	for _, s := range snaps {
		status := "ok"
		if s.Degraded {
			status = "DEGRADED: " + s.LastError
		}
		fmt.Printf("[%s] index=%d free=%d alarms=%s %s\n",
			s.At.Format("15:04:05.000"), s.CurrentIndex, s.LeftSpace, dobot.FormatAlarms(s.Alarms), status)
		fmt.Print(dobot.FormatPose(s.Pose))
	}
	return err
}
