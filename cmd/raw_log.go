// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/transport"
)

var rawLogHex bool

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display protocol frames as they arrive.

Nothing is sent, so this is meant for sniffing a link another program is
driving (for example through a serial tap). Each frame is shown with its
timestamp, command name, flags and decoded payload. Corrupt bytes are
reported and skipped.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().BoolVar(&rawLogHex, "hex", false, "Also print each frame's wire bytes")
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		connectionError(err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	fmt.Printf("Magician - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := dobot.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, transport.ErrConnectionClosed) {
				logger.Info("connection closed", zap.Error(err))
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		decoder.Feed(buf[:n])
		for {
			frame, err := decoder.Next()
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				continue
			}
			if frame == nil {
				break
			}
			fmt.Print(dobot.FormatFrame(frame))
			if rawLogHex {
				wire, _ := dobot.EncodeFrame(frame)
				fmt.Printf("  Wire: %s\n", dobot.FormatBytes(wire))
			}
		}
	}
}
