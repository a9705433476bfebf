// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/sim"
	"github.com/Thermoquad/magician/pkg/transport"
)

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// OpenConnection opens the transport selected by flags, config or env
func OpenConnection(ctx context.Context) (transport.Connection, string, error) {
	tc := cfg.Transport()
	if tc.Sim {
		tc.SimOpts = append(tc.SimOpts, sim.WithLogger(logger))
	}
	return transport.Open(ctx, tc)
}

// openArm connects and starts the driver. Connection failures exit with
// status 2.
func openArm(ctx context.Context, opts ...arm.Option) (*arm.Arm, string) {
	conn, connInfo, err := OpenConnection(ctx)
	if err != nil {
		connectionError(err)
	}

	a, err := arm.Open(conn, append(cfg.ArmOptions(logger), opts...)...)
	if err != nil {
		conn.Close()
		connectionError(err)
	}
	return a, connInfo
}

func connectionError(err error) {
	fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
	os.Exit(2)
}
