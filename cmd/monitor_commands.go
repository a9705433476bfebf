// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// armControl is the part of the driver the monitor prompt can reach
type armControl interface {
	SetHomeCmd(ctx context.Context) (uint64, error)
	SetPTPCmd(ctx context.Context, mode dobot.PTPMode, x, y, z, r float32) (uint64, error)
	SetJOGCmd(ctx context.Context, isJoint bool, cmd dobot.JOGCommand) (uint64, error)
	SetWAITCmd(ctx context.Context, timeoutMs uint32) (uint64, error)
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	ForceStop(ctx context.Context) error
	Clear(ctx context.Context) error
	ClearAllAlarmsState(ctx context.Context) error
}

// monitorAction runs one prompt command and describes the outcome
type monitorAction func(ctx context.Context, a armControl) (string, error)

const monitorHelp = "home | ptp <mode> x y z r | <mode> x y z r | jog <cmd> [joint] | wait <ms> | play | stop | force-stop | clear | clear-alarms"

// parseMonitorCommand turns a prompt line into an action. Nothing is sent
// until the action runs.
func parseMonitorCommand(line string) (monitorAction, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	name, args := fields[0], fields[1:]

	noArgs := func(fn func(armControl, context.Context) error, done string) (monitorAction, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%s takes no arguments", name)
		}
		return func(ctx context.Context, a armControl) (string, error) {
			return done, fn(a, ctx)
		}, nil
	}

	switch name {
	case "help", "?":
		return func(context.Context, armControl) (string, error) { return monitorHelp, nil }, nil

	case "home":
		if len(args) != 0 {
			return nil, fmt.Errorf("home takes no arguments")
		}
		return queuedAction("home", func(ctx context.Context, a armControl) (uint64, error) {
			return a.SetHomeCmd(ctx)
		}), nil

	case "play":
		return noArgs(armControl.Play, "queue running")
	case "stop":
		return noArgs(armControl.Stop, "queue paused")
	case "force-stop":
		return noArgs(armControl.ForceStop, "queue stopped")
	case "clear":
		return noArgs(armControl.Clear, "queue cleared")
	case "clear-alarms":
		return noArgs(armControl.ClearAllAlarmsState, "alarms cleared")

	case "wait":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: wait <ms>")
		}
		ms, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid wait time %q", args[0])
		}
		return queuedAction("wait", func(ctx context.Context, a armControl) (uint64, error) {
			return a.SetWAITCmd(ctx, uint32(ms))
		}), nil

	case "jog":
		if len(args) < 1 || len(args) > 2 || (len(args) == 2 && args[1] != "joint") {
			return nil, fmt.Errorf("usage: jog <cmd> [joint]")
		}
		jc, err := dobot.ParseJOGCommand(args[0])
		if err != nil {
			return nil, err
		}
		joint := len(args) == 2
		return queuedAction("jog "+jc.String(), func(ctx context.Context, a armControl) (uint64, error) {
			return a.SetJOGCmd(ctx, joint, jc)
		}), nil

	case "ptp":
		if len(args) == 0 {
			return nil, fmt.Errorf("usage: ptp <mode> x y z r")
		}
		return parsePTP(args[0], args[1:])
	}

	// A bare mode name is shorthand for ptp
	if _, err := dobot.ParsePTPMode(name); err == nil {
		return parsePTP(name, args)
	}
	return nil, fmt.Errorf("unknown command %q (try help)", name)
}

func parsePTP(modeName string, args []string) (monitorAction, error) {
	mode, err := dobot.ParsePTPMode(modeName)
	if err != nil {
		return nil, err
	}
	if len(args) != 4 {
		return nil, fmt.Errorf("usage: %s x y z r", strings.ToLower(mode.String()))
	}
	var v [4]float32
	for i, s := range args {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid coordinate %q", s)
		}
		v[i] = float32(f)
	}
	return queuedAction(mode.String(), func(ctx context.Context, a armControl) (uint64, error) {
		return a.SetPTPCmd(ctx, mode, v[0], v[1], v[2], v[3])
	}), nil
}

func queuedAction(label string, submit func(context.Context, armControl) (uint64, error)) monitorAction {
	return func(ctx context.Context, a armControl) (string, error) {
		idx, err := submit(ctx, a)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s queued at index %d", label, idx), nil
	}
}
