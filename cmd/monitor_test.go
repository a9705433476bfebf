// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thermoquad/magician/pkg/dobot"
)

type fakeArm struct {
	calls []string
	err   error
}

func (f *fakeArm) record(s string) (uint64, error) {
	f.calls = append(f.calls, s)
	return uint64(len(f.calls)), f.err
}

func (f *fakeArm) SetHomeCmd(context.Context) (uint64, error) { return f.record("home") }

func (f *fakeArm) SetPTPCmd(_ context.Context, mode dobot.PTPMode, x, y, z, r float32) (uint64, error) {
	return f.record(fmt.Sprintf("ptp %s %g %g %g %g", mode, x, y, z, r))
}

func (f *fakeArm) SetJOGCmd(_ context.Context, isJoint bool, cmd dobot.JOGCommand) (uint64, error) {
	return f.record(fmt.Sprintf("jog %s %v", cmd, isJoint))
}

func (f *fakeArm) SetWAITCmd(_ context.Context, ms uint32) (uint64, error) {
	return f.record(fmt.Sprintf("wait %d", ms))
}

func (f *fakeArm) control(name string) error {
	_, err := f.record(name)
	return err
}

func (f *fakeArm) Play(context.Context) error                { return f.control("play") }
func (f *fakeArm) Stop(context.Context) error                { return f.control("stop") }
func (f *fakeArm) ForceStop(context.Context) error           { return f.control("force-stop") }
func (f *fakeArm) Clear(context.Context) error               { return f.control("clear") }
func (f *fakeArm) ClearAllAlarmsState(context.Context) error { return f.control("clear-alarms") }

func TestParseMonitorCommand(t *testing.T) {
	tests := []struct {
		line   string
		call   string
		result string
	}{
		{"home", "home", "home queued at index 1"},
		{"ptp movj_xyz 200 0 50 0", "ptp MOVJ_XYZ 200 0 50 0", "MOVJ_XYZ queued at index 1"},
		{"  MOVL_XYZ 180 -20.5 40 90 ", "ptp MOVL_XYZ 180 -20.5 40 90", "MOVL_XYZ queued at index 1"},
		{"jog ap_down", "jog AP_DOWN false", "jog AP_DOWN queued at index 1"},
		{"jog 0 joint", "jog IDLE true", "jog IDLE queued at index 1"},
		{"wait 250", "wait 250", "wait queued at index 1"},
		{"play", "play", "queue running"},
		{"stop", "stop", "queue paused"},
		{"force-stop", "force-stop", "queue stopped"},
		{"clear", "clear", "queue cleared"},
		{"clear-alarms", "clear-alarms", "alarms cleared"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			action, err := parseMonitorCommand(tt.line)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			fake := &fakeArm{}
			result, err := action(context.Background(), fake)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(fake.calls) != 1 || fake.calls[0] != tt.call {
				t.Errorf("calls = %q, want [%q]", fake.calls, tt.call)
			}
			if result != tt.result {
				t.Errorf("result = %q, want %q", result, tt.result)
			}
		})
	}
}

func TestParseMonitorCommand_Rejects(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", "empty"},
		{"fly 1 2 3", "unknown command"},
		{"home now", "no arguments"},
		{"play 1", "no arguments"},
		{"ptp", "usage"},
		{"ptp movj_xyz 1 2 3", "usage"},
		{"movj_xyz 1 2 three 4", "invalid coordinate"},
		{"ptp sideways 1 2 3 4", "unknown ptp mode"},
		{"jog up", "unknown jog command"},
		{"jog ap_down joints", "usage"},
		{"wait -5", "invalid wait"},
		{"wait", "usage"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			action, err := parseMonitorCommand(tt.line)
			if err == nil {
				t.Fatalf("accepted %q", tt.line)
			}
			if action != nil {
				t.Error("action returned with error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseMonitorCommand_PropagatesErrors(t *testing.T) {
	boom := errors.New("link down")
	for _, line := range []string{"home", "play"} {
		action, err := parseMonitorCommand(line)
		if err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		if _, err := action(context.Background(), &fakeArm{err: boom}); !errors.Is(err, boom) {
			t.Errorf("%s: err = %v", line, err)
		}
	}
}

func TestParseMonitorCommand_Help(t *testing.T) {
	action, err := parseMonitorCommand("help")
	if err != nil {
		t.Fatal(err)
	}
	fake := &fakeArm{}
	result, _ := action(context.Background(), fake)
	if !strings.Contains(result, "jog") || len(fake.calls) != 0 {
		t.Errorf("help = %q, calls = %q", result, fake.calls)
	}
}
