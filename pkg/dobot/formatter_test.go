// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"strings"
	"testing"
)

func TestFormatCommand(t *testing.T) {
	if got := FormatCommand(CmdGetPose); got != "GET_POSE" {
		t.Errorf("FormatCommand(10) = %q", got)
	}
	if got := CommandID(99).String(); got != "UNKNOWN" {
		t.Errorf("CommandID(99) = %q, want UNKNOWN", got)
	}
	if n := len(Commands()); n != len(commandNames) {
		t.Errorf("Commands() has %d entries, want %d", n, len(commandNames))
	}
}

func TestParsePTPMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PTPMode
		wantErr bool
	}{
		{"movj_xyz", MovJXYZ, false},
		{"JUMP_MOVL_XYZ", JumpMovLXYZ, false},
		{" 2 ", MovLXYZ, false},
		{"10", 0, true},
		{"sideways", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePTPMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePTPMode(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePTPMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}

	if s := PTPMode(42).String(); s != "PTP_MODE(42)" {
		t.Errorf("invalid mode string = %q", s)
	}
}

func TestParseJOGCommand(t *testing.T) {
	if c, err := ParseJOGCommand("ap_down"); err != nil || c != JogAPDown {
		t.Errorf("ParseJOGCommand(ap_down) = %v, %v", c, err)
	}
	if c, err := ParseJOGCommand("0"); err != nil || c != JogIdle {
		t.Errorf("ParseJOGCommand(0) = %v, %v", c, err)
	}
	if _, err := ParseJOGCommand("9"); err == nil {
		t.Error("ParseJOGCommand(9) should fail")
	}
}

func TestFormatFrame(t *testing.T) {
	pose := Pose{X: 200, Y: 0, Z: 50}
	payload, _ := pose.MarshalBinary()

	tests := []struct {
		name  string
		frame *Frame
		want  []string
	}{
		{"empty", NewGetPose(), []string{"GET_POSE (10) R len=3", "(no payload)"}},
		{"pose", NewFrame(CmdGetPose, false, false, payload), []string{"X: 200.00", "Z: 50.00"}},
		{"queued index", NewFrame(CmdPTPCmd, true, true, EncodeQueuedIndex(7)), []string{"WQ", "Queued Index: 7"}},
		{"ptp request", NewPTPCmd(PTPCmd{Mode: MovLXYZ, X: 1}), []string{"Mode: MOVL_XYZ"}},
		{"left space", NewFrame(CmdGetQueuedCmdLeftSpace, false, false, EncodeLeftSpace(12)), []string{"Left Space: 12"}},
		{"version", NewFrame(CmdDeviceVersion, false, false, []byte{3, 1, 4}), []string{"Version: 3.1.4"}},
		{"unknown", NewFrame(CommandID(99), false, false, []byte{0xDE, 0xAD}), []string{"UNKNOWN", "DE AD"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatFrame(tt.frame)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestFormatAlarmsAndBytes(t *testing.T) {
	var a AlarmsState
	if got := FormatAlarms(a); got != "none" {
		t.Errorf("FormatAlarms(zero) = %q", got)
	}
	a[1] = 0x01
	if got := FormatAlarms(a); got != "0x08" {
		t.Errorf("FormatAlarms = %q, want 0x08", got)
	}

	if got := FormatBytes(MustEncodeFrame(NewGetPose())); got != "AA AA 03 00 0A F6" {
		t.Errorf("FormatBytes = %q", got)
	}
}
