// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"bytes"
	"encoding"
	"errors"
	"testing"
)

func TestNewPTPCmd_Layout(t *testing.T) {
	frame := NewPTPCmd(PTPCmd{Mode: MovJXYZ, X: 100, Y: 50})

	if frame.ID != CmdPTPCmd || !frame.Queued || !frame.Write {
		t.Fatalf("frame = id %d queued %v write %v, want 84 queued write", frame.ID, frame.Queued, frame.Write)
	}

	want := []byte{
		0x01,                   // MovJXYZ
		0x00, 0x00, 0xC8, 0x42, // 100.0
		0x00, 0x00, 0x48, 0x42, // 50.0
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(frame.Payload, want) {
		t.Errorf("payload = % X, want % X", frame.Payload, want)
	}

	wire := MustEncodeFrame(frame)
	if wire[2] != 0x14 || wire[3] != 0x03 || wire[4] != 84 {
		t.Errorf("header = % X", wire[:5])
	}
}

func TestPose_Layout(t *testing.T) {
	p := Pose{X: 1, Y: 2, Z: 3, R: 4, JointAngle: [JointCount]float32{5, 6, 7, 8}}
	data, _ := p.MarshalBinary()
	if len(data) != 32 {
		t.Fatalf("pose is %d bytes, want 32", len(data))
	}
	// 1.0f is 0x3F800000; x comes first
	if !bytes.Equal(data[:4], []byte{0x00, 0x00, 0x80, 0x3F}) {
		t.Errorf("x = % X", data[:4])
	}

	var got Pose
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != p {
		t.Errorf("got %+v, want %+v", got, p)
	}
}

type block interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

func TestParamBlocks_SizesAndRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		in    encoding.BinaryMarshaler
		out   block
		size  int
		equal func() bool
	}{}

	add := func(name string, size int, in encoding.BinaryMarshaler, out block, equal func() bool) {
		tests = append(tests, struct {
			name  string
			in    encoding.BinaryMarshaler
			out   block
			size  int
			equal func() bool
		}{name, in, out, size, equal})
	}

	home := HomeParams{X: 200, Y: 0, Z: 50, R: 0}
	var homeOut HomeParams
	add("home params", 16, home, &homeOut, func() bool { return homeOut == home })

	reset := ResetPoseParams{Manual: true, RearArmAngle: 45, FrontArmAngle: 30}
	var resetOut ResetPoseParams
	add("reset pose", 9, reset, &resetOut, func() bool { return resetOut == reset })

	jj := JOGJointParams{Velocity: [4]float32{1, 2, 3, 4}, Acceleration: [4]float32{5, 6, 7, 8}}
	var jjOut JOGJointParams
	add("jog joint", 32, jj, &jjOut, func() bool { return jjOut == jj })

	jc := JOGCoordinateParams{Velocity: [4]float32{10, 20, 30, 40}, Acceleration: [4]float32{1, 1, 1, 1}}
	var jcOut JOGCoordinateParams
	add("jog coordinate", 32, jc, &jcOut, func() bool { return jcOut == jc })

	jcom := JOGCommonParams{VelocityRatio: 50, AccelerationRatio: 25}
	var jcomOut JOGCommonParams
	add("jog common", 8, jcom, &jcomOut, func() bool { return jcomOut == jcom })

	jog := JOGCmd{IsJoint: true, Cmd: JogCNDown}
	var jogOut JOGCmd
	add("jog cmd", 2, jog, &jogOut, func() bool { return jogOut == jog })

	pj := PTPJointParams{Velocity: [4]float32{200, 200, 200, 200}, Acceleration: [4]float32{200, 200, 200, 200}}
	var pjOut PTPJointParams
	add("ptp joint", 32, pj, &pjOut, func() bool { return pjOut == pj })

	pc := PTPCoordinateParams{XYZVelocity: 100, RVelocity: 100, XYZAcceleration: 80, RAcceleration: 80}
	var pcOut PTPCoordinateParams
	add("ptp coordinate", 16, pc, &pcOut, func() bool { return pcOut == pc })

	jump := PTPJumpParams{JumpHeight: 20, ZLimit: 100}
	var jumpOut PTPJumpParams
	add("ptp jump", 8, jump, &jumpOut, func() bool { return jumpOut == jump })

	pcom := PTPCommonParams{VelocityRatio: 100, AccelerationRatio: 100}
	var pcomOut PTPCommonParams
	add("ptp common", 8, pcom, &pcomOut, func() bool { return pcomOut == pcom })

	ptp := PTPCmd{Mode: JumpMovLXYZ, X: -10.5, Y: 3.25, Z: 7, R: 90}
	var ptpOut PTPCmd
	add("ptp cmd", 17, ptp, &ptpOut, func() bool { return ptpOut == ptp })

	cp := CPParams{PlanAcc: 100, JunctionVel: 50, Acc: 20, RealTimeTrack: true}
	var cpOut CPParams
	add("cp params", 13, cp, &cpOut, func() bool { return cpOut == cp })

	cpc := CPCmd{Mode: CPAbsolute, X: 1, Y: 2, Z: 3, Velocity: 40}
	var cpcOut CPCmd
	add("cp cmd", 17, cpc, &cpcOut, func() bool { return cpcOut == cpc })

	wait := WAITCmd{TimeoutMs: 1500}
	var waitOut WAITCmd
	add("wait cmd", 4, wait, &waitOut, func() bool { return waitOut == wait })

	angle := ArmAngleError{RearArmAngleError: 0.5, FrontArmAngleError: -0.25}
	var angleOut ArmAngleError
	add("angle error", 8, angle, &angleOut, func() bool { return angleOut == angle })

	ver := DeviceVersion{Major: 3, Minor: 7, Revision: 1}
	var verOut DeviceVersion
	add("device version", 3, ver, &verOut, func() bool { return verOut == ver })

	var alarms AlarmsState
	alarms[0], alarms[15] = 0x01, 0x80
	var alarmsOut AlarmsState
	add("alarms", AlarmsSize, alarms, &alarmsOut, func() bool { return alarmsOut == alarms })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.in.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary: %v", err)
			}
			if len(data) != tt.size {
				t.Fatalf("size = %d, want %d", len(data), tt.size)
			}
			if err := tt.out.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary: %v", err)
			}
			if !tt.equal() {
				t.Errorf("round trip mismatch: %+v", tt.out)
			}
			if err := tt.out.UnmarshalBinary(data[:tt.size-1]); !errors.Is(err, ErrShortPayload) {
				t.Errorf("short payload err = %v, want ErrShortPayload", err)
			}
		})
	}
}

func TestAlarmsState_Bits(t *testing.T) {
	var a AlarmsState
	if a.Any() || len(a.Active()) != 0 {
		t.Fatal("zero alarms should be clear")
	}

	a[0] = 0x05 // bits 0 and 2
	a[2] = 0x10 // bit 20

	want := []int{0, 2, 20}
	got := a.Active()
	if len(got) != len(want) {
		t.Fatalf("Active() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Active()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if !a.Any() || !a.Bit(20) || a.Bit(21) || a.Bit(-1) || a.Bit(AlarmsSize*8) {
		t.Error("Bit/Any disagree with raw bytes")
	}
}

func TestQueuedScalars(t *testing.T) {
	idx, err := ParseQueuedIndex(EncodeQueuedIndex(0x0102030405060708))
	if err != nil || idx != 0x0102030405060708 {
		t.Errorf("ParseQueuedIndex = %#x, %v", idx, err)
	}
	if _, err := ParseQueuedIndex([]byte{1, 2, 3}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short index err = %v", err)
	}

	n, err := ParseLeftSpace(EncodeLeftSpace(32))
	if err != nil || n != 32 {
		t.Errorf("ParseLeftSpace = %d, %v", n, err)
	}
	if _, err := ParseLeftSpace(nil); !errors.Is(err, ErrShortPayload) {
		t.Errorf("short left space err = %v", err)
	}
}

func TestParseString(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{[]byte("Dobot"), "Dobot"},
		{[]byte("Dobot\x00\x00"), "Dobot"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := ParseString(tt.in); got != tt.want {
			t.Errorf("ParseString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModeValidity(t *testing.T) {
	if !JumpMovLXYZ.Valid() || PTPMode(10).Valid() {
		t.Error("PTPMode range is 0..9")
	}
	if !JogDNDown.Valid() || JOGCommand(9).Valid() {
		t.Error("JOGCommand range is 0..8")
	}
}

func TestCommandBuilders_Flags(t *testing.T) {
	tests := []struct {
		name   string
		frame  *Frame
		id     CommandID
		queued bool
		write  bool
	}{
		{"get pose", NewGetPose(), CmdGetPose, false, false},
		{"get alarms", NewGetAlarms(), CmdGetAlarms, false, false},
		{"current index", NewGetQueuedCmdCurrentIndex(), CmdGetQueuedCmdCurrentIndex, false, false},
		{"left space", NewGetQueuedCmdLeftSpace(), CmdGetQueuedCmdLeftSpace, false, false},
		{"clear alarms", NewControl(CmdClearAllAlarmsState), CmdClearAllAlarmsState, false, true},
		{"home", NewHomeCmd(), CmdHomeCmd, true, true},
		{"jog", NewJOGCmd(JOGCmd{Cmd: JogAPDown}), CmdJOGCmd, true, true},
		{"cp", NewCPCmd(CPCmd{}), CmdCPCmd, true, true},
		{"wait", NewWAITCmd(WAITCmd{TimeoutMs: 10}), CmdWAITCmd, true, true},
		{"reset pose", NewResetPose(ResetPoseParams{}), CmdResetPose, false, true},
		{"device name", NewSetDeviceName("arm"), CmdDeviceName, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.frame
			if f.ID != tt.id || f.Queued != tt.queued || f.Write != tt.write {
				t.Errorf("got id=%d queued=%v write=%v", f.ID, f.Queued, f.Write)
			}
		})
	}

	f, err := NewParams(CmdPTPCommonParams, true, PTPCommonParams{VelocityRatio: 50, AccelerationRatio: 50})
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	if !f.Queued || !f.Write || len(f.Payload) != 8 {
		t.Errorf("NewParams frame = %+v", f)
	}
}
