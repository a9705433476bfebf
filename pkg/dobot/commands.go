// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import "encoding"

// Command builder functions create Frames ready for encoding.
// They fix the queued/write flags each command uses on the wire.

// NewQuery creates an immediate read with an empty payload
// (GetPose, GetAlarms, GetQueuedCmdCurrentIndex, parameter getters, ...).
func NewQuery(id CommandID) *Frame {
	return NewFrame(id, false, false, nil)
}

// NewControl creates an immediate write with an empty payload
// (ClearAllAlarmsState, SetQueuedCmdStartExec, SetQueuedCmdClear, ...).
func NewControl(id CommandID) *Frame {
	return NewFrame(id, false, true, nil)
}

// NewParams creates a write of a parameter block. Parameter writes may be
// queued behind motion or applied immediately.
func NewParams(id CommandID, queued bool, params encoding.BinaryMarshaler) (*Frame, error) {
	payload, err := params.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return NewFrame(id, queued, true, payload), nil
}

// NewGetPose creates a GetPose request (10).
func NewGetPose() *Frame {
	return NewQuery(CmdGetPose)
}

// NewGetAlarms creates a GetAlarms request (20).
func NewGetAlarms() *Frame {
	return NewQuery(CmdGetAlarms)
}

// NewGetQueuedCmdCurrentIndex creates a GetQueuedCmdCurrentIndex request (246).
func NewGetQueuedCmdCurrentIndex() *Frame {
	return NewQuery(CmdGetQueuedCmdCurrentIndex)
}

// NewGetQueuedCmdLeftSpace creates a GetQueuedCmdLeftSpace request (247).
func NewGetQueuedCmdLeftSpace() *Frame {
	return NewQuery(CmdGetQueuedCmdLeftSpace)
}

// NewPTPCmd creates a queued point-to-point move (84).
// Payload: mode byte followed by x, y, z, r as little-endian float32.
func NewPTPCmd(cmd PTPCmd) *Frame {
	payload, _ := cmd.MarshalBinary()
	return NewFrame(CmdPTPCmd, true, true, payload)
}

// NewCPCmd creates a queued continuous-path segment (91).
func NewCPCmd(cmd CPCmd) *Frame {
	payload, _ := cmd.MarshalBinary()
	return NewFrame(CmdCPCmd, true, true, payload)
}

// NewJOGCmd creates a queued jog command (73).
// Use JogIdle to stop a running jog.
func NewJOGCmd(cmd JOGCmd) *Frame {
	payload, _ := cmd.MarshalBinary()
	return NewFrame(CmdJOGCmd, true, true, payload)
}

// NewWAITCmd creates a queued pause (110).
func NewWAITCmd(cmd WAITCmd) *Frame {
	payload, _ := cmd.MarshalBinary()
	return NewFrame(CmdWAITCmd, true, true, payload)
}

// NewHomeCmd creates a queued homing command (31).
func NewHomeCmd() *Frame {
	payload, _ := HomeCmd{}.MarshalBinary()
	return NewFrame(CmdHomeCmd, true, true, payload)
}

// NewResetPose creates an immediate pose reset (11).
func NewResetPose(p ResetPoseParams) *Frame {
	payload, _ := p.MarshalBinary()
	return NewFrame(CmdResetPose, false, true, payload)
}

// NewSetDeviceName creates an immediate device name write (1).
func NewSetDeviceName(name string) *Frame {
	return NewFrame(CmdDeviceName, false, true, []byte(name))
}
