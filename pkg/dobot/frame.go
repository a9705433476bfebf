// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"encoding/binary"
	"time"
)

// Frame is one decoded protocol frame
type Frame struct {
	ID        CommandID
	Queued    bool
	Write     bool
	Payload   []byte
	Checksum  byte
	Timestamp time.Time
}

// NewFrame creates a frame ready for encoding
func NewFrame(id CommandID, queued, write bool, payload []byte) *Frame {
	return &Frame{
		ID:        id,
		Queued:    queued,
		Write:     write,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Control returns the packed control byte
func (f *Frame) Control() byte {
	return ControlByte(f.Queued, f.Write)
}

// Length returns the value of the frame's length byte
func (f *Frame) Length() uint8 {
	return uint8(MinLength + len(f.Payload))
}

// QueuedIndex returns the device-assigned queue index carried by the
// response to a queued command.
func (f *Frame) QueuedIndex() (uint64, bool) {
	if !f.Queued || len(f.Payload) != QueuedIndexSize {
		return 0, false
	}
	return binary.LittleEndian.Uint64(f.Payload), true
}

// ControlByte packs the queued and write flags
func ControlByte(queued, write bool) byte {
	var c byte
	if queued {
		c |= CtrlQueued
	}
	if write {
		c |= CtrlWrite
	}
	return c
}
