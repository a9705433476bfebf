// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import "fmt"

// Encode builds a complete wire frame for a command.
func Encode(id CommandID, queued, write bool, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	frame := make([]byte, 0, FrameOverhead+len(payload))
	frame = append(frame, SyncByte, SyncByte)
	frame = append(frame, byte(MinLength+len(payload)))

	// Checksum covers control, id and payload
	body := len(frame)
	frame = append(frame, ControlByte(queued, write), byte(id))
	frame = append(frame, payload...)
	frame = append(frame, CalculateChecksum(frame[body:]))

	return frame, nil
}

// EncodeFrame encodes an existing Frame to wire format.
func EncodeFrame(f *Frame) ([]byte, error) {
	return Encode(f.ID, f.Queued, f.Write, f.Payload)
}

// MustEncodeFrame encodes a Frame and panics on error. Use it only with
// builder output, whose payloads are always within bounds.
func MustEncodeFrame(f *Frame) []byte {
	data, err := EncodeFrame(f)
	if err != nil {
		panic(fmt.Sprintf("dobot: encode error: %v", err))
	}
	return data
}
