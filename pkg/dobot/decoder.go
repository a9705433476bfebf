// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"time"
)

// Decode validates the frame at the start of window.
//
// On success it returns the frame and the number of bytes it occupied. If the
// window ends early it returns a *NeedMoreError. Any framing or checksum
// failure returns an error wrapping ErrCorruptFrame; the caller advances one
// byte and tries again.
func Decode(window []byte) (*Frame, int, error) {
	// Sync marker, checked byte by byte so a partial marker waits for more
	for i := 0; i < SyncSize; i++ {
		if i >= len(window) {
			return nil, 0, &NeedMoreError{Need: SyncSize + 1 - len(window)}
		}
		if window[i] != SyncByte {
			return nil, 0, corrupt("sync byte %d is 0x%02X", i, window[i])
		}
	}
	if len(window) < SyncSize+1 {
		return nil, 0, &NeedMoreError{Need: SyncSize + 1 - len(window)}
	}

	length := int(window[SyncSize])
	if length < MinLength {
		return nil, 0, corrupt("invalid length: %d (min %d)", length, MinLength)
	}

	// The control byte is validated as soon as it arrives so garbage with a
	// large length byte is rejected without waiting for the whole frame
	if len(window) > SyncSize+1 && window[SyncSize+1]&ctrlReserved != 0 {
		return nil, 0, corrupt("reserved control bits set: 0x%02X", window[SyncSize+1])
	}

	total := SyncSize + 1 + length
	if len(window) < total {
		return nil, 0, &NeedMoreError{Need: total - len(window)}
	}

	body := window[SyncSize+1 : total]
	if !VerifyChecksum(body) {
		return nil, 0, corrupt("checksum mismatch: got 0x%02X, expected 0x%02X",
			body[len(body)-1], CalculateChecksum(body[:len(body)-1]))
	}

	ctrl := body[0]
	payload := make([]byte, length-MinLength)
	copy(payload, body[2:len(body)-1])

	return &Frame{
		ID:        CommandID(body[1]),
		Queued:    ctrl&CtrlQueued != 0,
		Write:     ctrl&CtrlWrite != 0,
		Payload:   payload,
		Checksum:  body[len(body)-1],
		Timestamp: time.Now(),
	}, total, nil
}

// Decoder accumulates a byte stream and yields validated frames,
// resynchronizing one byte at a time after corruption.
//
// Bytes are only ever discarded by Next, so once the buffer is drained at
// most one partial frame (under MaxFrameSize bytes) remains.
type Decoder struct {
	buffer  []byte
	skipped int // bytes discarded since the last valid frame
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{
		buffer: make([]byte, 0, MaxFrameSize),
	}
}

// Reset drops buffered bytes and counters
func (d *Decoder) Reset() {
	d.buffer = d.buffer[:0]
	d.skipped = 0
}

// Feed appends raw bytes from the transport. Call Next until it returns
// (nil, nil) to drain them.
func (d *Decoder) Feed(p []byte) {
	d.buffer = append(d.buffer, p...)
}

// Buffered returns the number of bytes waiting to be decoded
func (d *Decoder) Buffered() int {
	return len(d.buffer)
}

// Skipped returns the number of bytes discarded since the last valid frame
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Next returns the next frame in the buffer.
//
// It returns (nil, nil) when more bytes are needed. When the head of the
// buffer is corrupt it discards exactly one byte and returns the corruption
// error; call Next again to continue.
func (d *Decoder) Next() (*Frame, error) {
	if len(d.buffer) == 0 {
		return nil, nil
	}

	frame, n, err := Decode(d.buffer)
	switch {
	case err == nil:
		d.consume(n)
		d.skipped = 0
		return frame, nil
	case isNeedMore(err):
		// A partial head waits. Sync pairs inside its extent are payload
		// bytes and must not be decoded on their own.
		if frame, n := d.tripleSync(); frame != nil {
			d.consume(1 + n)
			d.skipped = 0
			return frame, nil
		}
		return nil, nil
	default:
		d.consume(1)
		d.skipped++
		return nil, err
	}
}

// DecodeByte feeds a single byte and returns a completed frame, if any.
// The first corruption error is returned when no frame completes.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	d.Feed([]byte{b})

	var firstErr error
	for {
		frame, err := d.Next()
		if err == nil {
			if frame == nil {
				return nil, firstErr
			}
			return frame, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
}

// tripleSync resolves AA AA AA in favour of the later pair when that pair
// starts a complete frame. A real frame would need length 0xAA, control 0x03
// and a matching checksum at offset 6 to be mistaken for one.
func (d *Decoder) tripleSync() (*Frame, int) {
	if len(d.buffer) <= SyncSize || d.buffer[SyncSize] != SyncByte {
		return nil, 0
	}
	frame, n, err := Decode(d.buffer[1:])
	if err != nil {
		return nil, 0
	}
	return frame, n
}

func (d *Decoder) consume(n int) {
	d.buffer = append(d.buffer[:0], d.buffer[n:]...)
}

func isNeedMore(err error) bool {
	_, ok := err.(*NeedMoreError)
	return ok
}
