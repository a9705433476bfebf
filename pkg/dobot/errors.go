// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package dobot

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptFrame is returned by Decode when the window does not start
	// with a valid frame. The caller discards one byte and retries.
	ErrCorruptFrame = errors.New("corrupt frame")

	// ErrNeedMoreBytes is matched by *NeedMoreError.
	ErrNeedMoreBytes = errors.New("need more bytes")

	// ErrPayloadTooLarge is returned by Encode for payloads over MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrShortPayload is returned when a response payload is smaller than
	// the block it should decode into.
	ErrShortPayload = errors.New("short payload")
)

// NeedMoreError reports that the window ends before the declared frame does.
type NeedMoreError struct {
	// Need is the number of additional bytes required
	Need int
}

func (e *NeedMoreError) Error() string {
	return fmt.Sprintf("need %d more bytes", e.Need)
}

// Is lets errors.Is match ErrNeedMoreBytes.
func (e *NeedMoreError) Is(target error) bool {
	return target == ErrNeedMoreBytes
}

func corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorruptFrame, fmt.Sprintf(format, args...))
}

func shortPayload(what string, got, want int) error {
	return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPayload, what, want, got)
}
