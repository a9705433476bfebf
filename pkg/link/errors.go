// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "errors"

var (
	// ErrTransportClosed is returned for every outstanding and future request
	// once the transport fails or the dispatcher is closed.
	ErrTransportClosed = errors.New("transport closed")

	// ErrTimeout is returned when no response arrives within the window.
	ErrTimeout = errors.New("response timeout")

	// ErrCorruptResponse fails outstanding requests after the resync budget
	// is spent without a valid frame.
	ErrCorruptResponse = errors.New("corrupt response stream")

	// ErrAlreadyPending is returned when a request for the same key is in
	// flight and the command cannot be pipelined.
	ErrAlreadyPending = errors.New("request already pending")
)
