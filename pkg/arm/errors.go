// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned before any I/O when a call carries a value
// the firmware would not accept.
var ErrInvalidArgument = errors.New("invalid argument")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
