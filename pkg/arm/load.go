// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package arm

import (
	"context"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/script"
)

// Load parses a YAML or CBOR script and queues every step on the device.
// It returns the queue index of the last step, which can be passed to
// WaitQueued. Nothing is sent if the script does not validate.
func (a *Arm) Load(ctx context.Context, path string) (uint64, error) {
	s, err := script.LoadFile(path)
	if err != nil {
		return 0, err
	}

	last, err := s.Run(ctx, a)
	if err != nil {
		return last, err
	}

	a.logger.Info("script queued",
		zap.String("path", path),
		zap.String("name", s.Name),
		zap.Int("steps", len(s.Steps)),
		zap.Uint64("last_index", last))
	return last, nil
}
