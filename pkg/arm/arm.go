// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package arm is the public driver API for a Dobot Magician.
//
// An Arm owns one transport. It runs a reader goroutine that correlates
// responses with requests and, unless disabled, a poller that keeps pose,
// alarms and queue progress cached. Every method is safe for concurrent use.
//
// Motion commands are queued on the device and return the queue index the
// device assigned; WaitQueued blocks until execution reaches it.
//
//	a, err := arm.Open(conn)
//	if err != nil {
//		return err
//	}
//	defer a.Close()
//
//	idx, err := a.SetPTPCmd(ctx, dobot.MovJXYZ, 200, 0, 50, 0)
//	if err != nil {
//		return err
//	}
//	err = a.WaitQueued(ctx, idx)
package arm

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/poller"
	"github.com/Thermoquad/magician/pkg/state"
)

// Arm is an open connection to one device.
type Arm struct {
	cfg    Config
	logger *zap.Logger
	disp   *link.Dispatcher
	cache  *state.Cache

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open takes ownership of conn and starts the reader and, unless
// WithoutPolling is given, the poller.
func Open(conn io.ReadWriteCloser, opts ...Option) (*Arm, error) {
	if conn == nil {
		return nil, errors.New("arm: nil transport")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Arm{
		cfg:    cfg,
		logger: logger.Named("arm"),
		disp:   link.NewDispatcher(conn, cfg.Link, logger),
		cache:  state.NewCache(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if cfg.Polling {
		p, err := poller.New(cfg.Poll, a.disp, a.cache, logger)
		if err != nil {
			cancel()
			a.disp.Close()
			return nil, err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			p.Run(ctx)
		}()
	}

	// Waiters on the queue index must not outlive the link
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		select {
		case <-ctx.Done():
		case <-a.disp.Done():
			a.cache.Close()
		}
	}()

	a.logger.Debug("connection open",
		zap.Duration("timeout", cfg.Link.Timeout),
		zap.Bool("polling", cfg.Polling),
		zap.Duration("poll_interval", cfg.Poll.Interval))
	return a, nil
}

// Close stops the poller, closes the transport and fails every outstanding
// request with link.ErrTransportClosed.
func (a *Arm) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.cancel()
		err = a.disp.Close()
		a.cache.Close()
		a.wg.Wait()
		a.logger.Debug("connection closed")
	})
	return err
}

// Done is closed when the link is gone, after Close or a transport failure.
func (a *Arm) Done() <-chan struct{} {
	return a.disp.Done()
}

// LinkStatus reports how fresh the cached state is
func (a *Arm) LinkStatus() state.LinkStatus {
	return a.cache.Link()
}

// Snapshot copies the whole cached state
func (a *Arm) Snapshot() state.Snapshot {
	return a.cache.Snapshot()
}

// Statistics returns the link traffic counters
func (a *Arm) Statistics() link.Stats {
	return a.disp.Statistics()
}

//////////////////////////////////////////////////////////////
// Request helpers
//////////////////////////////////////////////////////////////

func (a *Arm) send(ctx context.Context, f *dobot.Frame) ([]byte, error) {
	payload, err := a.disp.SendFrame(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.ID, err)
	}
	return payload, nil
}

// enqueue sends a queued command and returns the index the device assigned
func (a *Arm) enqueue(ctx context.Context, f *dobot.Frame) (uint64, error) {
	payload, err := a.send(ctx, f)
	if err != nil {
		return 0, err
	}
	idx, err := dobot.ParseQueuedIndex(payload)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.ID, err)
	}
	return idx, nil
}

// setParams writes a parameter block, queued or immediate. Immediate writes
// return index 0.
func (a *Arm) setParams(ctx context.Context, id dobot.CommandID, queued bool, block encoding.BinaryMarshaler) (uint64, error) {
	f, err := dobot.NewParams(id, queued, block)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", id, err)
	}
	if queued {
		return a.enqueue(ctx, f)
	}
	_, err = a.send(ctx, f)
	return 0, err
}

// getParams reads a parameter block into dst
func (a *Arm) getParams(ctx context.Context, id dobot.CommandID, dst encoding.BinaryUnmarshaler) error {
	payload, err := a.send(ctx, dobot.NewQuery(id))
	if err != nil {
		return err
	}
	if err := dst.UnmarshalBinary(payload); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	return nil
}

func (a *Arm) control(ctx context.Context, id dobot.CommandID) error {
	_, err := a.send(ctx, dobot.NewControl(id))
	return err
}

func (a *Arm) readString(ctx context.Context, id dobot.CommandID) (string, error) {
	payload, err := a.send(ctx, dobot.NewQuery(id))
	if err != nil {
		return "", err
	}
	return dobot.ParseString(payload), nil
}
