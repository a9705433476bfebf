// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// Defaults for Config
const (
	DefaultTimeout      = 500 * time.Millisecond
	DefaultResyncBudget = 256
	readBufferSize      = 512
	closeWait           = time.Second
)

// Config tunes a Dispatcher
type Config struct {
	// Timeout is the response window measured from the moment the request
	// is written.
	Timeout time.Duration

	// ResyncBudget is the number of bytes that may be discarded without a
	// valid frame before outstanding requests fail with ErrCorruptResponse.
	ResyncBudget int
}

// DefaultConfig returns the default dispatcher settings
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		ResyncBudget: DefaultResyncBudget,
	}
}

// Dispatcher owns one transport. It writes encoded requests, reads and
// decodes responses on a single goroutine, and routes each response to the
// request waiting for it.
type Dispatcher struct {
	conn    io.ReadWriteCloser
	cfg     Config
	logger  *zap.Logger
	pending *PendingTable
	stats   *Statistics

	writeMu  sync.Mutex    // registration + write are one step
	exchange chan struct{} // held for a full non-pipelined exchange

	closing   chan struct{}
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewDispatcher starts the reader goroutine on conn. The dispatcher owns conn
// from here on; Close closes it.
func NewDispatcher(conn io.ReadWriteCloser, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ResyncBudget <= 0 {
		cfg.ResyncBudget = DefaultResyncBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		conn:     conn,
		cfg:      cfg,
		logger:   logger.Named("link"),
		pending:  NewPendingTable(),
		stats:    NewStatistics(),
		exchange: make(chan struct{}, 1),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.readLoop()
	return d
}

// Send issues a command and waits for its response payload using the
// configured timeout.
func (d *Dispatcher) Send(ctx context.Context, id dobot.CommandID, queued, write bool, payload []byte) ([]byte, error) {
	return d.SendTimeout(ctx, id, queued, write, payload, d.cfg.Timeout)
}

// SendFrame issues a prepared frame, as built by the dobot command builders.
func (d *Dispatcher) SendFrame(ctx context.Context, f *dobot.Frame) ([]byte, error) {
	return d.Send(ctx, f.ID, f.Queued, f.Write, f.Payload)
}

// SendTimeout is Send with an explicit response window.
//
// Immediate reads are pipelined: several may be in flight, including
// several for the same command. Writes and queued commands wait for any
// other such exchange to finish first so the device answers them in order.
func (d *Dispatcher) SendTimeout(ctx context.Context, id dobot.CommandID, queued, write bool, payload []byte, timeout time.Duration) ([]byte, error) {
	wire, err := dobot.Encode(id, queued, write, payload)
	if err != nil {
		return nil, err
	}

	select {
	case <-d.closing:
		return nil, d.closeErr
	default:
	}

	pipelined := Pipelinable(queued, write)
	held := false // the exchange slot was handed to awaitLate
	if !pipelined {
		select {
		case d.exchange <- struct{}{}:
			defer func() {
				if !held {
					<-d.exchange
				}
			}()
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.closing:
			return nil, d.closeErr
		}
	}

	key := Key{ID: id, Queued: queued}

	d.writeMu.Lock()
	req, err := d.pending.Register(key, pipelined)
	if err != nil {
		d.writeMu.Unlock()
		return nil, err
	}
	_, err = d.conn.Write(wire)
	d.writeMu.Unlock()

	if err != nil {
		werr := fmt.Errorf("%w: write: %v", ErrTransportClosed, err)
		d.pending.Cancel(req, werr)
		d.shutdown(werr)
		return nil, werr
	}
	d.stats.recordSent(len(wire))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-req.Done():
	case <-timer.C:
		expired := false
		if queued {
			// A queued command may still execute. Its late answer carries
			// a queue index that must not reach the next queued command.
			if hold := d.pending.ExpireAndHold(req); hold != nil {
				expired, held = true, true
				go d.awaitLate(hold, timeout)
			}
		} else {
			expired = d.pending.Expire(req)
		}
		if expired {
			d.stats.recordTimeout()
			d.logger.Debug("request timed out",
				zap.Stringer("command", id),
				zap.Bool("queued", queued),
				zap.Duration("timeout", timeout))
		}
	case <-ctx.Done():
		d.pending.Cancel(req, ctx.Err())
	}

	// Whichever path lost the race, the request now holds exactly one result
	<-req.Done()
	return req.Result()
}

// awaitLate keeps the exchange slot after a queued command timed out until
// its late response arrives or grace passes.
func (d *Dispatcher) awaitLate(hold *Request, grace time.Duration) {
	defer func() { <-d.exchange }()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-hold.Done():
		if _, err := hold.Result(); err == nil {
			d.stats.recordLate()
			d.logger.Debug("late response discarded", zap.Stringer("command", hold.Key.ID))
		}
	case <-timer.C:
		d.pending.Cancel(hold, ErrTimeout)
	}
}

// Done is closed when the reader goroutine exits, after the transport fails
// or Close is called.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Err returns the reason the dispatcher stopped, or nil while it is running.
func (d *Dispatcher) Err() error {
	select {
	case <-d.closing:
		return d.closeErr
	default:
		return nil
	}
}

// Pending returns the number of outstanding requests
func (d *Dispatcher) Pending() int {
	return d.pending.Len()
}

// Statistics returns a snapshot of the link counters
func (d *Dispatcher) Statistics() Stats {
	return d.stats.Snapshot()
}

// Close closes the transport, fails every outstanding request with
// ErrTransportClosed and waits briefly for the reader to exit.
func (d *Dispatcher) Close() error {
	d.shutdown(ErrTransportClosed)

	select {
	case <-d.done:
	case <-time.After(closeWait):
		d.logger.Warn("reader did not exit after close")
	}
	return nil
}

func (d *Dispatcher) shutdown(reason error) {
	d.closeOnce.Do(func() {
		if !errors.Is(reason, ErrTransportClosed) {
			reason = fmt.Errorf("%w: %v", ErrTransportClosed, reason)
		}
		d.closeErr = reason
		close(d.closing)

		if err := d.conn.Close(); err != nil {
			d.logger.Debug("transport close", zap.Error(err))
		}
		if n := d.pending.Close(reason); n > 0 {
			d.logger.Info("failed outstanding requests", zap.Int("count", n), zap.Error(reason))
		}
	})
}

func (d *Dispatcher) readLoop() {
	defer close(d.done)

	decoder := dobot.NewDecoder()
	buf := make([]byte, readBufferSize)
	baseline := 0

	for {
		n, err := d.conn.Read(buf)
		if n > 0 {
			d.stats.recordRead(n)
			decoder.Feed(buf[:n])
			baseline = d.drain(decoder, baseline)
		}
		if err != nil {
			select {
			case <-d.closing:
				// Close already recorded the reason
			default:
				if errors.Is(err, io.EOF) {
					d.logger.Info("transport closed by peer")
				} else {
					d.logger.Warn("transport read failed", zap.Error(err))
				}
				d.shutdown(fmt.Errorf("%w: read: %v", ErrTransportClosed, err))
			}
			return
		}
	}
}

// drain routes every complete frame in the decoder. baseline is the skipped
// count at the last resync failure, so the budget restarts after each one.
func (d *Dispatcher) drain(decoder *dobot.Decoder, baseline int) int {
	for {
		before := decoder.Skipped()
		frame, err := decoder.Next()
		if dropped := decoder.Skipped() - before; dropped > 0 {
			d.stats.recordDiscard(dropped)
		}

		if err != nil {
			if decoder.Skipped()-baseline > d.cfg.ResyncBudget {
				n := d.pending.FailAll(ErrCorruptResponse)
				d.stats.recordResync()
				d.logger.Warn("resync budget exhausted",
					zap.Int("discarded", decoder.Skipped()-baseline),
					zap.Int("failed_requests", n))
				baseline = decoder.Skipped()
			}
			continue
		}
		if frame == nil {
			return baseline
		}

		d.stats.recordFrame()
		if !d.pending.Resolve(KeyOf(frame), frame.Payload) {
			d.stats.recordOrphan()
			d.logger.Debug("orphan response",
				zap.Stringer("command", frame.ID),
				zap.Bool("queued", frame.Queued))
		}
		baseline = 0
	}
}
