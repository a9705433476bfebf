// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package poller keeps a state.Cache fresh by querying the device on a fixed
// interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/state"
)

// Defaults for Config
const (
	DefaultInterval         = 50 * time.Millisecond
	DefaultFailureThreshold = 5
)

// Querier sends one request and returns the response payload. Done is
// closed when the link underneath is gone for good.
type Querier interface {
	SendFrame(ctx context.Context, f *dobot.Frame) ([]byte, error)
	Done() <-chan struct{}
}

// Config is the runtime config the poller needs
type Config struct {
	Interval         time.Duration
	FailureThreshold int // consecutive failed cycles before the link is degraded
}

// DefaultConfig returns the default polling settings
func DefaultConfig() Config {
	return Config{
		Interval:         DefaultInterval,
		FailureThreshold: DefaultFailureThreshold,
	}
}

// Result is the outcome of one poll cycle
type Result struct {
	At      time.Time
	Updated int   // field groups refreshed
	Err     error // first failure, nil when every query succeeded
}

// Poller issues the status queries and writes the answers into the cache.
type Poller struct {
	cfg    Config
	q      Querier
	cache  *state.Cache
	logger *zap.Logger
}

// New creates a poller with immutable config.
func New(cfg Config, q Querier, cache *state.Cache, logger *zap.Logger) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, errors.New("poller: failure threshold must be > 0")
	}
	if q == nil || cache == nil {
		return nil, errors.New("poller: querier and cache required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{cfg: cfg, q: q, cache: cache, logger: logger.Named("poller")}, nil
}

type query struct {
	name  string
	frame func() *dobot.Frame
	apply func(c *state.Cache, gen uint64, payload []byte) error
}

var queries = []query{
	{"pose", dobot.NewGetPose, applyPose},
	{"alarms", dobot.NewGetAlarms, applyAlarms},
	{"current index", dobot.NewGetQueuedCmdCurrentIndex, applyCurrentIndex},
	{"left space", dobot.NewGetQueuedCmdLeftSpace, applyLeftSpace},
}

func applyPose(c *state.Cache, _ uint64, payload []byte) error {
	var p dobot.Pose
	if err := p.UnmarshalBinary(payload); err != nil {
		return err
	}
	c.SetPose(p)
	return nil
}

func applyAlarms(c *state.Cache, _ uint64, payload []byte) error {
	var a dobot.AlarmsState
	if err := a.UnmarshalBinary(payload); err != nil {
		return err
	}
	c.SetAlarms(a)
	return nil
}

func applyCurrentIndex(c *state.Cache, gen uint64, payload []byte) error {
	idx, err := dobot.ParseQueuedIndex(payload)
	if err != nil {
		return err
	}
	// A lower index, or one read before a queue clear, is a stale answer
	c.SetCurrentIndexAt(gen, idx)
	return nil
}

func applyLeftSpace(c *state.Cache, _ uint64, payload []byte) error {
	n, err := dobot.ParseLeftSpace(payload)
	if err != nil {
		return err
	}
	c.SetLeftSpace(n)
	return nil
}

// PollOnce performs exactly one poll cycle. Each successful query updates
// its own field group; a failed query does not stop the others unless the
// link itself is gone.
func (p *Poller) PollOnce(ctx context.Context) Result {
	res := Result{At: time.Now()}

	for _, qr := range queries {
		gen := p.cache.QueueGeneration()
		payload, err := p.q.SendFrame(ctx, qr.frame())
		if err == nil {
			err = qr.apply(p.cache, gen, payload)
		}
		if err != nil {
			if res.Err == nil {
				res.Err = fmt.Errorf("%s: %w", qr.name, err)
			}
			if ctx.Err() != nil || p.linkGone() {
				break
			}
			continue
		}
		res.Updated++
	}

	p.record(res)
	return res
}

// Run polls every Interval until ctx is cancelled or the querier's link
// closes. Transient failures never stop the loop. No overlap, no retries.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Debug("polling started", zap.Duration("interval", p.cfg.Interval))
	defer p.logger.Debug("polling stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.q.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

func (p *Poller) record(res Result) {
	if res.Err == nil {
		was := p.cache.Link()
		p.cache.RecordSuccess()
		if was.Degraded {
			p.logger.Info("link recovered", zap.Int("failed_cycles", was.ConsecutiveFailures))
		}
		return
	}

	if p.cache.RecordFailure(res.Err, p.cfg.FailureThreshold) {
		p.logger.Warn("link degraded",
			zap.Int("consecutive_failures", p.cfg.FailureThreshold),
			zap.Error(res.Err))
		return
	}
	p.logger.Debug("poll cycle failed", zap.Int("updated", res.Updated), zap.Error(res.Err))
}

func (p *Poller) linkGone() bool {
	select {
	case <-p.q.Done():
		return true
	default:
		return false
	}
}
