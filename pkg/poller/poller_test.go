// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/state"
)

// fakeQuerier answers status queries from scripted values
type fakeQuerier struct {
	mu      sync.Mutex
	pose    dobot.Pose
	alarms  dobot.AlarmsState
	indexes []uint64 // consumed one per query; last value repeats
	left    uint32
	fail    error
	onIndex func() // runs while an index query is in flight
	calls   int
	done    chan struct{}
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{done: make(chan struct{}), indexes: []uint64{0}}
}

func (f *fakeQuerier) SendFrame(ctx context.Context, fr *dobot.Frame) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail != nil {
		return nil, f.fail
	}

	switch fr.ID {
	case dobot.CmdGetPose:
		return f.pose.MarshalBinary()
	case dobot.CmdGetAlarms:
		return f.alarms.MarshalBinary()
	case dobot.CmdGetQueuedCmdCurrentIndex:
		if f.onIndex != nil {
			f.onIndex()
		}
		idx := f.indexes[0]
		if len(f.indexes) > 1 {
			f.indexes = f.indexes[1:]
		}
		return dobot.EncodeQueuedIndex(idx), nil
	case dobot.CmdGetQueuedCmdLeftSpace:
		return dobot.EncodeLeftSpace(f.left), nil
	}
	return nil, errors.New("unexpected command")
}

func (f *fakeQuerier) Done() <-chan struct{} { return f.done }

func (f *fakeQuerier) setFail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func newTestPoller(t *testing.T, q Querier, cache *state.Cache) *Poller {
	t.Helper()
	p, err := New(Config{Interval: time.Millisecond, FailureThreshold: 3}, q, cache, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	q := newFakeQuerier()
	cache := state.NewCache()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero interval", Config{Interval: 0, FailureThreshold: 1}},
		{"zero threshold", Config{Interval: time.Second}},
	}
	for _, tt := range tests {
		if _, err := New(tt.cfg, q, cache, nil); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
	if _, err := New(DefaultConfig(), nil, cache, nil); err == nil {
		t.Error("nil querier accepted")
	}
}

func TestPollOnce_UpdatesCache(t *testing.T) {
	q := newFakeQuerier()
	q.pose = dobot.Pose{X: 200, Z: 50}
	q.alarms[0] = 0x01
	q.indexes = []uint64{12}
	q.left = 30

	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	res := p.PollOnce(context.Background())
	if res.Err != nil || res.Updated != 4 {
		t.Fatalf("PollOnce = %+v", res)
	}

	if pose, _ := cache.Pose(); pose != q.pose {
		t.Errorf("pose = %+v", pose)
	}
	if alarms, _ := cache.Alarms(); !alarms.Bit(0) {
		t.Error("alarm bit 0 not cached")
	}
	if qs := cache.QueueStatus(); qs.CurrentIndex != 12 || qs.LeftSpace != 30 {
		t.Errorf("queue = %+v", qs)
	}
	if cache.Link().LastSuccess.IsZero() {
		t.Error("success not recorded")
	}
}

func TestPollOnce_DegradedThreshold(t *testing.T) {
	q := newFakeQuerier()
	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	fail := errors.New("no response")
	q.setFail(fail)

	for i := 1; i <= 2; i++ {
		res := p.PollOnce(context.Background())
		if !errors.Is(res.Err, fail) {
			t.Fatalf("cycle %d err = %v", i, res.Err)
		}
		if cache.Link().Degraded {
			t.Fatalf("degraded after %d cycles, threshold is 3", i)
		}
	}
	p.PollOnce(context.Background())
	if !cache.Link().Degraded {
		t.Fatal("not degraded after 3 failed cycles")
	}

	q.setFail(nil)
	p.PollOnce(context.Background())
	if l := cache.Link(); l.Degraded || l.ConsecutiveFailures != 0 {
		t.Errorf("link after recovery = %+v", l)
	}
}

func TestPollOnce_QueueIndexMonotonic(t *testing.T) {
	q := newFakeQuerier()
	// Scripted responses include a stale, lower index
	q.indexes = []uint64{1, 2, 5, 4, 6, 6, 3, 9}

	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	var last uint64
	for i := 0; i < 8; i++ {
		p.PollOnce(context.Background())
		got := cache.QueueStatus().CurrentIndex
		if got < last {
			t.Fatalf("cycle %d: index went backwards %d -> %d", i, last, got)
		}
		last = got
	}
	if last != 9 {
		t.Errorf("final index = %d, want 9", last)
	}
}

func TestPollOnce_ClearDuringIndexQuery(t *testing.T) {
	q := newFakeQuerier()
	q.indexes = []uint64{42, 1}

	cache := state.NewCache()
	cache.SetCurrentIndex(40)
	p := newTestPoller(t, q, cache)

	// The queue is cleared while the first index query is answered with
	// the old queue's index
	cleared := false
	q.onIndex = func() {
		if !cleared {
			cleared = true
			cache.ResetQueue()
		}
	}

	p.PollOnce(context.Background())
	if got := cache.QueueStatus().CurrentIndex; got != 0 {
		t.Fatalf("index after clear = %d, want 0", got)
	}

	p.PollOnce(context.Background())
	if got := cache.QueueStatus().CurrentIndex; got != 1 {
		t.Errorf("first post-clear index = %d, want 1", got)
	}
}

func TestRun_ExitsOnContextCancel(t *testing.T) {
	q := newFakeQuerier()
	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	ctx, cancel := context.WithCancel(context.Background())
	exited := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(exited)
	}()

	deadline := time.Now().Add(time.Second)
	for cache.Link().LastSuccess.IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("no poll cycle ran")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}

func TestRun_ExitsWhenLinkCloses(t *testing.T) {
	q := newFakeQuerier()
	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	exited := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(exited)
	}()

	close(q.done)
	select {
	case <-exited:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit when the link closed")
	}
}

func TestRun_SurvivesTransientFailures(t *testing.T) {
	q := newFakeQuerier()
	q.setFail(errors.New("noise"))
	cache := state.NewCache()
	p := newTestPoller(t, q, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for !cache.Link().Degraded {
		if time.Now().After(deadline) {
			t.Fatal("link never marked degraded")
		}
		time.Sleep(time.Millisecond)
	}

	q.setFail(nil)
	for cache.Link().Degraded {
		if time.Now().After(deadline.Add(time.Second)) {
			t.Fatal("loop stopped after failures")
		}
		time.Sleep(time.Millisecond)
	}
}
