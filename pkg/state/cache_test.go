// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/magician/pkg/dobot"
)

func TestCache_PoseCopyOut(t *testing.T) {
	c := NewCache()

	if _, at := c.Pose(); !at.IsZero() {
		t.Error("empty cache reported an update time")
	}

	p := dobot.Pose{X: 1, Y: 2, Z: 3, R: 4}
	c.SetPose(p)
	got, at := c.Pose()
	if got != p || at.IsZero() {
		t.Fatalf("Pose = %+v at %v", got, at)
	}

	// Mutating the copy must not touch the cache
	got.X = 99
	if again, _ := c.Pose(); again.X != 1 {
		t.Error("cache shared memory with a caller copy")
	}
}

func TestCache_NoTornPose(t *testing.T) {
	c := NewCache()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			v := float32(i)
			c.SetPose(dobot.Pose{X: v, Y: v, Z: v, R: v, JointAngle: [4]float32{v, v, v, v}})
		}
	}()

	for i := 0; i < 10000; i++ {
		p, _ := c.Pose()
		for _, f := range []float32{p.Y, p.Z, p.R, p.JointAngle[0], p.JointAngle[3]} {
			if f != p.X {
				close(stop)
				wg.Wait()
				t.Fatalf("torn read: %+v", p)
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestCache_CurrentIndexMonotonic(t *testing.T) {
	c := NewCache()
	rng := rand.New(rand.NewSource(1))

	var last uint64
	for i := 0; i < 1000; i++ {
		idx := uint64(rng.Intn(500))
		accepted := c.SetCurrentIndex(idx)
		got := c.QueueStatus().CurrentIndex

		if got < last {
			t.Fatalf("index went backwards: %d -> %d", last, got)
		}
		if accepted != (idx >= last) {
			t.Fatalf("SetCurrentIndex(%d) accepted=%v with last=%d", idx, accepted, last)
		}
		last = got
	}

	c.ResetQueue()
	if got := c.QueueStatus().CurrentIndex; got != 0 {
		t.Errorf("CurrentIndex after ResetQueue = %d", got)
	}
	if !c.SetCurrentIndex(3) {
		t.Error("low index rejected after ResetQueue")
	}
}

func TestCache_StaleGenerationAfterReset(t *testing.T) {
	c := NewCache()
	c.SetCurrentIndex(40)

	// An index query is sent, then the queue is cleared before its answer
	// is written
	gen := c.QueueGeneration()
	c.ResetQueue()
	if c.QueueGeneration() == gen {
		t.Fatal("ResetQueue did not start a new generation")
	}

	if c.SetCurrentIndexAt(gen, 42) {
		t.Error("answer from before the clear was accepted")
	}
	if got := c.QueueStatus().CurrentIndex; got != 0 {
		t.Fatalf("CurrentIndex = %d, want 0", got)
	}

	gen = c.QueueGeneration()
	if !c.SetCurrentIndexAt(gen, 1) {
		t.Error("first index after the clear was rejected")
	}
	if c.SetCurrentIndexAt(gen, 0) {
		t.Error("lower index accepted within one generation")
	}
	if got := c.QueueStatus().CurrentIndex; got != 1 {
		t.Errorf("CurrentIndex = %d, want 1", got)
	}
}

func TestCache_SetQueueStatus(t *testing.T) {
	c := NewCache()
	c.SetQueueStatus(10, 30)
	c.SetQueueStatus(5, 31)

	q := c.QueueStatus()
	if q.CurrentIndex != 10 || q.LeftSpace != 31 || q.UpdatedAt.IsZero() {
		t.Errorf("QueueStatus = %+v", q)
	}
}

func TestCache_WaitIndex(t *testing.T) {
	c := NewCache()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitIndex(context.Background(), 5)
	}()

	for i := uint64(1); i <= 4; i++ {
		c.SetCurrentIndex(i)
	}
	select {
	case err := <-done:
		t.Fatalf("WaitIndex returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	c.SetCurrentIndex(7)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("WaitIndex = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIndex not released")
	}

	// Already reached
	if err := c.WaitIndex(context.Background(), 7); err != nil {
		t.Errorf("WaitIndex on reached index = %v", err)
	}
}

func TestCache_WaitIndexCancelAndClose(t *testing.T) {
	c := NewCache()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := c.WaitIndex(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitIndex err = %v, want DeadlineExceeded", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.WaitIndex(context.Background(), 100)
	}()
	time.Sleep(5 * time.Millisecond)
	c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not release waiter")
	}
}

func TestCache_LinkStatus(t *testing.T) {
	c := NewCache()
	fail := errors.New("no response")

	if !c.Link().Stale(time.Now(), time.Second) {
		t.Error("never-refreshed link should be stale")
	}

	for i := 1; i <= 4; i++ {
		if c.RecordFailure(fail, 5) {
			t.Fatalf("degraded after %d failures", i)
		}
	}
	if !c.RecordFailure(fail, 5) {
		t.Fatal("fifth failure did not degrade the link")
	}
	if c.RecordFailure(fail, 5) {
		t.Error("transition reported twice")
	}

	l := c.Link()
	if !l.Degraded || l.ConsecutiveFailures != 6 || !errors.Is(l.LastError, fail) {
		t.Errorf("Link = %+v", l)
	}

	c.RecordSuccess()
	l = c.Link()
	if l.Degraded || l.ConsecutiveFailures != 0 || l.Stale(time.Now(), time.Second) {
		t.Errorf("Link after success = %+v", l)
	}
}
