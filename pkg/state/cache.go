// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package state holds the most recent device state observed by the poller.
//
// Each field group has its own lock and is replaced wholesale, so a reader
// always sees a value written by a single update. Reads return copies and
// never wait on I/O.
package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// ErrClosed is returned by WaitIndex once the cache is closed.
var ErrClosed = errors.New("state cache closed")

// QueueStatus is the device's queued-command progress
type QueueStatus struct {
	CurrentIndex uint64
	LeftSpace    uint32
	UpdatedAt    time.Time
}

// LinkStatus describes how fresh the cached values are
type LinkStatus struct {
	Degraded            bool
	ConsecutiveFailures int
	LastSuccess         time.Time
	LastError           error
	LastErrorAt         time.Time
}

// Stale reports whether no successful refresh happened within maxAge of now.
func (l LinkStatus) Stale(now time.Time, maxAge time.Duration) bool {
	return l.LastSuccess.IsZero() || now.Sub(l.LastSuccess) > maxAge
}

// Cache is the shared device snapshot. The poller writes it; any goroutine
// may read it.
type Cache struct {
	poseMu sync.RWMutex
	pose   dobot.Pose
	poseAt time.Time

	alarmsMu sync.RWMutex
	alarms   dobot.AlarmsState
	alarmsAt time.Time

	queueMu sync.RWMutex
	queue   QueueStatus
	gen     uint64        // bumped by ResetQueue
	notify  chan struct{} // closed and replaced when CurrentIndex advances
	closed  bool

	linkMu sync.RWMutex
	link   LinkStatus
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		notify: make(chan struct{}),
	}
}

// Pose returns the last pose and when it was read
func (c *Cache) Pose() (dobot.Pose, time.Time) {
	c.poseMu.RLock()
	defer c.poseMu.RUnlock()
	return c.pose, c.poseAt
}

// SetPose replaces the cached pose
func (c *Cache) SetPose(p dobot.Pose) {
	c.poseMu.Lock()
	c.pose = p
	c.poseAt = time.Now()
	c.poseMu.Unlock()
}

// Alarms returns the last alarm bitfield and when it was read
func (c *Cache) Alarms() (dobot.AlarmsState, time.Time) {
	c.alarmsMu.RLock()
	defer c.alarmsMu.RUnlock()
	return c.alarms, c.alarmsAt
}

// SetAlarms replaces the cached alarm bitfield
func (c *Cache) SetAlarms(a dobot.AlarmsState) {
	c.alarmsMu.Lock()
	c.alarms = a
	c.alarmsAt = time.Now()
	c.alarmsMu.Unlock()
}

// QueueStatus returns the last queue progress
func (c *Cache) QueueStatus() QueueStatus {
	c.queueMu.RLock()
	defer c.queueMu.RUnlock()
	return c.queue
}

// QueueGeneration identifies the current queue epoch. Capture it before
// sending an index query and pass it to SetCurrentIndexAt with the answer.
func (c *Cache) QueueGeneration() uint64 {
	c.queueMu.RLock()
	defer c.queueMu.RUnlock()
	return c.gen
}

// SetCurrentIndex records the device's executing queue index. The index
// never moves backwards; a lower value is ignored and false is returned.
// Use ResetQueue when the device queue is cleared.
func (c *Cache) SetCurrentIndex(idx uint64) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return c.setIndexLocked(idx)
}

// SetCurrentIndexAt is SetCurrentIndex for an answer to a query sent during
// generation gen. Answers from before the last ResetQueue are dropped.
func (c *Cache) SetCurrentIndexAt(gen, idx uint64) bool {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if gen != c.gen {
		return false
	}
	return c.setIndexLocked(idx)
}

func (c *Cache) setIndexLocked(idx uint64) bool {
	if idx < c.queue.CurrentIndex {
		return false
	}
	advanced := idx > c.queue.CurrentIndex
	c.queue.CurrentIndex = idx
	c.queue.UpdatedAt = time.Now()
	if advanced {
		c.wakeLocked()
	}
	return true
}

// SetLeftSpace records the number of free queue slots
func (c *Cache) SetLeftSpace(n uint32) {
	c.queueMu.Lock()
	c.queue.LeftSpace = n
	c.queue.UpdatedAt = time.Now()
	c.queueMu.Unlock()
}

// SetQueueStatus records both queue values at once, with the same ordering
// rule as SetCurrentIndex.
func (c *Cache) SetQueueStatus(idx uint64, leftSpace uint32) bool {
	ok := c.SetCurrentIndex(idx)
	c.SetLeftSpace(leftSpace)
	return ok
}

// ResetQueue forgets the current index after the device queue is cleared
// and starts a new queue generation.
func (c *Cache) ResetQueue() {
	c.queueMu.Lock()
	c.gen++
	c.queue.CurrentIndex = 0
	c.queue.UpdatedAt = time.Now()
	c.wakeLocked()
	c.queueMu.Unlock()
}

// WaitIndex blocks until the observed CurrentIndex reaches idx, ctx ends or
// the cache is closed.
func (c *Cache) WaitIndex(ctx context.Context, idx uint64) error {
	for {
		c.queueMu.RLock()
		current, closed, notify := c.queue.CurrentIndex, c.closed, c.notify
		c.queueMu.RUnlock()

		if current >= idx {
			return nil
		}
		if closed {
			return ErrClosed
		}

		select {
		case <-notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close releases every WaitIndex caller with ErrClosed
func (c *Cache) Close() {
	c.queueMu.Lock()
	if !c.closed {
		c.closed = true
		c.wakeLocked()
	}
	c.queueMu.Unlock()
}

func (c *Cache) wakeLocked() {
	close(c.notify)
	c.notify = make(chan struct{})
}

// Link returns the link freshness status
func (c *Cache) Link() LinkStatus {
	c.linkMu.RLock()
	defer c.linkMu.RUnlock()
	return c.link
}

// RecordSuccess clears the failure count and the degraded flag
func (c *Cache) RecordSuccess() {
	c.linkMu.Lock()
	c.link.Degraded = false
	c.link.ConsecutiveFailures = 0
	c.link.LastSuccess = time.Now()
	c.linkMu.Unlock()
}

// RecordFailure counts a failed refresh. The link is marked degraded once
// threshold consecutive failures are reached; the return value reports
// whether this call made that transition.
func (c *Cache) RecordFailure(err error, threshold int) bool {
	c.linkMu.Lock()
	defer c.linkMu.Unlock()

	c.link.ConsecutiveFailures++
	c.link.LastError = err
	c.link.LastErrorAt = time.Now()

	if !c.link.Degraded && c.link.ConsecutiveFailures >= threshold {
		c.link.Degraded = true
		return true
	}
	return false
}
