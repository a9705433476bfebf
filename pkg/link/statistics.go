// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Statistics tracks link traffic and error counts. It is safe for
// concurrent use.
type Statistics struct {
	mu sync.Mutex
	s  Stats
}

// Stats is a point-in-time copy of the link counters
type Stats struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
	DiscardedBytes uint64 // bytes dropped while resynchronizing
	Resyncs        uint64 // resync budget exhaustions
	Orphans        uint64 // responses with no matching request
	Timeouts       uint64
	Late           uint64 // responses that arrived after their request timed out

	// Rates (calculated)
	FrameRate float64 // received frames/sec
	ErrorRate float64 // discarded bytes + orphans + timeouts per sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{s: Stats{StartTime: now, LastUpdateTime: now}}
}

func (st *Statistics) update(fn func(s *Stats)) {
	st.mu.Lock()
	fn(&st.s)
	st.s.LastUpdateTime = time.Now()
	st.mu.Unlock()
}

func (st *Statistics) recordSent(n int) {
	st.update(func(s *Stats) {
		s.FramesSent++
		s.BytesSent += uint64(n)
	})
}

func (st *Statistics) recordRead(n int) {
	st.update(func(s *Stats) { s.BytesReceived += uint64(n) })
}

func (st *Statistics) recordFrame() {
	st.update(func(s *Stats) { s.FramesReceived++ })
}

func (st *Statistics) recordDiscard(n int) {
	st.update(func(s *Stats) { s.DiscardedBytes += uint64(n) })
}

func (st *Statistics) recordResync() {
	st.update(func(s *Stats) { s.Resyncs++ })
}

func (st *Statistics) recordOrphan() {
	st.update(func(s *Stats) { s.Orphans++ })
}

func (st *Statistics) recordTimeout() {
	st.update(func(s *Stats) { s.Timeouts++ })
}

func (st *Statistics) recordLate() {
	st.update(func(s *Stats) { s.Late++ })
}

// Snapshot returns a copy of the counters with rates filled in
func (st *Statistics) Snapshot() Stats {
	st.mu.Lock()
	s := st.s
	st.mu.Unlock()

	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.FramesReceived) / elapsed
		s.ErrorRate = float64(s.DiscardedBytes+s.Orphans+s.Timeouts) / elapsed
	}
	return s
}

// Reset resets all statistics counters
func (st *Statistics) Reset() {
	now := time.Now()
	st.mu.Lock()
	st.s = Stats{StartTime: now, LastUpdateTime: now}
	st.mu.Unlock()
}

// String returns a formatted statistics summary
func (s Stats) String() string {
	var b strings.Builder

	elapsed := time.Since(s.StartTime)
	fmt.Fprintf(&b, "=== Link Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	fmt.Fprintf(&b, "Frames Sent:     %8d (%d bytes)\n", s.FramesSent, s.BytesSent)
	fmt.Fprintf(&b, "Frames Received: %8d (%d bytes)\n", s.FramesReceived, s.BytesReceived)

	if s.DiscardedBytes > 0 {
		fmt.Fprintf(&b, "Discarded Bytes: %8d\n", s.DiscardedBytes)
	}
	if s.Resyncs > 0 {
		fmt.Fprintf(&b, "Resync Failures: %8d\n", s.Resyncs)
	}
	if s.Orphans > 0 {
		fmt.Fprintf(&b, "Orphan Frames:   %8d\n", s.Orphans)
	}
	if s.Timeouts > 0 {
		fmt.Fprintf(&b, "Timeouts:        %8d\n", s.Timeouts)
	}
	if s.Late > 0 {
		fmt.Fprintf(&b, "Late Responses:  %8d\n", s.Late)
	}

	fmt.Fprintf(&b, "Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	fmt.Fprintf(&b, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	b.WriteString("=====================================\n")
	return b.String()
}
