// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"strings"
	"testing"
)

func TestStatistics_CountersAndString(t *testing.T) {
	st := NewStatistics()
	st.recordSent(6)
	st.recordSent(6)
	st.recordRead(12)
	st.recordFrame()
	st.recordDiscard(3)
	st.recordOrphan()
	st.recordTimeout()

	s := st.Snapshot()
	if s.FramesSent != 2 || s.BytesSent != 12 || s.FramesReceived != 1 || s.BytesReceived != 12 {
		t.Errorf("traffic counters = %+v", s)
	}
	if s.DiscardedBytes != 3 || s.Orphans != 1 || s.Timeouts != 1 {
		t.Errorf("error counters = %+v", s)
	}

	out := s.String()
	for _, want := range []string{"Frames Sent:", "Discarded Bytes:", "Orphan Frames:", "Timeouts:"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Resync Failures:") {
		t.Error("zero counters should be omitted")
	}

	st.Reset()
	if s := st.Snapshot(); s.FramesSent != 0 || s.Timeouts != 0 {
		t.Errorf("Reset left counters: %+v", s)
	}
}
