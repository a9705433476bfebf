// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package state

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// Snapshot is a point-in-time copy of the whole cache, suitable for
// recording. Fields use small integer keys to keep recordings compact.
type Snapshot struct {
	At           time.Time         `cbor:"1,keyasint"`
	Pose         dobot.Pose        `cbor:"2,keyasint"`
	PoseAt       time.Time         `cbor:"3,keyasint"`
	Alarms       dobot.AlarmsState `cbor:"4,keyasint"`
	CurrentIndex uint64            `cbor:"5,keyasint"`
	LeftSpace    uint32            `cbor:"6,keyasint"`
	Degraded     bool              `cbor:"7,keyasint"`
	LastError    string            `cbor:"8,keyasint,omitempty"`
}

// Snapshot copies every field group. Groups are read one at a time, so
// the result may mix values from adjacent poll cycles.
func (c *Cache) Snapshot() Snapshot {
	pose, poseAt := c.Pose()
	alarms, _ := c.Alarms()
	q := c.QueueStatus()
	l := c.Link()

	s := Snapshot{
		At:           time.Now(),
		Pose:         pose,
		PoseAt:       poseAt,
		Alarms:       alarms,
		CurrentIndex: q.CurrentIndex,
		LeftSpace:    q.LeftSpace,
		Degraded:     l.Degraded,
	}
	if l.LastError != nil {
		s.LastError = l.LastError.Error()
	}
	return s
}

var recordMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	recordMode, err = opts.EncMode()
	if err != nil {
		panic(err)
	}
}

// Recorder appends snapshots to a stream as a sequence of CBOR items
type Recorder struct {
	enc   *cbor.Encoder
	count int
}

// NewRecorder writes to w
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: recordMode.NewEncoder(w)}
}

// Record appends one snapshot
func (r *Recorder) Record(s Snapshot) error {
	if err := r.enc.Encode(s); err != nil {
		return fmt.Errorf("record snapshot %d: %w", r.count, err)
	}
	r.count++
	return nil
}

// Count returns the number of snapshots written
func (r *Recorder) Count() int {
	return r.count
}

// ReadSnapshots decodes every snapshot in a recording
func ReadSnapshots(rd io.Reader) ([]Snapshot, error) {
	dec := cbor.NewDecoder(rd)
	var out []Snapshot
	for {
		var s Snapshot
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("snapshot %d: %w", len(out), err)
		}
		out = append(out, s)
	}
}
