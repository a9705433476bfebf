// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"sync"
	"time"

	"github.com/Thermoquad/magician/pkg/dobot"
)

// Key identifies which response answers a request. The device echoes the
// command id and queued flag of the request it is answering.
type Key struct {
	ID     dobot.CommandID
	Queued bool
}

// KeyOf returns the correlation key of a frame
func KeyOf(f *dobot.Frame) Key {
	return Key{ID: f.ID, Queued: f.Queued}
}

// Pipelinable reports whether several requests with the same key may be
// outstanding at once. Only immediate reads qualify; their responses carry
// no side effects so FIFO resolution is always correct.
func Pipelinable(queued, write bool) bool {
	return !queued && !write
}

// Request is one in-flight command awaiting its response.
type Request struct {
	Key         Key
	SubmittedAt time.Time

	pipelined bool
	done      chan struct{}
	payload   []byte
	err       error
}

// Done is closed once the request has been fulfilled
func (r *Request) Done() <-chan struct{} {
	return r.done
}

// Result returns the response payload or the failure. Only valid after Done.
func (r *Request) Result() ([]byte, error) {
	return r.payload, r.err
}

// PendingTable tracks in-flight requests. Each key holds a FIFO of requests;
// every request is fulfilled exactly once.
type PendingTable struct {
	mu      sync.Mutex
	queues  map[Key][]*Request
	count   int
	orphans uint64
	closed  error
}

// NewPendingTable creates an empty table
func NewPendingTable() *PendingTable {
	return &PendingTable{
		queues: make(map[Key][]*Request),
	}
}

// Register adds a request for key. It fails with ErrAlreadyPending when the
// key is outstanding and either side is not pipelinable, and with the close
// error once the table has been closed.
func (t *PendingTable) Register(key Key, pipelined bool) (*Request, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return nil, t.closed
	}

	queue := t.queues[key]
	if len(queue) > 0 && (!pipelined || !queue[0].pipelined) {
		return nil, ErrAlreadyPending
	}

	req := &Request{
		Key:         key,
		SubmittedAt: time.Now(),
		pipelined:   pipelined,
		done:        make(chan struct{}),
	}
	t.queues[key] = append(queue, req)
	t.count++
	return req, nil
}

// Resolve fulfils the oldest request for key with payload. A response with no
// matching request is counted as an orphan and false is returned.
func (t *PendingTable) Resolve(key Key, payload []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.queues[key]
	if len(queue) == 0 {
		t.orphans++
		return false
	}

	req := queue[0]
	t.removeAt(key, 0)
	req.payload = payload
	close(req.done)
	return true
}

// Expire fulfils req with ErrTimeout. It returns false if req was already
// fulfilled.
func (t *PendingTable) Expire(req *Request) bool {
	return t.Cancel(req, ErrTimeout)
}

// ExpireAndHold fulfils req with ErrTimeout and puts a placeholder in its
// place, so a late response resolves the placeholder instead of the next
// request for the same key. It returns nil if req was already fulfilled.
func (t *PendingTable) ExpireAndHold(req *Request) *Request {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.queues[req.Key]
	for i, r := range queue {
		if r == req {
			hold := &Request{
				Key:         req.Key,
				SubmittedAt: req.SubmittedAt,
				pipelined:   req.pipelined,
				done:        make(chan struct{}),
			}
			queue[i] = hold
			req.err = ErrTimeout
			close(req.done)
			return hold
		}
	}
	return nil
}

// Cancel fulfils req with err. It returns false if req was already fulfilled.
func (t *PendingTable) Cancel(req *Request, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	queue := t.queues[req.Key]
	for i, r := range queue {
		if r == req {
			t.removeAt(req.Key, i)
			req.err = err
			close(req.done)
			return true
		}
	}
	return false
}

// FailAll fulfils every outstanding request with err and returns how many
// were failed. The table stays usable.
func (t *PendingTable) FailAll(err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failAllLocked(err)
}

// Close fails every outstanding request with err and rejects all future
// registrations with the same error.
func (t *PendingTable) Close(err error) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed == nil {
		t.closed = err
	}
	return t.failAllLocked(err)
}

// Len returns the number of outstanding requests
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Orphans returns the number of responses that matched no request
func (t *PendingTable) Orphans() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.orphans
}

func (t *PendingTable) failAllLocked(err error) int {
	n := 0
	for key, queue := range t.queues {
		for _, req := range queue {
			req.err = err
			close(req.done)
			n++
		}
		delete(t.queues, key)
	}
	t.count = 0
	return n
}

func (t *PendingTable) removeAt(key Key, i int) {
	queue := t.queues[key]
	if len(queue) == 1 {
		delete(t.queues, key)
	} else {
		t.queues[key] = append(queue[:i:i], queue[i+1:]...)
	}
	t.count--
}
