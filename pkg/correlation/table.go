// Package correlation matches asynchronous replies to the calls that
// requested them, keyed by the sequence number echoed back by the gateway.
package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var ErrDuplicate = errors.New("sequence already registered")

// Result is the outcome of one command. OK is true only when the transport
// reported success (HTTP 200, or non-null data in a WebSocket reply). Data
// is the structured payload; it is never mutated after construction.
type Result struct {
	OK   bool
	Data json.RawMessage
}

// Decode unmarshals the payload into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("empty result payload")
	}
	return json.Unmarshal(r.Data, v)
}

// Failure builds a failed Result whose payload describes err.
func Failure(err error) Result {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Result{OK: false, Data: data}
}

// Pending is one in-flight call. The table guarantees fulfil is called at
// most once, after the entry has been removed under the table lock.
type Pending struct {
	Seq    uint64
	ConnID string

	done chan struct{}
	res  Result
}

func newPending(seq uint64, connID string) *Pending {
	return &Pending{Seq: seq, ConnID: connID, done: make(chan struct{})}
}

// Resolved returns a slot that already holds res. It is never registered in
// a Table.
func Resolved(res Result) *Pending {
	p := newPending(0, "")
	p.fulfil(res)
	return p
}

func (p *Pending) fulfil(res Result) {
	p.res = res
	close(p.done)
}

// Done is closed once the call has a result.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call is completed or ctx is done. There is no
// internal timeout.
func (p *Pending) Wait(ctx context.Context) (Result, error) {
	select {
	case <-p.done:
		return p.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Table is safe for concurrent use by any number of registering,
// completing and waiting goroutines.
type Table struct {
	seq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*Pending
}

func NewTable() *Table {
	return &Table{pending: make(map[uint64]*Pending)}
}

// Allocate returns a process-unique, strictly increasing sequence number.
func (t *Table) Allocate() uint64 {
	return t.seq.Add(1)
}

// Register inserts a pending slot for seq. connID records which connection
// the request went out on so the slot can be failed if that connection
// closes first.
func (t *Table) Register(seq uint64, connID string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[seq]; exists {
		return nil, fmt.Errorf("%w: %d", ErrDuplicate, seq)
	}
	p := newPending(seq, connID)
	t.pending[seq] = p
	return p, nil
}

// Complete fulfils the slot for seq and removes it. Unknown or already
// completed sequence numbers are ignored and reported as false.
func (t *Table) Complete(seq uint64, res Result) bool {
	t.mu.Lock()
	p, ok := t.pending[seq]
	if ok {
		delete(t.pending, seq)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	p.fulfil(res)
	return true
}

// Await waits on a slot that is still registered.
func (t *Table) Await(ctx context.Context, seq uint64) (Result, error) {
	t.mu.Lock()
	p, ok := t.pending[seq]
	t.mu.Unlock()

	if !ok {
		return Result{}, fmt.Errorf("sequence %d is not pending", seq)
	}
	return p.Wait(ctx)
}

// DropConn fails every slot whose request was written on connID. Called
// when that connection goes away, since no reply can arrive for them.
func (t *Table) DropConn(connID string, reason error) int {
	t.mu.Lock()
	var dropped []*Pending
	for seq, p := range t.pending {
		if p.ConnID == connID {
			dropped = append(dropped, p)
			delete(t.pending, seq)
		}
	}
	t.mu.Unlock()

	res := Failure(reason)
	for _, p := range dropped {
		p.fulfil(res)
	}
	return len(dropped)
}

// Len returns the number of pending calls.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
