// Package outbox provides the bounded, timeout-aware FIFO queue used to
// connect adjacent pipeline stages. It is the lowest layer of the runtime:
// it knows nothing about stages, records, or errors beyond its own timeout.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// TimeoutMessage is the fixed text carried by ErrTimeout. Executors that
// observe this error on a Put record it under WORK_BODY_EXCEPTION as the
// TIMEOUT_MESSAGE of the pipeline's error model. A timed-out Get is not
// an error (see Get).
const TimeoutMessage = "outbox operation timed out waiting for capacity"

// ErrTimeout is returned by Put when capacity is not reclaimed within the
// requested timeout. Its Error() text is exactly TimeoutMessage so callers
// can compare it verbatim, matching the fixed-message contract.
var ErrTimeout = errors.New(TimeoutMessage)

// ErrClosed is returned by Put once the outbox has been closed.
var ErrClosed = errors.New("outbox is closed")

// Status describes the outcome of a Get.
type Status int

const (
	// StatusOK means Item holds a value taken from the queue.
	StatusOK Status = iota
	// StatusEmpty means the timeout elapsed with nothing to deliver; the
	// outbox is not closed and callers should retry.
	StatusEmpty
	// StatusEnd means the outbox was closed and fully drained.
	StatusEnd
)

// Outbox is a bounded FIFO with capacity N >= 1. It is safe for exactly one
// producer goroutine and exactly one consumer goroutine, matching the
// single-producer/single-consumer discipline the runtime relies on. Put
// and Close briefly take a mutex to read or set the closed flag.
type Outbox struct {
	items  chan any
	mu     sync.Mutex
	closed bool
}

// New allocates an Outbox with the given capacity.
func New(capacity int) *Outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Outbox{items: make(chan any, capacity)}
}

// Put enqueues item, blocking up to timeout for capacity. It returns
// ErrTimeout if the timeout elapses first, ErrClosed if the outbox has
// already been closed, or ctx.Err() if ctx is done first.
func (o *Outbox) Put(ctx context.Context, item any, timeout time.Duration) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o.items <- item:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues the next item, blocking up to timeout. On timeout it returns
// (nil, StatusEmpty, nil) so the caller can re-run its precheck and retry.
// Once the outbox is closed and drained, it returns (nil, StatusEnd, nil).
func (o *Outbox) Get(ctx context.Context, timeout time.Duration) (any, Status, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item, ok := <-o.items:
		if !ok {
			return nil, StatusEnd, nil
		}
		return item, StatusOK, nil
	case <-timer.C:
		return nil, StatusEmpty, nil
	case <-ctx.Done():
		return nil, StatusEmpty, ctx.Err()
	}
}

// Close marks the outbox closed. Remaining buffered items are still
// delivered by Get; once drained, Get reports StatusEnd. Further Puts fail
// with ErrClosed. Close is idempotent and must only be called by the
// producer side of this outbox.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.items)
	}
}

// Len reports the number of items currently buffered. Intended for tests
// and metrics only; it is a snapshot and may be stale by the time it's read.
func (o *Outbox) Len() int {
	return len(o.items)
}
