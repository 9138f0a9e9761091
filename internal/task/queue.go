// Package task runs blocking work off the owner goroutine and hands the
// results back to it.
//
// The canvas engine is confined to one goroutine. Work that would block it
// (image decode, asset fetches) runs on a goroutine started by Go; the
// continuation it returns is queued and only runs when the owner calls
// Flush or Settle. Continuations therefore never race with the engine.
package task

import (
	"context"
	"sync"
)

// Queue tracks in-flight work and the continuations waiting to run.
type Queue struct {
	mu       sync.Mutex
	inflight int
	ready    []func()
	closed   bool
	notify   chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Go runs work on a new goroutine. The continuation it returns, if not nil,
// is queued for the owner. After Close, Go does nothing.
func (q *Queue) Go(ctx context.Context, work func(ctx context.Context) func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.inflight++
	q.mu.Unlock()

	go func() {
		cont := work(ctx)

		q.mu.Lock()
		q.inflight--
		if cont != nil && !q.closed {
			q.ready = append(q.ready, cont)
		}
		q.mu.Unlock()

		select {
		case q.notify <- struct{}{}:
		default:
		}
	}()
}

// Pending reports whether work is in flight or continuations are queued.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight > 0 || len(q.ready) > 0
}

// Flush runs the queued continuations on the caller's goroutine and
// returns how many ran. Continuations queued while flushing run too.
func (q *Queue) Flush() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.ready
		q.ready = nil
		q.mu.Unlock()

		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
}

// Settle flushes until no work is in flight and nothing is queued, or ctx
// is done.
func (q *Queue) Settle(ctx context.Context) error {
	for {
		q.Flush()
		if !q.Pending() {
			return nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close drops queued continuations and ignores future work. Work already
// running finishes, but its continuation is discarded.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.ready = nil
	q.mu.Unlock()
}
