package bus

import (
	"sync"

	"github.com/roach88/easyevents/internal/ir"
)

// rawQueue is a thread-safe FIFO of raw events.
//
// The queue is unbounded so producers (file readers, network feeds) never
// block on a slow dispatch loop. A buffered signal channel lets Run wait
// for work while still honoring context cancellation.
type rawQueue struct {
	mu     sync.Mutex
	events []ir.RawEvent
	closed bool
	signal chan struct{} // buffered, size 1
}

func newRawQueue() *rawQueue {
	return &rawQueue{
		events: make([]ir.RawEvent, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds ev to the back of the queue.
// Returns false if the queue is closed.
func (q *rawQueue) Enqueue(ev ir.RawEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, ev)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *rawQueue) TryDequeue() (ir.RawEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return ir.RawEvent{}, false
	}

	ev := q.events[0]

	// Clear the slot so the backing array does not pin Variables.
	q.events[0] = ir.RawEvent{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return ev, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed once the queue is closed.
func (q *rawQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *rawQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops further enqueues and wakes any waiter.
func (q *rawQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
