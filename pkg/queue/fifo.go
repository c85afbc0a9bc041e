// Package queue provides an unbounded FIFO used to hand work between
// goroutines without ever blocking the producer.
package queue

import "sync"

// FIFO is an unbounded, goroutine-safe first-in first-out queue.
//
// Producers never block. Consumers either block in Pop or select on Ready
// and call TryPop. Close marks the end of the stream: items pushed before
// Close are still delivered, after which Pop reports ok=false.
type FIFO[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

// New returns an empty, open queue.
func New[T any]() *FIFO[T] {
	return &FIFO[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It returns false if the queue is already closed, in which
// case v is discarded.
func (q *FIFO[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// TryPop removes and returns the oldest item without blocking.
func (q *FIFO[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Pop blocks until an item is available or the queue is closed and empty.
func (q *FIFO[T]) Pop() (T, bool) {
	for {
		q.mu.Lock()
		if v, ok := q.popLocked(); ok {
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			return v, true
		}
		if q.closed {
			q.mu.Unlock()
			// wake any other consumer parked on ready
			q.signal()
			var zero T
			return zero, false
		}
		q.mu.Unlock()
		<-q.ready
	}
}

// Ready is signalled whenever items may be available or the queue was closed.
// A receive from Ready is a hint; callers must still TryPop.
func (q *FIFO[T]) Ready() <-chan struct{} {
	return q.ready
}

// Close ends the stream. Subsequent pushes are rejected. Close is idempotent.
func (q *FIFO[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close has been called.
func (q *FIFO[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of items waiting.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *FIFO[T]) popLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// drop the backing array so a long-lived queue does not pin memory
		q.items = nil
	}
	return v, true
}

func (q *FIFO[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
