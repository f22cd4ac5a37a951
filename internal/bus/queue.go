package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Queue is a bounded multi-producer, single-consumer hand-off. Producers on any
// goroutine publish; exactly one goroutine drains it with Run.
type Queue[T any] struct {
	ch     chan T
	done   chan struct{}
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// TryPublish enqueues an item without blocking.
func (q *Queue[T]) TryPublish(v T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- v:
		return nil
	default:
		return ErrQueueFull
	}
}

// Publish enqueues an item, blocking while the queue is full.
func (q *Queue[T]) Publish(ctx context.Context, v T) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- v:
		return nil
	}
}

// Len reports the number of buffered items.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new items. Items already buffered are
// still delivered by Run. The channel itself is never closed, so a publisher
// racing with Close cannot panic.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.done)
	}
}

// Run consumes items until the context is done or the queue is closed and drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-q.ch:
			handler(v)
		case <-q.done:
			for {
				select {
				case v := <-q.ch:
					handler(v)
				default:
					return
				}
			}
		}
	}
}
