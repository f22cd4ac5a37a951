package broker

import (
	"context"
	"sync"

	"optionsql/pkg/exception"
)

// Future is a result produced once, by whichever of Complete or Fail runs first.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	val       T
	err       error
	callbacks []func(T, error)
}

// NewFuture returns an unsettled future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already holding v.
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v)
	return f
}

// Failed returns a future already failed with err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Fail(err)
	return f
}

// Complete settles the future with v. It reports false if already settled.
func (f *Future[T]) Complete(v T) bool {
	return f.settle(v, nil)
}

// Fail settles the future with err. It reports false if already settled.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		err = exception.ErrInternal
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.val, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
	return true
}

// Done is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Settled reports whether the future holds a result.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Result returns the settled value and error. Before settlement it returns
// the zero value and a nil error.
func (f *Future[T]) Result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, f.err
}

// Wait blocks until the future settles or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-f.done:
		return f.Result()
	}
}

// OnComplete registers cb to run once with the result. If the future is
// already settled cb runs immediately on the caller's goroutine, otherwise on
// the goroutine that settles it.
func (f *Future[T]) OnComplete(cb func(T, error)) {
	f.mu.Lock()
	if !f.settled {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	cb(v, err)
}

// Then maps a successful result through fn.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := NewFuture[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		u, err := fn(v)
		if err != nil {
			out.Fail(err)
			return
		}
		out.Complete(u)
	})
	return out
}

// Compose chains a dependent asynchronous step after a successful result.
func Compose[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	out := NewFuture[U]()
	f.OnComplete(func(v T, err error) {
		if err != nil {
			out.Fail(err)
			return
		}
		fn(v).OnComplete(func(u U, err error) {
			if err != nil {
				out.Fail(err)
				return
			}
			out.Complete(u)
		})
	})
	return out
}

// AllOf settles with every result, in input order, once all futures
// complete. The first failure fails it immediately; later results are ignored.
func AllOf[T any](futures []*Future[T]) *Future[[]T] {
	out := NewFuture[[]T]()
	if len(futures) == 0 {
		out.Complete([]T{})
		return out
	}

	var (
		mu        sync.Mutex
		results   = make([]T, len(futures))
		remaining = len(futures)
	)
	for i, f := range futures {
		f.OnComplete(func(v T, err error) {
			if err != nil {
				out.Fail(err)
				return
			}
			mu.Lock()
			results[i] = v
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Complete(results)
			}
		})
	}
	return out
}

// Outcome is the settled state of one future.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Settle waits for every future and reports each outcome in input order. It
// never fails.
func Settle[T any](futures []*Future[T]) *Future[[]Outcome[T]] {
	out := NewFuture[[]Outcome[T]]()
	if len(futures) == 0 {
		out.Complete([]Outcome[T]{})
		return out
	}

	var (
		mu        sync.Mutex
		outcomes  = make([]Outcome[T], len(futures))
		remaining = len(futures)
	)
	for i, f := range futures {
		f.OnComplete(func(v T, err error) {
			mu.Lock()
			outcomes[i] = Outcome[T]{Value: v, Err: err}
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				out.Complete(outcomes)
			}
		})
	}
	return out
}
