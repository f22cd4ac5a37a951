package broker

import (
	"fmt"
	"slices"
	"time"

	"optionsql/internal/obs"
	"optionsql/pkg/exception"
)

type entry struct {
	listener  Listener
	pending   *Pending
	release   func()
	timer     *time.Timer
	createdAt time.Time
}

// Registry correlates request ids with their listeners until each request
// resolves. It is not safe for concurrent use; the session's owning
// goroutine is its only caller.
type Registry struct {
	entries map[int64]*entry
	now     func() time.Time
	metrics *obs.Metrics
}

// NewRegistry creates an empty registry. now and metrics may be nil.
func NewRegistry(now func() time.Time, metrics *obs.Metrics) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		entries: make(map[int64]*entry),
		now:     now,
		metrics: metrics,
	}
}

// Register records a listener for id. release runs once when the entry
// resolves, whatever the outcome.
func (r *Registry) Register(id int64, listener Listener, release func()) (*Pending, error) {
	if _, ok := r.entries[id]; ok {
		return nil, fmt.Errorf("%w: %d", exception.ErrDuplicateRequestID, id)
	}
	e := &entry{
		listener:  listener,
		pending:   newPending(),
		release:   release,
		createdAt: r.now(),
	}
	r.entries[id] = e
	return e.pending, nil
}

// arm attaches a timeout timer, stopped when the entry resolves.
func (r *Registry) arm(id int64, timer *time.Timer) {
	if e, ok := r.entries[id]; ok {
		e.timer = timer
		return
	}
	timer.Stop()
}

// Lookup returns the listener registered for id.
func (r *Registry) Lookup(id int64) (Listener, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Listener{}, false
	}
	return e.listener, true
}

// Len reports the number of outstanding requests.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Resolve removes id and completes it, as failed when err is non-nil. It
// reports false when id is not registered, so a request resolves at most once.
func (r *Registry) Resolve(id int64, err error) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	delete(r.entries, id)
	r.finish(e, err)
	return true
}

// DrainAll fails every outstanding request with err, in id order, and
// returns how many were drained. When err is a connection loss each listener
// hears ConnectionClosed before Failed.
func (r *Registry) DrainAll(err error) int {
	if len(r.entries) == 0 {
		return 0
	}
	ids := make([]int64, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	closed := isConnectionClosed(err)
	for _, id := range ids {
		e := r.entries[id]
		delete(r.entries, id)
		if closed && e.listener.ConnectionClosed != nil {
			e.listener.ConnectionClosed()
		}
		r.finish(e, err)
	}
	return len(ids)
}

func (r *Registry) finish(e *entry, err error) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.pending.resolve(err)
	r.metrics.ObserveResolution(r.now().Sub(e.createdAt), err != nil)
	if err != nil {
		notifyFailed(e.listener, err)
	}
	if e.release != nil {
		e.release()
	}
}
