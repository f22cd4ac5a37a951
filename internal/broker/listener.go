package broker

import (
	"context"

	"optionsql/pkg/exception"

	"github.com/yanun0323/errors"
)

// Listener receives the events routed to one request. Every handler is
// optional; the zero Listener ignores everything.
//
// Handlers run on the session's owning goroutine, one event at a time, in the
// order the transport decoded them. They must not block.
type Listener struct {
	// TickPrice returns true when the tick completes the request.
	TickPrice   func(TickPrice) bool
	TickSize    func(TickSize)
	TickGeneric func(TickGeneric)

	HistoricalBar func(HistoricalBar)
	// HistoricalEnd is delivered before the request completes.
	HistoricalEnd func(HistoricalEnd)

	// ContractDetails is delivered before the request completes.
	ContractDetails func(ContractDetails)
	// OptionParameters is delivered for the session's option exchange only,
	// before the request completes.
	OptionParameters func(OptionParameters)
	// OptionComputation returns true when the Greeks complete the request.
	OptionComputation func(OptionComputation) bool

	// Error is called for a gateway error addressed to the request, before Failed.
	Error func(GatewayError)
	// ConnectionClosed is called when the connection drops with the request
	// outstanding, before Failed.
	ConnectionClosed func()
	// Failed is called exactly once when the request resolves as failed, for
	// any cause.
	Failed func(error)
}

// Pending is the result slot of one registered request.
type Pending struct {
	done     chan struct{}
	err      error
	resolved bool
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolve completes the slot once. Only the owning goroutine calls it.
func (p *Pending) resolve(err error) bool {
	if p.resolved {
		return false
	}
	p.resolved = true
	p.err = err
	close(p.done)
	return true
}

// Done is closed when the request resolves.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the failure cause after Done is closed, nil on success.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the request resolves or ctx is done.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return p.err
	}
}

func notifyFailed(l Listener, err error) {
	if l.Failed != nil {
		l.Failed(err)
	}
}

func isConnectionClosed(err error) bool {
	return errors.Is(err, exception.ErrConnectionClosed)
}
