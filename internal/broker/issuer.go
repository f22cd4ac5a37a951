package broker

import (
	"time"

	"optionsql/pkg/exception"

	"github.com/yanun0323/logs"
)

// HistoricalParams selects the bars of a historical data request.
type HistoricalParams struct {
	EndDateTime string
	Duration    string
	BarSize     string
	WhatToShow  string
	UseRTH      bool
	FormatDate  int
}

// Issuer sends the single wire request of one dispatched Request. It is only
// valid inside Request.Send.
type Issuer struct {
	session    *Session
	release    func()
	used       bool
	registered bool
}

// RequestQuote asks for a market data snapshot of a contract.
func (iss *Issuer) RequestQuote(c Contract, l Listener) (*Pending, error) {
	return iss.issue(l, func(id int64) Outbound {
		return ReqMktData{ReqID: id, Contract: c, Snapshot: true}
	})
}

// RequestHistoricalRange asks for historical bars of a contract.
func (iss *Issuer) RequestHistoricalRange(c Contract, p HistoricalParams, l Listener) (*Pending, error) {
	return iss.issue(l, func(id int64) Outbound {
		return ReqHistoricalData{
			ReqID:       id,
			Contract:    c,
			EndDateTime: p.EndDateTime,
			Duration:    p.Duration,
			BarSize:     p.BarSize,
			WhatToShow:  p.WhatToShow,
			UseRTH:      p.UseRTH,
			FormatDate:  p.FormatDate,
		}
	})
}

// ResolveContract asks for the details of a contract, including its id.
func (iss *Issuer) ResolveContract(c Contract, l Listener) (*Pending, error) {
	return iss.issue(l, func(id int64) Outbound {
		return ReqContractData{ReqID: id, Contract: c}
	})
}

// DiscoverOptionParameters asks for the option expirations and strikes of an
// underlying stock.
func (iss *Issuer) DiscoverOptionParameters(symbol string, conID int64, l Listener) (*Pending, error) {
	return iss.issue(l, func(id int64) Outbound {
		return ReqSecDefOptParams{ReqID: id, Symbol: symbol, SecType: "STK", ConID: conID}
	})
}

// RequestOptionMarketData asks for a market data snapshot of an option,
// including its Greeks.
func (iss *Issuer) RequestOptionMarketData(c Contract, l Listener) (*Pending, error) {
	return iss.issue(l, func(id int64) Outbound {
		return ReqMktData{ReqID: id, Contract: c, Snapshot: true}
	})
}

// issue registers the listener under a fresh id and queues the wire request.
// Every synchronous failure is reported to the listener before returning.
func (iss *Issuer) issue(l Listener, build func(id int64) Outbound) (*Pending, error) {
	if iss.used {
		return nil, exception.ErrIssuerUsed
	}
	iss.used = true

	s := iss.session
	if s.State() != StateConnected {
		s.metrics.IncSendFailure()
		notifyFailed(l, exception.ErrSessionClosed)
		return nil, exception.ErrSessionClosed
	}

	id := s.ids.Next()
	pending, err := s.registry.Register(id, l, iss.release)
	if err != nil {
		s.metrics.IncSendFailure()
		notifyFailed(l, err)
		return nil, err
	}
	iss.registered = true
	if timeout := s.cfg.RequestTimeout; timeout > 0 {
		s.registry.arm(id, time.AfterFunc(timeout, func() {
			s.post(message{kind: msgTimeout, id: id})
		}))
	}

	select {
	case s.outbox <- build(id):
	default:
		s.metrics.IncSendFailure()
		s.registry.Resolve(id, exception.ErrWriteQueueFull)
		return nil, exception.ErrWriteQueueFull
	}

	s.metrics.IncDispatched()
	return pending, nil
}

func (s *Session) dispatch(job *Job, done func()) error {
	iss := &Issuer{session: s, release: done}
	err := job.req.Send(iss)
	if iss.registered {
		// The registry entry releases the slot when it resolves.
		if err != nil {
			logs.Errorf("request %q failed after issuing, err: %+v", job.Desc(), err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	done()
	return nil
}
