package task

import (
	"strings"

	"optionsql/internal/broker"
	"optionsql/pkg/exception"
)

// Submitter queues gateway requests. *broker.Session satisfies it.
type Submitter interface {
	Submit(broker.Request) error
}

// Fetcher runs the market data workflows over a Submitter.
type Fetcher struct {
	sub Submitter
	cfg Config
}

// New creates a Fetcher.
func New(sub Submitter, cfg Config) (*Fetcher, error) {
	if sub == nil {
		return nil, exception.ErrNilSubmitter
	}
	return &Fetcher{sub: sub, cfg: cfg.withDefaults()}, nil
}

// Config returns the effective configuration.
func (f *Fetcher) Config() Config {
	return f.cfg
}

func (f *Fetcher) stock(symbol string) broker.Contract {
	return broker.Contract{
		Symbol:   symbol,
		SecType:  "STK",
		Exchange: f.cfg.Chain.Exchange,
		Currency: f.cfg.Chain.Currency,
	}
}

func (f *Fetcher) option(symbol, expiry string, strike float64, side Side) broker.Contract {
	return broker.Contract{
		Symbol:        symbol,
		SecType:       "OPT",
		LastTradeDate: expiry,
		Strike:        strike,
		Right:         string(side),
		Multiplier:    f.cfg.Chain.Multiplier,
		Exchange:      f.cfg.Chain.Exchange,
		Currency:      f.cfg.Chain.Currency,
	}
}

// submit queues req and fails fut when the session rejects it.
func submit[T any](sub Submitter, fut *broker.Future[T], req broker.Request) *broker.Future[T] {
	if err := sub.Submit(req); err != nil {
		fut.Fail(err)
	}
	return fut
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
