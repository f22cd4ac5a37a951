package task

import (
	"optionsql/internal/broker"
	"optionsql/pkg/exception"
)

// FetchQuote resolves with the first last or close price of symbol.
func (f *Fetcher) FetchQuote(symbol string) *broker.Future[Quote] {
	symbol = normalize(symbol)
	fut := broker.NewFuture[Quote]()
	if symbol == "" {
		fut.Fail(exception.ErrEmptySymbol)
		return fut
	}

	ticks := f.cfg.Ticks
	l := broker.Listener{
		TickPrice: func(tp broker.TickPrice) bool {
			if tp.Field != ticks.Last && tp.Field != ticks.Close {
				return false
			}
			// The gateway reports -1 for a price it does not have yet; a
			// later tick for the same request may still carry one.
			if tp.Price <= 0 {
				return false
			}
			fut.Complete(Quote{Symbol: symbol, Price: tp.Price, Field: tp.Field})
			return true
		},
		Failed: func(err error) { fut.Fail(err) },
	}

	return submit(f.sub, fut, broker.Request{
		Desc: "quote " + symbol,
		Send: func(iss *broker.Issuer) error {
			_, err := iss.RequestQuote(f.stock(symbol), l)
			return err
		},
	})
}
