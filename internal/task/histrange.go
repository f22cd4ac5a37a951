package task

import (
	"math"

	"optionsql/internal/broker"
	"optionsql/pkg/exception"
)

// FetchHistoricalRange resolves with the low and high of symbol's implied
// volatility series over the configured lookback.
func (f *Fetcher) FetchHistoricalRange(symbol string) *broker.Future[HistoricalRange] {
	symbol = normalize(symbol)
	fut := broker.NewFuture[HistoricalRange]()
	if symbol == "" {
		fut.Fail(exception.ErrEmptySymbol)
		return fut
	}

	rng := HistoricalRange{Symbol: symbol, Low: math.Inf(1), High: math.Inf(-1)}
	l := broker.Listener{
		HistoricalBar: func(b broker.HistoricalBar) {
			rng.Low = min(rng.Low, b.Low)
			rng.High = max(rng.High, b.High)
			rng.Bars++
		},
		HistoricalEnd: func(broker.HistoricalEnd) {
			if rng.Bars == 0 {
				fut.Fail(exception.ErrNoBars)
				return
			}
			fut.Complete(rng)
		},
		Failed: func(err error) { fut.Fail(err) },
	}

	h := f.cfg.Historical
	params := broker.HistoricalParams{
		Duration:   h.Duration,
		BarSize:    h.BarSize,
		WhatToShow: h.WhatToShow,
		UseRTH:     !h.AllHours,
		FormatDate: 1,
	}
	return submit(f.sub, fut, broker.Request{
		Desc: "historical range " + symbol,
		Send: func(iss *broker.Issuer) error {
			_, err := iss.RequestHistoricalRange(f.stock(symbol), params, l)
			return err
		},
	})
}
