package task

import (
	"fmt"
	"slices"
	"time"

	"optionsql/internal/broker"
	"optionsql/pkg/exception"

	"github.com/yanun0323/logs"
)

// FetchOptionChain resolves the option chain of symbol: the contract id, its
// expirations and strikes, then market data and Greeks for the call and put
// of every retained expiration and strike.
//
// Records are ordered by expiration, then strike, call before put. How leg
// failures combine is set by Config.Join.
func (f *Fetcher) FetchOptionChain(symbol string) *broker.Future[[]OptionRecord] {
	symbol = normalize(symbol)
	if symbol == "" {
		return broker.Failed[[]OptionRecord](exception.ErrEmptySymbol)
	}
	now := f.cfg.Now()

	contract := f.resolveContract(symbol)
	params := broker.Compose(contract, func(c broker.Contract) *broker.Future[broker.OptionParameters] {
		return f.discover(symbol, c.ConID)
	})
	return broker.Compose(params, func(p broker.OptionParameters) *broker.Future[[]OptionRecord] {
		expirations := FilterExpirations(p.Expirations, now, f.cfg.Chain)
		strikes := slices.Clone(p.Strikes)
		slices.Sort(strikes)
		strikes = slices.Compact(strikes)

		logs.Infof("%s option chain: %d of %d expirations, %d strikes", symbol, len(expirations), len(p.Expirations), len(strikes))
		return f.fanOut(symbol, expirations, strikes)
	})
}

func (f *Fetcher) resolveContract(symbol string) *broker.Future[broker.Contract] {
	fut := broker.NewFuture[broker.Contract]()
	l := broker.Listener{
		ContractDetails: func(cd broker.ContractDetails) { fut.Complete(cd.Contract) },
		Failed:          func(err error) { fut.Fail(err) },
	}
	return submit(f.sub, fut, broker.Request{
		Desc: "contract " + symbol,
		Send: func(iss *broker.Issuer) error {
			_, err := iss.ResolveContract(f.stock(symbol), l)
			return err
		},
	})
}

func (f *Fetcher) discover(symbol string, conID int64) *broker.Future[broker.OptionParameters] {
	fut := broker.NewFuture[broker.OptionParameters]()
	l := broker.Listener{
		OptionParameters: func(p broker.OptionParameters) { fut.Complete(p) },
		Failed:           func(err error) { fut.Fail(err) },
	}
	return submit(f.sub, fut, broker.Request{
		Desc: "option parameters " + symbol,
		Send: func(iss *broker.Issuer) error {
			_, err := iss.DiscoverOptionParameters(symbol, conID, l)
			return err
		},
	})
}

func (f *Fetcher) fanOut(symbol string, expirations []time.Time, strikes []float64) *broker.Future[[]OptionRecord] {
	pairs := make([]*broker.Future[StrikeRecord], 0, len(expirations)*len(strikes))
	for _, exp := range expirations {
		for _, strike := range strikes {
			pairs = append(pairs, f.fetchStrike(symbol, exp, strike))
		}
	}
	return f.cfg.Join.join(symbol, pairs)
}

func (f *Fetcher) fetchStrike(symbol string, exp time.Time, strike float64) *broker.Future[StrikeRecord] {
	legs := broker.AllOf([]*broker.Future[OptionRecord]{
		f.fetchLeg(symbol, exp, strike, Call),
		f.fetchLeg(symbol, exp, strike, Put),
	})
	return broker.Then(legs, func(legs []OptionRecord) (StrikeRecord, error) {
		return StrikeRecord{
			Symbol:     symbol,
			Expiration: exp,
			Strike:     strike,
			Call:       legs[0],
			Put:        legs[1],
		}, nil
	})
}

// fetchLeg collects quotes and sizes for one option until its Greeks arrive.
func (f *Fetcher) fetchLeg(symbol string, exp time.Time, strike float64, side Side) *broker.Future[OptionRecord] {
	fut := broker.NewFuture[OptionRecord]()
	ticks := f.cfg.Ticks
	expiry := exp.Format(f.cfg.Chain.ExpiryLayout)
	rec := OptionRecord{Symbol: symbol, Expiration: exp, Strike: strike, Side: side}

	l := broker.Listener{
		TickPrice: func(tp broker.TickPrice) bool {
			switch tp.Field {
			case ticks.Bid:
				rec.Bid = tp.Price
			case ticks.Ask:
				rec.Ask = tp.Price
			case ticks.Last:
				rec.Last = tp.Price
			default:
				return false
			}
			rec.Mid = midpoint(rec.Bid, rec.Ask)
			return false
		},
		TickSize: func(ts broker.TickSize) {
			switch ts.Field {
			case ticks.Volume:
				rec.Volume = int64(ts.Size)
			case ticks.OpenInterest:
				rec.OpenInterest = int64(ts.Size)
			}
		},
		OptionComputation: func(oc broker.OptionComputation) bool {
			rec.Delta = oc.Delta
			rec.Gamma = oc.Gamma
			rec.Theta = oc.Theta
			rec.Vega = oc.Vega
			rec.ImpliedVolatility = oc.ImpliedVol
			rec.UnderlyingPrice = oc.UndPrice
			fut.Complete(rec)
			return true
		},
		Failed: func(err error) { fut.Fail(err) },
	}

	return submit(f.sub, fut, broker.Request{
		Desc: fmt.Sprintf("option %s %s %g %s", symbol, expiry, strike, side),
		Send: func(iss *broker.Issuer) error {
			_, err := iss.RequestOptionMarketData(f.option(symbol, expiry, strike, side), l)
			return err
		},
	})
}

func midpoint(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}
