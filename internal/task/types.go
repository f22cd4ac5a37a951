package task

import (
	"time"
)

// Quote is the reference price of a stock.
type Quote struct {
	Symbol string
	Price  float64
	// Field is the tick field the price came from.
	Field int
}

// HistoricalRange is the low and high of a historical series.
type HistoricalRange struct {
	Symbol string
	Low    float64
	High   float64
	Bars   int
}

// Side is the right of an option contract.
type Side string

const (
	Call Side = "C"
	Put  Side = "P"
)

// OptionRecord is the market data and Greeks of one option contract.
type OptionRecord struct {
	Symbol            string
	Expiration        time.Time
	Strike            float64
	Side              Side
	Bid               float64
	Ask               float64
	Mid               float64
	Last              float64
	Volume            int64
	OpenInterest      int64
	Delta             float64
	Gamma             float64
	Theta             float64
	Vega              float64
	ImpliedVolatility float64
	UnderlyingPrice   float64
}

// StrikeRecord joins the call and put of one expiration and strike.
type StrikeRecord struct {
	Symbol     string
	Expiration time.Time
	Strike     float64
	Call       OptionRecord
	Put        OptionRecord
}

// Records flattens the pair, call first.
func (s StrikeRecord) Records() []OptionRecord {
	return []OptionRecord{s.Call, s.Put}
}

// PairStrikes groups records by expiration and strike, keeping only complete
// call and put pairs, in input order of first appearance.
func PairStrikes(records []OptionRecord) []StrikeRecord {
	type key struct {
		exp    time.Time
		strike float64
	}
	var (
		order []key
		calls = make(map[key]OptionRecord)
		puts  = make(map[key]OptionRecord)
	)
	for _, r := range records {
		k := key{exp: r.Expiration, strike: r.Strike}
		_, seenCall := calls[k]
		_, seenPut := puts[k]
		if !seenCall && !seenPut {
			order = append(order, k)
		}
		switch r.Side {
		case Call:
			calls[k] = r
		case Put:
			puts[k] = r
		}
	}

	out := make([]StrikeRecord, 0, len(order))
	for _, k := range order {
		c, okc := calls[k]
		p, okp := puts[k]
		if !okc || !okp {
			continue
		}
		out = append(out, StrikeRecord{
			Symbol:     c.Symbol,
			Expiration: k.exp,
			Strike:     k.strike,
			Call:       c,
			Put:        p,
		})
	}
	return out
}
