package model

import (
	"time"

	"optionsql/internal/task"
)

// Ticker is one symbol of the collection universe and the segment it was
// listed under.
type Ticker struct {
	Symbol  string
	Segment string
}

// TickerSnapshot is everything collected for one ticker in one pass.
type TickerSnapshot struct {
	Ticker    Ticker
	Quote     task.Quote
	IVRange   task.HistoricalRange
	Chain     []task.OptionRecord
	FetchedAt time.Time
}

// Strikes pairs the chain into call and put rows.
func (s TickerSnapshot) Strikes() []task.StrikeRecord {
	return task.PairStrikes(s.Chain)
}
