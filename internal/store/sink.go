package store

import (
	"context"

	"optionsql/internal/model"

	"github.com/yanun0323/logs"
)

// Sink persists ticker snapshots.
type Sink interface {
	Save(ctx context.Context, snap model.TickerSnapshot) error
	Close() error
}

// Log is a Sink that only logs a summary of each snapshot.
type Log struct{}

func (Log) Save(_ context.Context, snap model.TickerSnapshot) error {
	logs.Infof("%s [%s] price: %.2f, iv range: %.4f-%.4f, option rows: %d",
		snap.Ticker.Symbol, snap.Ticker.Segment, snap.Quote.Price,
		snap.IVRange.Low, snap.IVRange.High, len(NewOptionChainRows(snap)))
	return nil
}

func (Log) Close() error { return nil }
