package collect

import (
	"context"
	"sort"
	"sync"
	"time"

	"optionsql/internal/model"
	"optionsql/internal/store"
	"optionsql/internal/task"
	"optionsql/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

const DefaultParallel = 4

type ServiceConfig struct {
	// Parallel bounds how many tickers are collected at once.
	Parallel int
	Now      func() time.Time
}

// Service collects snapshots for a ticker universe and hands them to a sink.
type Service struct {
	fetcher *task.Fetcher
	sink    store.Sink
	cfg     ServiceConfig
}

// Report summarizes one collection pass.
type Report struct {
	Started   time.Time
	Finished  time.Time
	Succeeded []string
	Failed    map[string]error
}

func NewService(fetcher *task.Fetcher, sink store.Sink, cfg ServiceConfig) (*Service, error) {
	if fetcher == nil || sink == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = DefaultParallel
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{fetcher: fetcher, sink: sink, cfg: cfg}, nil
}

// Run collects every ticker. A failed ticker is recorded in the report and
// does not stop the others. The error is non-nil only when ctx ends the
// pass early.
func (s *Service) Run(ctx context.Context, tickers []model.Ticker) (Report, error) {
	report := Report{
		Started: s.cfg.Now(),
		Failed:  make(map[string]error),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Parallel)

	for _, t := range tickers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := s.CollectTicker(ctx, t)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logs.Errorf("collect %s failed, err: %+v", t.Symbol, err)
				report.Failed[t.Symbol] = err
				return nil
			}
			report.Succeeded = append(report.Succeeded, t.Symbol)
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Succeeded)
	report.Finished = s.cfg.Now()
	logs.Infof("collection pass done, ok: %d, failed: %d, took: %s",
		len(report.Succeeded), len(report.Failed), report.Finished.Sub(report.Started))
	return report, ctx.Err()
}

// CollectTicker runs the quote, range and chain workflows for one ticker
// concurrently and saves the combined snapshot.
func (s *Service) CollectTicker(ctx context.Context, t model.Ticker) (model.TickerSnapshot, error) {
	quote := s.fetcher.FetchQuote(t.Symbol)
	ivRange := s.fetcher.FetchHistoricalRange(t.Symbol)
	chain := s.fetcher.FetchOptionChain(t.Symbol)

	snap := model.TickerSnapshot{Ticker: t}
	var err error
	if snap.Quote, err = quote.Wait(ctx); err != nil {
		return snap, errors.Wrap(err, "quote")
	}
	if snap.IVRange, err = ivRange.Wait(ctx); err != nil {
		return snap, errors.Wrap(err, "historical range")
	}
	if snap.Chain, err = chain.Wait(ctx); err != nil {
		return snap, errors.Wrap(err, "option chain")
	}
	snap.FetchedAt = s.cfg.Now()

	if err := s.sink.Save(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}
