package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"optionsql/internal/analyze"
	"optionsql/internal/collect"
	"optionsql/internal/model"
	"optionsql/internal/ops"
	"optionsql/internal/store"
	"optionsql/internal/task"
	"optionsql/pkg/backoff"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	envFiles := flag.String("env", ".env", "Comma separated dotenv files (missing files are skipped)")
	tickersPath := flag.String("tickers", "", "Tickers file (overrides collect.tickers)")
	once := flag.Bool("once", false, "Run a single collection pass and exit")
	interval := flag.Duration("interval", 0, "Delay between passes (overrides collect.interval)")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "Session metrics log interval (0=disable)")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.Parse()

	if err := ops.LoadEnv(splitList(*envFiles)...); err != nil {
		log.Fatalf("env load failed: %v", err)
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := loaded.ApplyEnv(nil); err != nil {
		log.Fatalf("env overlay failed: %v", err)
	}
	if *tickersPath != "" {
		loaded.Collect.Tickers = *tickersPath
	}
	if *interval > 0 {
		loaded.Collect.Interval = *interval
	}
	if loaded.Collect.Tickers == "" {
		log.Fatalf("no tickers file, set -tickers or collect.tickers")
	}
	tickers, err := ops.LoadTickers(loaded.Collect.Tickers)
	if err != nil {
		log.Fatalf("tickers load failed: %v", err)
	}

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "optionsql/collector",
			ServerAddress:   *pyroscopeAddr,
			Tags: map[string]string{
				"gateway": loaded.Dial.Addr(),
			},
			Logger: emptyLogger{},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sys.Shutdown()
		logs.Info("shutdown signal received")
		cancel()
	}()

	sink, pg, err := openSink(ctx, loaded.Store)
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logs.Errorf("store close failed, err: %+v", err)
		}
	}()

	var analyzer *analyze.Service
	if loaded.Store.AnalyzeDir != "" && pg != nil {
		analyzer, err = analyze.New(pg, loaded.Store.AnalyzeDir)
		if err != nil {
			log.Fatalf("analyze init failed: %v", err)
		}
	}

	sup, err := collect.NewSupervisor(loaded.Session, loaded.Dial, backoff.Default())
	if err != nil {
		log.Fatalf("supervisor init failed: %v", err)
	}
	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logs.Errorf("supervisor stopped, err: %+v", err)
		}
	}()
	if *statsInterval > 0 {
		go logMetrics(ctx, sup, *statsInterval)
	}

	fetcher, err := task.New(sup, loaded.Task)
	if err != nil {
		log.Fatalf("fetcher init failed: %v", err)
	}
	svc, err := collect.NewService(fetcher, sink, collect.ServiceConfig{Parallel: loaded.Collect.Parallel})
	if err != nil {
		log.Fatalf("service init failed: %v", err)
	}

	logs.Infof("collector started, gateway: %s, tickers: %d, store: %s", loaded.Dial.Addr(), len(tickers), loaded.Store.Driver)
	runPasses(ctx, sup, svc, analyzer, tickers, *once, loaded.Collect.Interval)

	cancel()
	<-supDone
	logs.Info("collector stopped")
}

func runPasses(ctx context.Context, sup *collect.Supervisor, svc *collect.Service, analyzer *analyze.Service, tickers []model.Ticker, once bool, interval time.Duration) {
	for {
		if err := sup.WaitReady(ctx); err != nil {
			return
		}
		report, err := svc.Run(ctx, tickers)
		if err != nil {
			return
		}
		for symbol, err := range report.Failed {
			logs.Errorf("%s not collected, err: %+v", symbol, err)
		}
		if analyzer != nil && len(report.Succeeded) > 0 {
			if _, err := analyzer.Run(ctx); err != nil {
				logs.Errorf("analysis failed, err: %+v", err)
			}
		}
		if once {
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// openSink opens the configured sink. The Postgres handle is returned as
// well when the sink is backed by it.
func openSink(ctx context.Context, spec ops.StoreSettings) (store.Sink, *store.Postgres, error) {
	switch spec.Driver {
	case ops.DriverPostgres:
	case ops.DriverJournal:
		j, err := store.NewJournal(spec.Journal)
		if err != nil {
			return nil, nil, err
		}
		return j, nil, nil
	default:
		return store.Log{}, nil, nil
	}
	pg, err := store.Open(spec.Option)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, err
	}
	return pg, pg, nil
}

func logMetrics(ctx context.Context, sup *collect.Supervisor, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		sess := sup.Session()
		if sess == nil {
			logs.Info("gateway not connected")
			continue
		}
		snap := sess.Metrics().Snapshot()
		logs.Infof("session metrics: dispatched=%d completed=%d failed=%d timeouts=%d in_flight=%d waiting=%d unsolicited=%d latency_avg=%s latency_max=%s",
			snap.Dispatched, snap.Completed, snap.Failed, snap.Timeouts,
			snap.InFlight, snap.Waiting, snap.Unsolicited,
			snap.RequestLatency.Avg, snap.RequestLatency.Max)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type emptyLogger struct{}

func (emptyLogger) Infof(_ string, _ ...interface{})  {}
func (emptyLogger) Debugf(_ string, _ ...interface{}) {}
func (emptyLogger) Errorf(_ string, _ ...interface{}) {}
