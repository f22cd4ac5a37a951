package ops

import (
	"fmt"
	"os"
	"strings"
	"time"

	"optionsql/internal/broker"
	"optionsql/internal/store"
	"optionsql/internal/task"
	"optionsql/pkg/exception"

	"github.com/bytedance/sonic"
)

const (
	DefaultGatewayHost    = "127.0.0.1"
	DefaultGatewayPort    = 7496
	DefaultRequestTimeout = 30 * time.Second
	DefaultParallel       = 4
	DefaultInterval       = 24 * time.Hour

	DriverPostgres = "postgres"
	DriverJournal  = "journal"
	DriverLog      = "log"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Gateway GatewayConfig `json:"gateway"`
	Session SessionConfig `json:"session"`
	Task    TaskConfig    `json:"task"`
	Store   StoreConfig   `json:"store"`
	Collect CollectConfig `json:"collect"`
}

// GatewayConfig locates the TWS or IB Gateway endpoint.
type GatewayConfig struct {
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ClientID       int64    `json:"clientId"`
	ConnectTimeout Duration `json:"connectTimeout"`
	EventBuffer    int      `json:"eventBuffer"`
}

// SessionConfig tunes request dispatch.
type SessionConfig struct {
	MaxInFlight        int       `json:"maxInFlight"`
	RequestTimeout     *Duration `json:"requestTimeout"`
	InformationalCodes []int     `json:"informationalCodes"`
	OptionExchange     string    `json:"optionExchange"`
}

// TaskConfig tunes the market data workflows.
type TaskConfig struct {
	Ticks      TicksConfig      `json:"ticks"`
	Historical HistoricalConfig `json:"historical"`
	Chain      ChainConfig      `json:"chain"`
	Join       string           `json:"join"`
}

// TicksConfig overrides gateway tick field codes.
type TicksConfig struct {
	Bid          *int `json:"bid"`
	Ask          *int `json:"ask"`
	Last         *int `json:"last"`
	Close        *int `json:"close"`
	Volume       *int `json:"volume"`
	OpenInterest *int `json:"openInterest"`
}

// HistoricalConfig overrides the historical range request.
type HistoricalConfig struct {
	Duration   string `json:"duration"`
	BarSize    string `json:"barSize"`
	WhatToShow string `json:"whatToShow"`
	UseRTH     *bool  `json:"useRTH"`
}

// ChainConfig overrides the option chain fan-out.
type ChainConfig struct {
	Exchange      string `json:"exchange"`
	Currency      string `json:"currency"`
	Multiplier    string `json:"multiplier"`
	HorizonMonths int    `json:"horizonMonths"`
	Weekday       string `json:"weekday"`
}

// StoreConfig selects where snapshots go.
type StoreConfig struct {
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Database     string `json:"database"`
	SSLMode      string `json:"sslMode"`
	BatchSize    int    `json:"batchSize"`
	MaxOpenConns int    `json:"maxOpenConns"`

	// Dir and SegmentMaxBytes apply to the journal driver.
	Dir             string `json:"dir"`
	SegmentMaxBytes int64  `json:"segmentMaxBytes"`

	// AnalyzeDir holds SQL scripts run after every pass. Postgres only.
	AnalyzeDir string `json:"analyzeDir"`
}

// CollectConfig drives the collection loop.
type CollectConfig struct {
	Tickers  string   `json:"tickers"`
	Parallel int      `json:"parallel"`
	Interval Duration `json:"interval"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Dial    broker.IBDialer
	Session broker.SessionConfig
	Task    task.Config
	Store   StoreSettings
	Collect CollectSettings
}

// StoreSettings is the resolved sink selection.
type StoreSettings struct {
	Driver     string
	Option     store.Option
	Journal    store.JournalConfig
	AnalyzeDir string
}

// CollectSettings is the resolved collection loop settings.
type CollectSettings struct {
	Tickers  string
	Parallel int
	Interval time.Duration
}

// Load reads a JSON config file and resolves it. An empty path yields the
// defaults.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Loaded{}, err
		}
		defer f.Close()
		if err := sonic.ConfigFastest.NewDecoder(f).Decode(&cfg); err != nil {
			return Loaded{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates a decoded config.
func Resolve(cfg FileConfig) (Loaded, error) {
	dial, err := resolveGateway(cfg.Gateway)
	if err != nil {
		return Loaded{}, err
	}
	session, err := resolveSession(cfg.Session)
	if err != nil {
		return Loaded{}, err
	}
	tasks, err := resolveTask(cfg.Task)
	if err != nil {
		return Loaded{}, err
	}
	storeSettings, err := resolveStore(cfg.Store)
	if err != nil {
		return Loaded{}, err
	}
	collect := CollectSettings{
		Tickers:  cfg.Collect.Tickers,
		Parallel: cfg.Collect.Parallel,
		Interval: cfg.Collect.Interval.Std(),
	}
	if collect.Parallel <= 0 {
		collect.Parallel = DefaultParallel
	}
	if collect.Interval <= 0 {
		collect.Interval = DefaultInterval
	}

	return Loaded{
		Dial:    dial,
		Session: session,
		Task:    tasks,
		Store:   storeSettings,
		Collect: collect,
	}, nil
}

func resolveGateway(cfg GatewayConfig) (broker.IBDialer, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultGatewayHost
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultGatewayPort
	}
	if port < 0 || port > 65535 {
		return broker.IBDialer{}, fmt.Errorf("%w: gateway port %d", exception.ErrConfigInvalid, port)
	}
	if cfg.ClientID < 0 {
		return broker.IBDialer{}, fmt.Errorf("%w: client id %d", exception.ErrConfigInvalid, cfg.ClientID)
	}
	if cfg.EventBuffer < 0 {
		return broker.IBDialer{}, fmt.Errorf("%w: event buffer %d", exception.ErrConfigInvalid, cfg.EventBuffer)
	}
	return broker.IBDialer{
		Host:           host,
		Port:           port,
		ClientID:       cfg.ClientID,
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		EventBuffer:    cfg.EventBuffer,
	}, nil
}

func resolveSession(cfg SessionConfig) (broker.SessionConfig, error) {
	if cfg.MaxInFlight < 0 {
		return broker.SessionConfig{}, fmt.Errorf("%w: max in flight %d", exception.ErrConfigInvalid, cfg.MaxInFlight)
	}
	timeout := DefaultRequestTimeout
	if cfg.RequestTimeout != nil {
		timeout = cfg.RequestTimeout.Std()
	}
	return broker.SessionConfig{
		MaxInFlight:        cfg.MaxInFlight,
		RequestTimeout:     timeout,
		InformationalCodes: cfg.InformationalCodes,
		OptionExchange:     cfg.OptionExchange,
	}, nil
}

func resolveTask(cfg TaskConfig) (task.Config, error) {
	out := task.DefaultConfig()

	setInt(&out.Ticks.Bid, cfg.Ticks.Bid)
	setInt(&out.Ticks.Ask, cfg.Ticks.Ask)
	setInt(&out.Ticks.Last, cfg.Ticks.Last)
	setInt(&out.Ticks.Close, cfg.Ticks.Close)
	setInt(&out.Ticks.Volume, cfg.Ticks.Volume)
	setInt(&out.Ticks.OpenInterest, cfg.Ticks.OpenInterest)

	setString(&out.Historical.Duration, cfg.Historical.Duration)
	setString(&out.Historical.BarSize, cfg.Historical.BarSize)
	setString(&out.Historical.WhatToShow, cfg.Historical.WhatToShow)
	if cfg.Historical.UseRTH != nil {
		out.Historical.AllHours = !*cfg.Historical.UseRTH
	}

	setString(&out.Chain.Exchange, cfg.Chain.Exchange)
	setString(&out.Chain.Currency, cfg.Chain.Currency)
	setString(&out.Chain.Multiplier, cfg.Chain.Multiplier)
	if cfg.Chain.HorizonMonths < 0 {
		return task.Config{}, fmt.Errorf("%w: horizon months %d", exception.ErrConfigInvalid, cfg.Chain.HorizonMonths)
	}
	if cfg.Chain.HorizonMonths > 0 {
		out.Chain.HorizonMonths = cfg.Chain.HorizonMonths
	}
	if cfg.Chain.Weekday != "" {
		wd, err := parseWeekday(cfg.Chain.Weekday)
		if err != nil {
			return task.Config{}, err
		}
		out.Chain.Weekday = task.Weekday(wd)
	}

	join, err := task.ParseJoinPolicy(cfg.Join)
	if err != nil {
		return task.Config{}, err
	}
	out.Join = join
	return out, nil
}

func resolveStore(cfg StoreConfig) (StoreSettings, error) {
	opt := store.Option{
		DSN:          cfg.DSN,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password,
		Database:     cfg.Database,
		SSLMode:      cfg.SSLMode,
		BatchSize:    cfg.BatchSize,
		MaxOpenConns: cfg.MaxOpenConns,
	}
	journal := store.JournalConfig{Dir: cfg.Dir, SegmentMaxBytes: cfg.SegmentMaxBytes}

	driver := strings.ToLower(cfg.Driver)
	if driver == "" {
		switch {
		case cfg.DSN != "" || cfg.Host != "":
			driver = DriverPostgres
		case cfg.Dir != "":
			driver = DriverJournal
		default:
			driver = DriverLog
		}
	}
	if cfg.AnalyzeDir != "" && driver != DriverPostgres {
		return StoreSettings{}, fmt.Errorf("%w: analyzeDir needs the postgres store", exception.ErrConfigInvalid)
	}
	switch driver {
	case DriverPostgres, DriverLog:
	case DriverJournal:
		if cfg.Dir == "" {
			return StoreSettings{}, fmt.Errorf("%w: journal store needs dir", exception.ErrConfigInvalid)
		}
	default:
		return StoreSettings{}, fmt.Errorf("%w: store driver %q", exception.ErrConfigInvalid, cfg.Driver)
	}
	return StoreSettings{Driver: driver, Option: opt, Journal: journal, AnalyzeDir: cfg.AnalyzeDir}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) || strings.EqualFold(s, d.String()[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: weekday %q", exception.ErrConfigInvalid, s)
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Duration decodes a Go duration string such as "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := sonic.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: duration %s", exception.ErrConfigInvalid, b)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: duration %q", exception.ErrConfigInvalid, s)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
