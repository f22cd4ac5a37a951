package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"optionsql/internal/model"
	"optionsql/internal/task"
	"optionsql/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	loaded, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7496", loaded.Dial.Addr())
	assert.Equal(t, int64(0), loaded.Dial.ClientID)
	assert.Equal(t, DefaultRequestTimeout, loaded.Session.RequestTimeout)
	assert.Equal(t, 0, loaded.Session.MaxInFlight)
	assert.Equal(t, task.DefaultConfig().Chain, loaded.Task.Chain)
	assert.Equal(t, task.FailFast, loaded.Task.Join)
	assert.Equal(t, DriverLog, loaded.Store.Driver)
	assert.Equal(t, DefaultParallel, loaded.Collect.Parallel)
	assert.Equal(t, DefaultInterval, loaded.Collect.Interval)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"gateway": {"host": "gw", "port": 4002, "clientId": 7, "connectTimeout": "5s"},
		"session": {"maxInFlight": 10, "requestTimeout": "0s", "optionExchange": "CBOE"},
		"task": {
			"ticks": {"openInterest": 27},
			"historical": {"duration": "6 M", "useRTH": false},
			"chain": {"horizonMonths": 3, "weekday": "thu"},
			"join": "partial"
		},
		"store": {"host": "db", "database": "optionsql", "batchSize": 100, "analyzeDir": "sql"},
		"collect": {"tickers": "tickers.json", "parallel": 2, "interval": "1h"}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gw:4002", loaded.Dial.Addr())
	assert.Equal(t, int64(7), loaded.Dial.ClientID)
	assert.Equal(t, 5*time.Second, loaded.Dial.ConnectTimeout)

	assert.Equal(t, 10, loaded.Session.MaxInFlight)
	assert.Zero(t, loaded.Session.RequestTimeout)
	assert.Equal(t, "CBOE", loaded.Session.OptionExchange)

	assert.Equal(t, 27, loaded.Task.Ticks.OpenInterest)
	assert.Equal(t, 1, loaded.Task.Ticks.Bid)
	assert.Equal(t, "6 M", loaded.Task.Historical.Duration)
	assert.Equal(t, "1 day", loaded.Task.Historical.BarSize)
	assert.True(t, loaded.Task.Historical.AllHours)
	assert.Equal(t, 3, loaded.Task.Chain.HorizonMonths)
	require.NotNil(t, loaded.Task.Chain.Weekday)
	assert.Equal(t, time.Thursday, *loaded.Task.Chain.Weekday)
	assert.Equal(t, "SMART", loaded.Task.Chain.Exchange)
	assert.Equal(t, task.Partial, loaded.Task.Join)

	assert.Equal(t, DriverPostgres, loaded.Store.Driver)
	assert.Equal(t, "db", loaded.Store.Option.Host)
	assert.Equal(t, 100, loaded.Store.Option.BatchSize)
	assert.Equal(t, "sql", loaded.Store.AnalyzeDir)

	assert.Equal(t, "tickers.json", loaded.Collect.Tickers)
	assert.Equal(t, 2, loaded.Collect.Parallel)
	assert.Equal(t, time.Hour, loaded.Collect.Interval)
}

func TestResolveRejectsInvalid(t *testing.T) {
	cases := map[string]FileConfig{
		"port":     {Gateway: GatewayConfig{Port: 70000}},
		"client":   {Gateway: GatewayConfig{ClientID: -1}},
		"inflight": {Session: SessionConfig{MaxInFlight: -1}},
		"weekday":  {Task: TaskConfig{Chain: ChainConfig{Weekday: "someday"}}},
		"horizon":  {Task: TaskConfig{Chain: ChainConfig{HorizonMonths: -2}}},
		"driver":   {Store: StoreConfig{Driver: "mongo"}},
		"journal":  {Store: StoreConfig{Driver: "journal"}},
		"analyze":  {Store: StoreConfig{Dir: "/var/lib/optionsql", AnalyzeDir: "sql"}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(cfg)
			assert.ErrorIs(t, err, exception.ErrConfigInvalid)
		})
	}

	_, err := Resolve(FileConfig{Task: TaskConfig{Join: "eventually"}})
	assert.ErrorIs(t, err, exception.ErrUnknownJoinMode)
}

func TestLoadBadDuration(t *testing.T) {
	path := writeFile(t, "config.json", `{"session": {"requestTimeout": "soon"}}`)
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolveJournalStore(t *testing.T) {
	loaded, err := Resolve(FileConfig{Store: StoreConfig{Dir: "/var/lib/optionsql", SegmentMaxBytes: 1 << 20}})
	require.NoError(t, err)
	assert.Equal(t, DriverJournal, loaded.Store.Driver)
	assert.Equal(t, "/var/lib/optionsql", loaded.Store.Journal.Dir)
	assert.Equal(t, int64(1<<20), loaded.Store.Journal.SegmentMaxBytes)
}

func TestApplyEnv(t *testing.T) {
	loaded, err := Load("")
	require.NoError(t, err)

	env := map[string]string{
		EnvGatewayHost:    "10.0.0.5",
		EnvGatewayPort:    "4001",
		EnvClientID:       "12",
		EnvPostgresDSN:    "postgres://collector@db/optionsql",
		EnvMaxInFlight:    "25",
		EnvRequestTimeout: "45s",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	require.NoError(t, loaded.ApplyEnv(lookup))

	assert.Equal(t, "10.0.0.5:4001", loaded.Dial.Addr())
	assert.Equal(t, int64(12), loaded.Dial.ClientID)
	assert.Equal(t, DriverPostgres, loaded.Store.Driver)
	assert.Equal(t, "postgres://collector@db/optionsql", loaded.Store.Option.DSN)
	assert.Equal(t, 25, loaded.Session.MaxInFlight)
	assert.Equal(t, 45*time.Second, loaded.Session.RequestTimeout)

	env = map[string]string{EnvGatewayPort: "port"}
	assert.ErrorIs(t, loaded.ApplyEnv(lookup), exception.ErrConfigInvalid)
}

func TestLoadEnv(t *testing.T) {
	path := writeFile(t, "test.env", "OPTIONSQL_LOAD_ENV_MARK=loaded\n")
	t.Setenv("OPTIONSQL_LOAD_ENV_MARK", "")
	require.NoError(t, os.Unsetenv("OPTIONSQL_LOAD_ENV_MARK"))

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "loaded", os.Getenv("OPTIONSQL_LOAD_ENV_MARK"))
}

func TestParseTickers(t *testing.T) {
	tickers, err := ParseTickers([]byte(`{"segments": {
		"tech": ["aapl", " MSFT ", ""],
		"etf": ["SPY", "AAPL"]
	}}`))
	require.NoError(t, err)
	assert.Equal(t, []model.Ticker{
		{Symbol: "SPY", Segment: "etf"},
		{Symbol: "AAPL", Segment: "etf"},
		{Symbol: "MSFT", Segment: "tech"},
	}, tickers)

	_, err = ParseTickers([]byte(`{"segments": {"tech": []}}`))
	assert.ErrorIs(t, err, exception.ErrConfigEmptyTicker)

	_, err = ParseTickers([]byte(`not json`))
	assert.ErrorIs(t, err, exception.ErrConfigInvalid)
}

func TestLoadTickers(t *testing.T) {
	path := writeFile(t, "tickers.json", `{"segments": {"index": ["QQQ"]}}`)
	tickers, err := LoadTickers(path)
	require.NoError(t, err)
	assert.Equal(t, []model.Ticker{{Symbol: "QQQ", Segment: "index"}}, tickers)
}
