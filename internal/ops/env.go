package ops

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"optionsql/pkg/exception"

	"github.com/joho/godotenv"
)

// Environment variables that override the file config.
const (
	EnvGatewayHost    = "TWS_HOST"
	EnvGatewayPort    = "TWS_PORT"
	EnvClientID       = "TWS_CLIENT_ID"
	EnvPostgresDSN    = "PG_DSN"
	EnvMaxInFlight    = "MAX_IN_FLIGHT"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
)

// LoadEnv loads dotenv files into the process environment. Files that do
// not exist are skipped; with no arguments ".env" is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overlays environment values onto a resolved config. A nil
// lookup reads the process environment.
func (l *Loaded) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvGatewayHost); ok && v != "" {
		l.Dial.Host = v
	}
	if v, ok := lookup(EnvGatewayPort); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("%w: %s=%q", exception.ErrConfigInvalid, EnvGatewayPort, v)
		}
		l.Dial.Port = n
	}

	if v, ok := lookup(EnvClientID); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", exception.ErrConfigInvalid, EnvClientID, v)
		}
		l.Dial.ClientID = n
	}
	if v, ok := lookup(EnvPostgresDSN); ok && v != "" {
		l.Store.Option.DSN = v
		l.Store.Driver = DriverPostgres
	}
	if v, ok := lookup(EnvMaxInFlight); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s=%q", exception.ErrConfigInvalid, EnvMaxInFlight, v)
		}
		l.Session.MaxInFlight = n
	}
	if v, ok := lookup(EnvRequestTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: %s=%q", exception.ErrConfigInvalid, EnvRequestTimeout, v)
		}
		l.Session.RequestTimeout = d
	}
	return nil
}
