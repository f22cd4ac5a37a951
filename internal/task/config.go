package task

import (
	"fmt"
	"strings"
	"time"

	"optionsql/pkg/exception"
)

// TickConfig maps gateway tick field codes to the values the workflows read.
type TickConfig struct {
	Bid          int
	Ask          int
	Last         int
	Close        int
	Volume       int
	OpenInterest int
}

// HistoricalConfig selects the bars of the historical range request.
type HistoricalConfig struct {
	Duration   string
	BarSize    string
	WhatToShow string
	// AllHours includes bars outside regular trading hours.
	AllHours bool
}

// ChainConfig shapes the option chain fan-out.
type ChainConfig struct {
	Exchange      string
	Currency      string
	Multiplier    string
	HorizonMonths int
	// Weekday is the expiration day kept by the filter. Nil means Friday.
	Weekday *time.Weekday
	// ExpiryLayout parses the gateway's expiration strings.
	ExpiryLayout string
}

// Config configures the workflows. Zero fields take the defaults.
type Config struct {
	Ticks      TickConfig
	Historical HistoricalConfig
	Chain      ChainConfig
	Join       JoinPolicy
	// Now fixes the date the expiration filter compares against.
	Now func() time.Time
}

func DefaultTickConfig() TickConfig {
	return TickConfig{
		Bid:          1,
		Ask:          2,
		Last:         4,
		Close:        9,
		Volume:       8,
		OpenInterest: 3,
	}
}

func DefaultHistoricalConfig() HistoricalConfig {
	return HistoricalConfig{
		Duration:   "1 Y",
		BarSize:    "1 day",
		WhatToShow: "OPTION_IMPLIED_VOLATILITY",
	}
}

func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Exchange:      "SMART",
		Currency:      "USD",
		Multiplier:    "100",
		HorizonMonths: 6,
		Weekday:       Weekday(time.Friday),
		ExpiryLayout:  "20060102",
	}
}

func DefaultConfig() Config {
	return Config{
		Ticks:      DefaultTickConfig(),
		Historical: DefaultHistoricalConfig(),
		Chain:      DefaultChainConfig(),
		Join:       FailFast,
		Now:        time.Now,
	}
}

// Weekday returns a pointer to d for ChainConfig.Weekday.
func Weekday(d time.Weekday) *time.Weekday {
	return &d
}

func (c ChainConfig) weekday() time.Weekday {
	if c.Weekday == nil {
		return time.Friday
	}
	return *c.Weekday
}

// withDefaults fills every zero field on its own, so a partially set
// section keeps the defaults of the fields it leaves out.
func (c Config) withDefaults() Config {
	ticks := DefaultTickConfig()
	setZero(&c.Ticks.Bid, ticks.Bid)
	setZero(&c.Ticks.Ask, ticks.Ask)
	setZero(&c.Ticks.Last, ticks.Last)
	setZero(&c.Ticks.Close, ticks.Close)
	setZero(&c.Ticks.Volume, ticks.Volume)
	setZero(&c.Ticks.OpenInterest, ticks.OpenInterest)

	hist := DefaultHistoricalConfig()
	setZero(&c.Historical.Duration, hist.Duration)
	setZero(&c.Historical.BarSize, hist.BarSize)
	setZero(&c.Historical.WhatToShow, hist.WhatToShow)

	chain := DefaultChainConfig()
	setZero(&c.Chain.Exchange, chain.Exchange)
	setZero(&c.Chain.Currency, chain.Currency)
	setZero(&c.Chain.Multiplier, chain.Multiplier)
	setZero(&c.Chain.ExpiryLayout, chain.ExpiryLayout)
	if c.Chain.HorizonMonths <= 0 {
		c.Chain.HorizonMonths = chain.HorizonMonths
	}
	if c.Chain.Weekday == nil {
		c.Chain.Weekday = chain.Weekday
	}

	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

func setZero[T comparable](dst *T, def T) {
	var zero T
	if *dst == zero {
		*dst = def
	}
}

// JoinPolicy decides how strike results combine into a chain.
type JoinPolicy uint8

const (
	// FailFast fails the whole chain on the first failed option leg.
	FailFast JoinPolicy = iota
	// Partial drops strikes with a failed leg and keeps the rest.
	Partial
)

func (p JoinPolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Partial:
		return "partial"
	default:
		return "unknown"
	}
}

// ParseJoinPolicy accepts "fail_fast" and "partial". An empty string is FailFast.
func ParseJoinPolicy(s string) (JoinPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast", "failfast":
		return FailFast, nil
	case "partial":
		return Partial, nil
	default:
		return FailFast, fmt.Errorf("%w: %q", exception.ErrUnknownJoinMode, s)
	}
}
