package task

import (
	"slices"
	"time"
)

// FilterExpirations keeps the expirations that fall on cfg.Weekday (Friday when nil) and lie
// before the horizon counted from now's date. The result is sorted and
// deduplicated; dates that do not parse with cfg.ExpiryLayout are skipped.
func FilterExpirations(expirations []string, now time.Time, cfg ChainConfig) []time.Time {
	layout := cfg.ExpiryLayout
	if layout == "" {
		layout = DefaultChainConfig().ExpiryLayout
	}
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	horizon := today.AddDate(0, cfg.HorizonMonths, 0)
	weekday := cfg.weekday()

	out := make([]time.Time, 0, len(expirations))
	for _, raw := range expirations {
		exp, err := time.ParseInLocation(layout, raw, loc)
		if err != nil {
			continue
		}
		if exp.Weekday() != weekday || !exp.Before(horizon) {
			continue
		}
		out = append(out, exp)
	}

	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}
