package domain

import "time"

// DominancePoint represents the share of total tracked market cap held by one asset.
// Corresponds to dominance_points table in PostgreSQL.
type DominancePoint struct {
	Asset     string    // short symbol, e.g. "BTC"
	Interval  string    // "daily" or "hourly"
	Timestamp time.Time // sample time, UTC
	Close     float64   // percentage of total, not clamped
}

// Key returns the natural key of the point.
func (p *DominancePoint) Key() NaturalKey {
	return NewNaturalKey(p.Asset, p.Interval, p.Timestamp)
}

// Dominance intervals.
const (
	DominanceIntervalDaily  = "daily"
	DominanceIntervalHourly = "hourly"
)

// IsValidDominanceInterval reports whether interval is a supported dominance interval.
func IsValidDominanceInterval(interval string) bool {
	return interval == DominanceIntervalDaily || interval == DominanceIntervalHourly
}
