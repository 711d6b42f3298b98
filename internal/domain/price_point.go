package domain

import "time"

// PricePoint represents one OHLCV candle for one asset at one interval.
// Corresponds to ohlc table in PostgreSQL.
type PricePoint struct {
	Asset     string    // provider asset id, e.g. "bitcoin"
	Interval  string    // candle interval tag, e.g. "1d"
	Timestamp time.Time // candle open time, UTC
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    *float64 // NULL when the volume series has no entry for the date
}

// Key returns the natural key of the point.
func (p *PricePoint) Key() NaturalKey {
	return NewNaturalKey(p.Asset, p.Interval, p.Timestamp)
}

// Supported candle intervals.
const (
	PriceInterval1Day = "1d"
)
