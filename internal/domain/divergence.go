package domain

import (
	"fmt"
	"time"
)

// Divergence is a detected disagreement between price and an indicator swing.
// Corresponds to divergences table in PostgreSQL.
type Divergence struct {
	Asset          string    // provider asset id, e.g. "bitcoin"
	Interval       string    // candle interval tag the signal was computed on
	Timestamp      time.Time // candle time of the confirming swing, UTC
	Indicator      string    // IndicatorRSI or IndicatorMACD
	Kind           string    // DivergenceBullish or DivergenceBearish
	PriceSwing     *float64  // price change between the two swings, if recorded
	IndicatorSwing *float64  // indicator change between the two swings, if recorded
}

// DivergenceKey identifies one stored divergence.
// Several indicators and kinds may fire on the same candle.
type DivergenceKey struct {
	NaturalKey
	Indicator string
	Kind      string
}

// Key returns the unique key of the divergence.
func (d *Divergence) Key() DivergenceKey {
	return DivergenceKey{
		NaturalKey: NewNaturalKey(d.Asset, d.Interval, d.Timestamp),
		Indicator:  d.Indicator,
		Kind:       d.Kind,
	}
}

// Divergence indicators.
const (
	IndicatorRSI  = "RSI"
	IndicatorMACD = "MACD"
)

// Divergence kinds.
const (
	DivergenceBullish = "bullish"
	DivergenceBearish = "bearish"
)

// IsValidIndicator reports whether indicator is a supported divergence indicator.
func IsValidIndicator(indicator string) bool {
	return indicator == IndicatorRSI || indicator == IndicatorMACD
}

// IsValidDivergenceKind reports whether kind is bullish or bearish.
func IsValidDivergenceKind(kind string) bool {
	return kind == DivergenceBullish || kind == DivergenceBearish
}

func (k DivergenceKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.NaturalKey, k.Indicator, k.Kind)
}
