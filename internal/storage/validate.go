package storage

import (
	"fmt"
	"math"
	"time"

	"market-ingest/internal/domain"
)

// ValidatePricePoint checks the fields every store requires before writing.
func ValidatePricePoint(p *domain.PricePoint) error {
	if p == nil {
		return fmt.Errorf("%w: nil price point", ErrInvalidInput)
	}
	if err := validateKey(p.Asset, p.Interval, p.Timestamp); err != nil {
		return err
	}
	for _, v := range []float64{p.Open, p.High, p.Low, p.Close} {
		if !isFinite(v) {
			return fmt.Errorf("%w: non-finite price for %s", ErrInvalidInput, p.Key())
		}
	}
	if p.Volume != nil && !isFinite(*p.Volume) {
		return fmt.Errorf("%w: non-finite volume for %s", ErrInvalidInput, p.Key())
	}
	return nil
}

// ValidateDominancePoint checks the fields every store requires before writing.
func ValidateDominancePoint(p *domain.DominancePoint) error {
	if p == nil {
		return fmt.Errorf("%w: nil dominance point", ErrInvalidInput)
	}
	if err := validateKey(p.Asset, p.Interval, p.Timestamp); err != nil {
		return err
	}
	if !isFinite(p.Close) {
		return fmt.Errorf("%w: non-finite close for %s", ErrInvalidInput, p.Key())
	}
	return nil
}

// ValidateDivergence checks the fields every store requires before writing.
func ValidateDivergence(d *domain.Divergence) error {
	if d == nil {
		return fmt.Errorf("%w: nil divergence", ErrInvalidInput)
	}
	if err := validateKey(d.Asset, d.Interval, d.Timestamp); err != nil {
		return err
	}
	if !domain.IsValidIndicator(d.Indicator) {
		return fmt.Errorf("%w: unknown indicator %q for %s", ErrInvalidInput, d.Indicator, d.Key())
	}
	if !domain.IsValidDivergenceKind(d.Kind) {
		return fmt.Errorf("%w: unknown divergence kind %q for %s", ErrInvalidInput, d.Kind, d.Key())
	}
	for _, v := range []*float64{d.PriceSwing, d.IndicatorSwing} {
		if v != nil && !isFinite(*v) {
			return fmt.Errorf("%w: non-finite swing for %s", ErrInvalidInput, d.Key())
		}
	}
	return nil
}

func validateKey(asset, interval string, ts time.Time) error {
	if asset == "" || interval == "" {
		return fmt.Errorf("%w: empty asset or interval", ErrInvalidInput)
	}
	if ts.IsZero() {
		return fmt.Errorf("%w: zero timestamp for %s/%s", ErrInvalidInput, asset, interval)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
