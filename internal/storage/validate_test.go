package storage

import (
	"errors"
	"math"
	"testing"
	"time"

	"market-ingest/internal/domain"
)

func TestValidatePricePoint(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	nan := math.NaN()

	tests := []struct {
		name    string
		point   *domain.PricePoint
		wantErr bool
	}{
		{"valid", &domain.PricePoint{Asset: "bitcoin", Interval: "1d", Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1}, false},
		{"nil", nil, true},
		{"empty asset", &domain.PricePoint{Interval: "1d", Timestamp: ts}, true},
		{"empty interval", &domain.PricePoint{Asset: "bitcoin", Timestamp: ts}, true},
		{"zero timestamp", &domain.PricePoint{Asset: "bitcoin", Interval: "1d"}, true},
		{"nan close", &domain.PricePoint{Asset: "bitcoin", Interval: "1d", Timestamp: ts, Close: nan}, true},
		{"inf volume", &domain.PricePoint{Asset: "bitcoin", Interval: "1d", Timestamp: ts, Volume: ptr(math.Inf(1))}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePricePoint(tt.point)
			if tt.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateDominancePoint(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := ValidateDominancePoint(&domain.DominancePoint{Asset: "BTC", Interval: "daily", Timestamp: ts, Close: 101.5}); err != nil {
		t.Errorf("out-of-range percentage must not be rejected: %v", err)
	}
	if err := ValidateDominancePoint(&domain.DominancePoint{Asset: "BTC", Interval: "daily", Timestamp: ts, Close: math.NaN()}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for NaN close, got %v", err)
	}
}

func TestValidateDivergence(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := func() *domain.Divergence {
		return &domain.Divergence{Asset: "bitcoin", Interval: "1d", Timestamp: ts, Indicator: domain.IndicatorRSI, Kind: domain.DivergenceBullish}
	}

	tests := []struct {
		name    string
		mutate  func(d *domain.Divergence)
		wantErr bool
	}{
		{"valid without swings", func(*domain.Divergence) {}, false},
		{"valid with swings", func(d *domain.Divergence) { d.PriceSwing, d.IndicatorSwing = ptr(-3.5), ptr(12.0) }, false},
		{"empty asset", func(d *domain.Divergence) { d.Asset = "" }, true},
		{"zero timestamp", func(d *domain.Divergence) { d.Timestamp = time.Time{} }, true},
		{"unknown indicator", func(d *domain.Divergence) { d.Indicator = "STOCH" }, true},
		{"unknown kind", func(d *domain.Divergence) { d.Kind = "hidden" }, true},
		{"nan price swing", func(d *domain.Divergence) { d.PriceSwing = ptr(math.NaN()) }, true},
		{"inf indicator swing", func(d *domain.Divergence) { d.IndicatorSwing = ptr(math.Inf(-1)) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(d)
			err := ValidateDivergence(d)
			if tt.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	if err := ValidateDivergence(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
