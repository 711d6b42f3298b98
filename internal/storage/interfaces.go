package storage

import (
	"context"
	"time"

	"market-ingest/internal/domain"
)

// PricePointStore provides access to ohlc storage.
type PricePointStore interface {
	// UpsertBulk inserts each point or, when (asset, interval, ts) already exists,
	// overwrites open/high/low/close/volume. The batch is atomic: on error nothing is written.
	// Returns the number of points processed.
	UpsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error)

	// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
	GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error)

	// GetByTimeRange retrieves points within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.PricePoint, error)
}

// DominancePointStore provides access to dominance_points storage.
type DominancePointStore interface {
	// UpsertBulk inserts each point or, when (asset, interval, ts) already exists,
	// overwrites close. The batch is atomic: on error nothing is written.
	// Returns the number of points processed.
	UpsertBulk(ctx context.Context, points []*domain.DominancePoint) (int, error)

	// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
	GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error)

	// GetByTimeRange retrieves points within [start, end] (inclusive), ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.DominancePoint, error)
}

// DivergenceFilter narrows a divergence query. Empty fields match every row.
type DivergenceFilter struct {
	Asset     string
	Interval  string
	Indicator string
	Kind      string
	Limit     int // most recent rows to return; <= 0 means all
}

// Matches reports whether d passes every non-empty field of the filter.
func (f DivergenceFilter) Matches(d *domain.Divergence) bool {
	return (f.Asset == "" || d.Asset == f.Asset) &&
		(f.Interval == "" || d.Interval == f.Interval) &&
		(f.Indicator == "" || d.Indicator == f.Indicator) &&
		(f.Kind == "" || d.Kind == f.Kind)
}

// DivergenceStore provides access to divergences storage.
type DivergenceStore interface {
	// UpsertBulk inserts each divergence or, when (asset, interval, ts, indicator, kind)
	// already exists, overwrites the swings. The batch is atomic: on error nothing is written.
	// Returns the number of divergences processed.
	UpsertBulk(ctx context.Context, divs []*domain.Divergence) (int, error)

	// GetLatest retrieves the most recent filter.Limit rows matching filter,
	// ordered by timestamp ASC, then asset, interval, indicator and kind.
	GetLatest(ctx context.Context, filter DivergenceFilter) ([]*domain.Divergence, error)
}
