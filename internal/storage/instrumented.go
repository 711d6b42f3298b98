package storage

import (
	"context"
	"time"

	"market-ingest/internal/domain"
)

// QueryObserver receives the duration and outcome of one store call.
type QueryObserver func(database, operation string, d time.Duration, err error)

// InstrumentedPricePointStore reports every call on the wrapped store to an observer.
type InstrumentedPricePointStore struct {
	next     PricePointStore
	database string
	observe  QueryObserver
}

// NewInstrumentedPricePointStore wraps next. database labels the observations.
func NewInstrumentedPricePointStore(next PricePointStore, database string, observe QueryObserver) *InstrumentedPricePointStore {
	return &InstrumentedPricePointStore{next: next, database: database, observe: observe}
}

var _ PricePointStore = (*InstrumentedPricePointStore)(nil)

func (s *InstrumentedPricePointStore) UpsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	start := time.Now()
	n, err := s.next.UpsertBulk(ctx, points)
	s.observe(s.database, "upsert_ohlc", time.Since(start), err)
	return n, err
}

func (s *InstrumentedPricePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error) {
	start := time.Now()
	points, err := s.next.GetLatest(ctx, asset, interval, limit)
	s.observe(s.database, "latest_ohlc", time.Since(start), err)
	return points, err
}

func (s *InstrumentedPricePointStore) GetByTimeRange(ctx context.Context, asset, interval string, from, to time.Time) ([]*domain.PricePoint, error) {
	start := time.Now()
	points, err := s.next.GetByTimeRange(ctx, asset, interval, from, to)
	s.observe(s.database, "range_ohlc", time.Since(start), err)
	return points, err
}

// InstrumentedDominancePointStore reports every call on the wrapped store to an observer.
type InstrumentedDominancePointStore struct {
	next     DominancePointStore
	database string
	observe  QueryObserver
}

// NewInstrumentedDominancePointStore wraps next. database labels the observations.
func NewInstrumentedDominancePointStore(next DominancePointStore, database string, observe QueryObserver) *InstrumentedDominancePointStore {
	return &InstrumentedDominancePointStore{next: next, database: database, observe: observe}
}

var _ DominancePointStore = (*InstrumentedDominancePointStore)(nil)

func (s *InstrumentedDominancePointStore) UpsertBulk(ctx context.Context, points []*domain.DominancePoint) (int, error) {
	start := time.Now()
	n, err := s.next.UpsertBulk(ctx, points)
	s.observe(s.database, "upsert_dominance", time.Since(start), err)
	return n, err
}

func (s *InstrumentedDominancePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error) {
	start := time.Now()
	points, err := s.next.GetLatest(ctx, asset, interval, limit)
	s.observe(s.database, "latest_dominance", time.Since(start), err)
	return points, err
}

func (s *InstrumentedDominancePointStore) GetByTimeRange(ctx context.Context, asset, interval string, from, to time.Time) ([]*domain.DominancePoint, error) {
	start := time.Now()
	points, err := s.next.GetByTimeRange(ctx, asset, interval, from, to)
	s.observe(s.database, "range_dominance", time.Since(start), err)
	return points, err
}

// InstrumentedDivergenceStore reports every call on the wrapped store to an observer.
type InstrumentedDivergenceStore struct {
	next     DivergenceStore
	database string
	observe  QueryObserver
}

// NewInstrumentedDivergenceStore wraps next. database labels the observations.
func NewInstrumentedDivergenceStore(next DivergenceStore, database string, observe QueryObserver) *InstrumentedDivergenceStore {
	return &InstrumentedDivergenceStore{next: next, database: database, observe: observe}
}

var _ DivergenceStore = (*InstrumentedDivergenceStore)(nil)

func (s *InstrumentedDivergenceStore) UpsertBulk(ctx context.Context, divs []*domain.Divergence) (int, error) {
	start := time.Now()
	n, err := s.next.UpsertBulk(ctx, divs)
	s.observe(s.database, "upsert_divergence", time.Since(start), err)
	return n, err
}

func (s *InstrumentedDivergenceStore) GetLatest(ctx context.Context, filter DivergenceFilter) ([]*domain.Divergence, error) {
	start := time.Now()
	divs, err := s.next.GetLatest(ctx, filter)
	s.observe(s.database, "latest_divergence", time.Since(start), err)
	return divs, err
}
