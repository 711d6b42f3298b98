package storage

import (
	"context"
	"fmt"
	"time"

	"market-ingest/internal/domain"
)

// TeePricePointStore writes to a primary store and then to each mirror.
// Reads are served by the primary.
type TeePricePointStore struct {
	primary PricePointStore
	mirrors []PricePointStore
}

// NewTeePricePointStore creates a TeePricePointStore.
func NewTeePricePointStore(primary PricePointStore, mirrors ...PricePointStore) *TeePricePointStore {
	return &TeePricePointStore{primary: primary, mirrors: mirrors}
}

var _ PricePointStore = (*TeePricePointStore)(nil)

// UpsertBulk writes to the primary first. A mirror failure is returned as an
// error; the primary write is already committed by then and stays idempotent on re-run.
func (s *TeePricePointStore) UpsertBulk(ctx context.Context, points []*domain.PricePoint) (int, error) {
	n, err := s.primary.UpsertBulk(ctx, points)
	if err != nil {
		return 0, err
	}
	for i, m := range s.mirrors {
		if _, err := m.UpsertBulk(ctx, points); err != nil {
			return n, fmt.Errorf("mirror %d: %w", i, err)
		}
	}
	return n, nil
}

// GetLatest reads from the primary.
func (s *TeePricePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error) {
	return s.primary.GetLatest(ctx, asset, interval, limit)
}

// GetByTimeRange reads from the primary.
func (s *TeePricePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.PricePoint, error) {
	return s.primary.GetByTimeRange(ctx, asset, interval, start, end)
}

// TeeDominancePointStore writes to a primary store and then to each mirror.
type TeeDominancePointStore struct {
	primary DominancePointStore
	mirrors []DominancePointStore
}

// NewTeeDominancePointStore creates a TeeDominancePointStore.
func NewTeeDominancePointStore(primary DominancePointStore, mirrors ...DominancePointStore) *TeeDominancePointStore {
	return &TeeDominancePointStore{primary: primary, mirrors: mirrors}
}

var _ DominancePointStore = (*TeeDominancePointStore)(nil)

// UpsertBulk writes to the primary first, then to each mirror.
func (s *TeeDominancePointStore) UpsertBulk(ctx context.Context, points []*domain.DominancePoint) (int, error) {
	n, err := s.primary.UpsertBulk(ctx, points)
	if err != nil {
		return 0, err
	}
	for i, m := range s.mirrors {
		if _, err := m.UpsertBulk(ctx, points); err != nil {
			return n, fmt.Errorf("mirror %d: %w", i, err)
		}
	}
	return n, nil
}

// GetLatest reads from the primary.
func (s *TeeDominancePointStore) GetLatest(ctx context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error) {
	return s.primary.GetLatest(ctx, asset, interval, limit)
}

// GetByTimeRange reads from the primary.
func (s *TeeDominancePointStore) GetByTimeRange(ctx context.Context, asset, interval string, start, end time.Time) ([]*domain.DominancePoint, error) {
	return s.primary.GetByTimeRange(ctx, asset, interval, start, end)
}
