package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[domain.NaturalKey]*domain.PricePoint
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[domain.NaturalKey]*domain.PricePoint),
	}
}

// UpsertBulk validates the whole batch before applying any of it, so a bad
// point anywhere leaves the store unchanged.
func (s *PricePointStore) UpsertBulk(_ context.Context, points []*domain.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	// First pass: validate
	for _, p := range points {
		if err := storage.ValidatePricePoint(p); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Second pass: insert or overwrite, in batch order
	for _, p := range points {
		s.data[p.Key()] = copyPricePoint(p)
	}

	return len(points), nil
}

// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
func (s *PricePointStore) GetLatest(_ context.Context, asset, interval string, limit int) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filter(func(p *domain.PricePoint) bool {
		return p.Asset == asset && p.Interval == interval
	})
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *PricePointStore) GetByTimeRange(_ context.Context, asset, interval string, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(p *domain.PricePoint) bool {
		return p.Asset == asset && p.Interval == interval &&
			!p.Timestamp.Before(start) && !p.Timestamp.After(end)
	}), nil
}

// Count returns the number of stored points.
func (s *PricePointStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// filter returns sorted copies of matching points. Caller holds the lock.
func (s *PricePointStore) filter(match func(*domain.PricePoint) bool) []*domain.PricePoint {
	var result []*domain.PricePoint
	for _, p := range s.data {
		if match(p) {
			result = append(result, copyPricePoint(p))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

func copyPricePoint(p *domain.PricePoint) *domain.PricePoint {
	c := *p
	c.Timestamp = p.Timestamp.UTC()
	if p.Volume != nil {
		v := *p.Volume
		c.Volume = &v
	}
	return &c
}

var _ storage.PricePointStore = (*PricePointStore)(nil)
