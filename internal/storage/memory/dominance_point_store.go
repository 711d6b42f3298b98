package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// DominancePointStore is an in-memory implementation of storage.DominancePointStore.
type DominancePointStore struct {
	mu   sync.RWMutex
	data map[domain.NaturalKey]*domain.DominancePoint
}

// NewDominancePointStore creates a new in-memory dominance point store.
func NewDominancePointStore() *DominancePointStore {
	return &DominancePointStore{
		data: make(map[domain.NaturalKey]*domain.DominancePoint),
	}
}

// UpsertBulk inserts or overwrites close for each point. Atomic per batch.
func (s *DominancePointStore) UpsertBulk(_ context.Context, points []*domain.DominancePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	for _, p := range points {
		if err := storage.ValidateDominancePoint(p); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		c := *p
		c.Timestamp = p.Timestamp.UTC()
		s.data[p.Key()] = &c
	}

	return len(points), nil
}

// GetLatest retrieves the most recent limit points, ordered by timestamp ASC.
func (s *DominancePointStore) GetLatest(_ context.Context, asset, interval string, limit int) ([]*domain.DominancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filter(func(p *domain.DominancePoint) bool {
		return p.Asset == asset && p.Interval == interval
	})
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// GetByTimeRange retrieves points within [start, end] (inclusive).
func (s *DominancePointStore) GetByTimeRange(_ context.Context, asset, interval string, start, end time.Time) ([]*domain.DominancePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filter(func(p *domain.DominancePoint) bool {
		return p.Asset == asset && p.Interval == interval &&
			!p.Timestamp.Before(start) && !p.Timestamp.After(end)
	}), nil
}

// Count returns the number of stored points.
func (s *DominancePointStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *DominancePointStore) filter(match func(*domain.DominancePoint) bool) []*domain.DominancePoint {
	var result []*domain.DominancePoint
	for _, p := range s.data {
		if match(p) {
			c := *p
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result
}

var _ storage.DominancePointStore = (*DominancePointStore)(nil)
