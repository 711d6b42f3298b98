package memory

import (
	"context"
	"sort"
	"sync"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

// DivergenceStore is an in-memory implementation of storage.DivergenceStore.
type DivergenceStore struct {
	mu   sync.RWMutex
	data map[domain.DivergenceKey]*domain.Divergence
}

// NewDivergenceStore creates a new in-memory divergence store.
func NewDivergenceStore() *DivergenceStore {
	return &DivergenceStore{
		data: make(map[domain.DivergenceKey]*domain.Divergence),
	}
}

// UpsertBulk inserts or overwrites swings for each divergence. Atomic per batch.
func (s *DivergenceStore) UpsertBulk(_ context.Context, divs []*domain.Divergence) (int, error) {
	if len(divs) == 0 {
		return 0, nil
	}

	for _, d := range divs {
		if err := storage.ValidateDivergence(d); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range divs {
		c := *d
		c.Timestamp = d.Timestamp.UTC()
		c.PriceSwing = copyFloat(d.PriceSwing)
		c.IndicatorSwing = copyFloat(d.IndicatorSwing)
		s.data[d.Key()] = &c
	}

	return len(divs), nil
}

// GetLatest retrieves the most recent filter.Limit matching rows, oldest first.
func (s *DivergenceStore) GetLatest(_ context.Context, filter storage.DivergenceFilter) ([]*domain.Divergence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Divergence
	for _, d := range s.data {
		if filter.Matches(d) {
			c := *d
			c.PriceSwing = copyFloat(d.PriceSwing)
			c.IndicatorSwing = copyFloat(d.IndicatorSwing)
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return divergenceLess(result[i], result[j])
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, nil
}

// Count returns the number of stored divergences.
func (s *DivergenceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func divergenceLess(a, b *domain.Divergence) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Asset != b.Asset {
		return a.Asset < b.Asset
	}
	if a.Interval != b.Interval {
		return a.Interval < b.Interval
	}
	if a.Indicator != b.Indicator {
		return a.Indicator < b.Indicator
	}
	return a.Kind < b.Kind
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ storage.DivergenceStore = (*DivergenceStore)(nil)
