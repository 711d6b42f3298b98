package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
	"market-ingest/internal/storage/memory"
)

var errMirrorDown = errors.New("mirror down")

type failingPriceStore struct {
	storage.PricePointStore
}

func (failingPriceStore) UpsertBulk(context.Context, []*domain.PricePoint) (int, error) {
	return 0, errMirrorDown
}

func point(close float64) *domain.PricePoint {
	return &domain.PricePoint{
		Asset:     "bitcoin",
		Interval:  domain.PriceInterval1Day,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Close:     close,
	}
}

func TestTeePricePointStore_WritesAll(t *testing.T) {
	ctx := context.Background()
	primary := memory.NewPricePointStore()
	mirror := memory.NewPricePointStore()
	tee := storage.NewTeePricePointStore(primary, mirror)

	n, err := tee.UpsertBulk(ctx, []*domain.PricePoint{point(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, primary.Count())
	assert.Equal(t, 1, mirror.Count())

	got, err := tee.GetLatest(ctx, "bitcoin", domain.PriceInterval1Day, 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTeePricePointStore_MirrorFailure(t *testing.T) {
	ctx := context.Background()
	primary := memory.NewPricePointStore()
	tee := storage.NewTeePricePointStore(primary, failingPriceStore{})

	_, err := tee.UpsertBulk(ctx, []*domain.PricePoint{point(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, errMirrorDown)
	assert.Contains(t, err.Error(), "mirror 0")
	assert.Equal(t, 1, primary.Count())
}

func TestTeePricePointStore_PrimaryFailureSkipsMirrors(t *testing.T) {
	ctx := context.Background()
	mirror := memory.NewPricePointStore()
	tee := storage.NewTeePricePointStore(memory.NewPricePointStore(), mirror)

	_, err := tee.UpsertBulk(ctx, []*domain.PricePoint{point(1), nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.Equal(t, 0, mirror.Count())
}

func TestInstrumentedStore_ObservesCalls(t *testing.T) {
	ctx := context.Background()

	var ops []string
	var lastErr error
	observe := func(database, operation string, _ time.Duration, err error) {
		assert.Equal(t, "memory", database)
		ops = append(ops, operation)
		lastErr = err
	}

	s := storage.NewInstrumentedPricePointStore(memory.NewPricePointStore(), "memory", observe)
	_, err := s.UpsertBulk(ctx, []*domain.PricePoint{point(1)})
	require.NoError(t, err)
	_, err = s.GetLatest(ctx, "bitcoin", domain.PriceInterval1Day, 1)
	require.NoError(t, err)
	_, err = s.UpsertBulk(ctx, []*domain.PricePoint{nil})
	require.Error(t, err)

	assert.Equal(t, []string{"upsert_ohlc", "latest_ohlc", "upsert_ohlc"}, ops)
	assert.ErrorIs(t, lastErr, storage.ErrInvalidInput)

	d := storage.NewInstrumentedDominancePointStore(memory.NewDominancePointStore(), "memory", observe)
	_, err = d.GetByTimeRange(ctx, "BTC", domain.DominanceIntervalDaily, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "range_dominance", ops[len(ops)-1])

	v := storage.NewInstrumentedDivergenceStore(memory.NewDivergenceStore(), "memory", observe)
	_, err = v.GetLatest(ctx, storage.DivergenceFilter{Asset: "bitcoin", Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "latest_divergence", ops[len(ops)-1])
	_, err = v.UpsertBulk(ctx, []*domain.Divergence{{Asset: "bitcoin", Interval: "1d", Timestamp: time.Now(), Indicator: "RSI", Kind: "sideways"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.Equal(t, "upsert_divergence", ops[len(ops)-1])
	assert.ErrorIs(t, lastErr, storage.ErrInvalidInput)
}
