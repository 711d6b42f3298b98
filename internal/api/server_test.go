package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-ingest/internal/domain"
	"market-ingest/internal/observability"
	"market-ingest/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	gets int
	err  error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seededServer(t *testing.T, opts Options) *Server {
	t.Helper()
	ctx := context.Background()

	prices := memory.NewPricePointStore()
	var points []*domain.PricePoint
	for i := 0; i < 5; i++ {
		v := float64(100 + i)
		points = append(points, &domain.PricePoint{
			Asset: "bitcoin", Interval: domain.PriceInterval1Day, Timestamp: day(i),
			Open: v, High: v + 1, Low: v - 1, Close: v, Volume: &v,
		})
	}
	_, err := prices.UpsertBulk(ctx, points)
	require.NoError(t, err)

	dominance := memory.NewDominancePointStore()
	_, err = dominance.UpsertBulk(ctx, []*domain.DominancePoint{
		{Asset: "BTC", Interval: "daily", Timestamp: day(0), Close: 50},
		{Asset: "BTC", Interval: "daily", Timestamp: day(1), Close: 52},
		{Asset: "ETH", Interval: "daily", Timestamp: day(1), Close: 18},
	})
	require.NoError(t, err)

	divs := memory.NewDivergenceStore()
	swing := -2.5
	_, err = divs.UpsertBulk(ctx, []*domain.Divergence{
		{Asset: "bitcoin", Interval: "1d", Timestamp: day(1), Indicator: domain.IndicatorRSI, Kind: domain.DivergenceBullish, PriceSwing: &swing},
		{Asset: "bitcoin", Interval: "1d", Timestamp: day(3), Indicator: domain.IndicatorMACD, Kind: domain.DivergenceBearish},
		{Asset: "ethereum", Interval: "1d", Timestamp: day(2), Indicator: domain.IndicatorRSI, Kind: domain.DivergenceBearish},
	})
	require.NoError(t, err)

	opts.PriceStore = prices
	opts.DominanceStore = dominance
	opts.DivStore = divs
	opts.Logger = log.New(io.Discard, "", 0)
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics("test", prometheus.NewRegistry())
	}
	return NewServer(opts)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetOHLC(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/api/crypto/ohlc?asset=bitcoin&interval=1d&limit=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ohlcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bitcoin", resp.Asset)
	assert.Equal(t, "1d", resp.Interval)
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Rows, 3)

	// Latest three, ascending.
	assert.True(t, resp.Rows[0].Ts.Equal(day(2)))
	assert.True(t, resp.Rows[2].Ts.Equal(day(4)))
	require.NotNil(t, resp.Rows[2].Volume)
	assert.Equal(t, 104.0, *resp.Rows[2].Volume)
}

func TestGetOHLC_Defaults(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/api/crypto/ohlc")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ohlcResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, DefaultAsset, resp.Asset)
	assert.Equal(t, 5, resp.Count)
}

func TestGetOHLC_UnknownAssetIsEmpty(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/api/crypto/ohlc?asset=dogecoin")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"asset":"dogecoin","interval":"1d","count":0,"rows":[]}`, rec.Body.String())
}

func TestGetOHLC_BadLimit(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := get(t, r, "/api/crypto/ohlc?limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestParseLimit(t *testing.T) {
	n, err := parseLimit("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLimit, n)

	n, err = parseLimit("5000")
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, n)

	n, err = parseLimit(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestGetDominance(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/api/crypto/dominance?assets=BTC,%20ETH,,USDT&interval=daily")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dominanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "daily", resp.Interval)
	assert.Equal(t, []string{"BTC", "ETH", "USDT"}, resp.Assets)
	require.Len(t, resp.Series["BTC"], 2)
	assert.Equal(t, 52.0, resp.Series["BTC"][1].Close)
	assert.Len(t, resp.Series["ETH"], 1)
	assert.Empty(t, resp.Series["USDT"])
}

func TestResponseCache(t *testing.T) {
	c := newMapCache()
	r := seededServer(t, Options{Cache: c, CacheTTL: time.Minute}).Router()

	first := get(t, r, "/api/crypto/ohlc?limit=2")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Contains(t, c.data, "ohlc:bitcoin:1d:2")

	second := get(t, r, "/api/crypto/ohlc?limit=2")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestResponseCache_ErrorFallsBackToStore(t *testing.T) {
	c := newMapCache()
	c.err = errors.New("redis down")
	r := seededServer(t, Options{Cache: c}).Router()

	rec := get(t, r, "/api/crypto/dominance")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dominanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Series["BTC"], 2)
}

func TestHealth(t *testing.T) {
	r := seededServer(t, Options{Pingers: map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return nil }),
	}}).Router()

	rec := get(t, r, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "up", resp.Checks["postgres"])
}

func TestHealth_Degraded(t *testing.T) {
	r := seededServer(t, Options{Pingers: map[string]Pinger{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}}).Router()

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDivergences(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	rec := get(t, r, "/api/crypto/divergences")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp divergenceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Rows, 3)
	assert.True(t, resp.Rows[0].Ts.Equal(day(1)))
	assert.Equal(t, "ethereum", resp.Rows[1].Asset)
	require.NotNil(t, resp.Rows[0].PriceSwing)
	assert.Equal(t, -2.5, *resp.Rows[0].PriceSwing)
	assert.Nil(t, resp.Rows[0].IndicatorSwing)
}

func TestGetDivergences_Filters(t *testing.T) {
	r := seededServer(t, Options{}).Router()

	tests := []struct {
		query string
		want  int
	}{
		{"asset=bitcoin", 2},
		{"kind=bearish", 2},
		{"indicator=RSI&kind=bearish", 1},
		{"asset=bitcoin&limit=1", 1},
		{"interval=1h", 0},
	}
	for _, tt := range tests {
		rec := get(t, r, "/api/crypto/divergences?"+tt.query)
		require.Equal(t, http.StatusOK, rec.Code, tt.query)

		var resp divergenceResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), tt.query)
		assert.Equal(t, tt.want, resp.Count, tt.query)
		assert.Len(t, resp.Rows, tt.want, tt.query)
	}

	rec := get(t, r, "/api/crypto/divergences?asset=bitcoin&limit=1")
	assert.Contains(t, rec.Body.String(), `"indicator":"MACD"`)

	rec = get(t, r, "/api/crypto/divergences?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDivergences_CachedPerFilter(t *testing.T) {
	c := newMapCache()
	r := seededServer(t, Options{Cache: c}).Router()

	rec := get(t, r, "/api/crypto/divergences?asset=bitcoin&kind=bullish")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, c.data, "divergences:bitcoin:::bullish:200")

	rec = get(t, r, "/api/crypto/divergences?asset=bitcoin&kind=bullish")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestGetDivergences_UnregisteredWithoutStore(t *testing.T) {
	r := NewServer(Options{
		PriceStore:     memory.NewPricePointStore(),
		DominanceStore: memory.NewDominancePointStore(),
		Logger:         log.New(io.Discard, "", 0),
	}).Router()

	rec := get(t, r, "/api/crypto/divergences")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
