package main

import (
	"context"
	"fmt"

	"market-ingest/internal/api"
	"market-ingest/internal/config"
	"market-ingest/internal/observability"
	"market-ingest/internal/storage"
	chstore "market-ingest/internal/storage/clickhouse"
	pgstore "market-ingest/internal/storage/postgres"
)

// Read backends for OHLCV and dominance. Divergences are always read from Postgres.
const (
	backendPostgres   = "postgres"
	backendClickhouse = "clickhouse"
)

// checkReadBackend validates the backend choice before any connection is opened.
func checkReadBackend(backend string, cfg *config.Config) error {
	switch backend {
	case backendPostgres:
		return nil
	case backendClickhouse:
		return cfg.RequireClickhouse()
	default:
		return fmt.Errorf("unknown read backend %q: want %s or %s", backend, backendPostgres, backendClickhouse)
	}
}

// readStores is the set of stores behind the API.
type readStores struct {
	prices    storage.PricePointStore
	dominance storage.DominancePointStore
	divs      storage.DivergenceStore
	pingers   map[string]api.Pinger
}

// openReadStores builds the API stores on top of pool, adding a ClickHouse
// connection when backend is clickhouse. The returned cleanup closes it.
func openReadStores(ctx context.Context, backend string, cfg *config.Config, pool *pgstore.Pool, metrics *observability.Metrics) (*readStores, func(), error) {
	if err := checkReadBackend(backend, cfg); err != nil {
		return nil, nil, err
	}

	stores := &readStores{
		divs: storage.NewInstrumentedDivergenceStore(
			pgstore.NewDivergenceStore(pool), backendPostgres, metrics.RecordDBQuery),
		pingers: map[string]api.Pinger{backendPostgres: pool},
	}

	if backend == backendPostgres {
		stores.prices = storage.NewInstrumentedPricePointStore(
			pgstore.NewPricePointStore(pool), backendPostgres, metrics.RecordDBQuery)
		stores.dominance = storage.NewInstrumentedDominancePointStore(
			pgstore.NewDominancePointStore(pool), backendPostgres, metrics.RecordDBQuery)
		return stores, func() {}, nil
	}

	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores.prices = storage.NewInstrumentedPricePointStore(
		chstore.NewPricePointStore(conn), backendClickhouse, metrics.RecordDBQuery)
	stores.dominance = storage.NewInstrumentedDominancePointStore(
		chstore.NewDominancePointStore(conn), backendClickhouse, metrics.RecordDBQuery)
	stores.pingers[backendClickhouse] = conn

	return stores, func() { conn.Close() }, nil
}
