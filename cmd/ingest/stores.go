package main

import (
	"context"
	"fmt"
	"log"

	"market-ingest/internal/config"
	"market-ingest/internal/observability"
	"market-ingest/internal/storage"
	chstore "market-ingest/internal/storage/clickhouse"
	"market-ingest/internal/storage/memory"
	"market-ingest/internal/storage/migrations"
	pgstore "market-ingest/internal/storage/postgres"
)

// stores holds the write targets for one invocation.
type stores struct {
	prices    storage.PricePointStore
	dominance storage.DominancePointStore
}

// createStores opens Postgres, applies migrations and, when CLICKHOUSE_DSN is
// set, mirrors every write into ClickHouse.
func createStores(ctx context.Context, cfg *config.Config, useMemory bool, metrics *observability.Metrics, logger *log.Logger) (*stores, func(), error) {
	if useMemory {
		logger.Println("Using in-memory storage")
		return &stores{
			prices:    memory.NewPricePointStore(),
			dominance: memory.NewDominancePointStore(),
		}, func() {}, nil
	}

	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	var prices storage.PricePointStore = storage.NewInstrumentedPricePointStore(
		pgstore.NewPricePointStore(pool), "postgres", metrics.RecordDBQuery)
	var dominance storage.DominancePointStore = storage.NewInstrumentedDominancePointStore(
		pgstore.NewDominancePointStore(pool), "postgres", metrics.RecordDBQuery)

	cleanup := func() { pool.Close() }

	// ClickHouse (optional analytics mirror)
	if cfg.ClickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Println("Mirroring writes to ClickHouse")

		prices = storage.NewTeePricePointStore(prices, storage.NewInstrumentedPricePointStore(
			chstore.NewPricePointStore(chConn), "clickhouse", metrics.RecordDBQuery))
		dominance = storage.NewTeeDominancePointStore(dominance, storage.NewInstrumentedDominancePointStore(
			chstore.NewDominancePointStore(chConn), "clickhouse", metrics.RecordDBQuery))

		cleanup = func() {
			chConn.Close()
			pool.Close()
		}
	}

	return &stores{prices: prices, dominance: dominance}, cleanup, nil
}
