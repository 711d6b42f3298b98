// Package main applies the embedded schema migrations to Postgres and, when
// configured, ClickHouse.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"market-ingest/internal/config"
	"market-ingest/internal/storage/migrations"
	pgstore "market-ingest/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	databaseURL := flag.String("database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty to skip)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.Lshortfile)

	cfg.DatabaseURL = *databaseURL
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Fatalf("Postgres migrations failed: %v", err)
	}
	logger.Println("Postgres schema up to date")

	if *clickhouseDSN == "" {
		return
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
	if err != nil {
		logger.Fatalf("ClickHouse migrations failed: %v", err)
	}
	defer conn.Close()
	logger.Println("ClickHouse schema up to date")
}
