// Package main serves the read API over stored OHLCV, dominance and divergence series.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"market-ingest/internal/api"
	"market-ingest/internal/cache"
	"market-ingest/internal/config"
	"market-ingest/internal/observability"
	pgstore "market-ingest/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address")
	databaseURL := flag.String("database-url", cfg.DatabaseURL, "PostgreSQL connection string")
	redisAddr := flag.String("redis-addr", cfg.RedisAddr, "Redis address for the response cache (empty to disable)")
	cacheTTL := flag.Duration("cache-ttl", cfg.CacheTTL, "Response cache TTL")
	readBackend := flag.String("read-backend", cfg.ReadBackend, "Store serving OHLCV and dominance reads: postgres or clickhouse")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string, required with --read-backend clickhouse")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)
	gin.SetMode(gin.ReleaseMode)

	cfg.DatabaseURL = *databaseURL
	cfg.ClickhouseDSN = *clickhouseDSN
	if err := cfg.RequireDatabase(); err != nil {
		logger.Fatal(err)
	}
	if err := checkReadBackend(*readBackend, cfg); err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.DefaultMetrics

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	stores, closeStores, err := openReadStores(ctx, *readBackend, cfg, pool, metrics)
	if err != nil {
		logger.Fatalf("Failed to open read stores: %v", err)
	}
	defer closeStores()
	logger.Printf("Serving OHLCV and dominance reads from %s", *readBackend)

	opts := api.Options{
		PriceStore:     stores.prices,
		DominanceStore: stores.dominance,
		DivStore:       stores.divs,
		CacheTTL:       *cacheTTL,
		Pingers:        stores.pingers,
		Logger:         logger,
		Metrics:        metrics,
	}

	// Redis is optional; the API serves straight from the stores without it
	if *redisAddr != "" {
		client, err := cache.Dial(ctx, *redisAddr)
		if err != nil {
			logger.Printf("Warning: Redis connection failed: %v. Proceeding without cache.", err)
		} else {
			defer client.Close()
			rc := cache.NewRedisCache(client, "market-ingest:")
			opts.Cache = rc
			opts.Pingers["redis"] = rc
			logger.Printf("Response cache enabled (ttl %v)", *cacheTTL)
		}
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           api.NewServer(opts).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Println("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}
