// Package main provides the ingest CLI: one synchronous pass that fetches
// provider data, normalizes it and upserts it into storage.
//
// Usage:
//
//	ingest --mode ohlcv --asset-id bitcoin --days 365
//	ingest --mode dominance --interval daily --start 2024-01-01 --end 2024-01-31
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-ingest/internal/config"
	"market-ingest/internal/domain"
	"market-ingest/internal/ingestion"
	"market-ingest/internal/observability"
	"market-ingest/internal/provider"
	"market-ingest/internal/provider/coingecko"
	"market-ingest/internal/provider/coinmarketcap"
)

// options are the parsed command line arguments.
type options struct {
	mode      string
	assetID   string
	days      string
	interval  string
	start     domain.Date
	end       domain.Date
	useMemory bool
	timeout   time.Duration // per provider request
	retries   int
}

var errUsage = errors.New("usage")

// parseFlags parses and validates args for the selected mode.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	mode := fs.String("mode", "ohlcv", "Ingestion mode: ohlcv or dominance")
	assetID := fs.String("asset-id", "", "CoinGecko asset id, e.g. bitcoin, ethereum (ohlcv)")
	days := fs.String("days", "365", "Days back: 1|7|14|30|90|180|365|max (ohlcv)")
	interval := fs.String("interval", domain.DominanceIntervalDaily, "Dominance interval: daily or hourly")
	start := fs.String("start", "", "Start date YYYY-MM-DD (dominance)")
	end := fs.String("end", "", "End date YYYY-MM-DD, inclusive (dominance)")
	useMemory := fs.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	timeout := fs.Duration("timeout", provider.DefaultTimeout, "Timeout per provider request")
	retries := fs.Int("retries", provider.DefaultMaxRetries, "Retries per provider request on 429, 5xx and transport errors")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	opts := &options{
		mode:      *mode,
		assetID:   *assetID,
		days:      *days,
		interval:  *interval,
		useMemory: *useMemory,
		timeout:   *timeout,
		retries:   *retries,
	}

	if opts.timeout <= 0 {
		return nil, fmt.Errorf("%w: --timeout must be positive", errUsage)
	}
	if opts.retries < 0 {
		return nil, fmt.Errorf("%w: --retries must not be negative", errUsage)
	}

	switch opts.mode {
	case string(ingestion.KindOHLCV):
		if opts.assetID == "" {
			return nil, fmt.Errorf("%w: --asset-id is required for ohlcv", errUsage)
		}
		if !coingecko.IsValidDays(opts.days) {
			return nil, fmt.Errorf("%w: --days must be one of %v", errUsage, coingecko.ValidDays)
		}
	case string(ingestion.KindDominance):
		if !domain.IsValidDominanceInterval(opts.interval) {
			return nil, fmt.Errorf("%w: --interval must be daily or hourly", errUsage)
		}
		if *start == "" || *end == "" {
			return nil, fmt.Errorf("%w: --start and --end are required for dominance", errUsage)
		}
		var err error
		if opts.start, err = domain.ParseDate(*start); err != nil {
			return nil, fmt.Errorf("%w: --start: %v", errUsage, err)
		}
		if opts.end, err = domain.ParseDate(*end); err != nil {
			return nil, fmt.Errorf("%w: --end: %v", errUsage, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", errUsage, opts.mode)
	}

	return opts, nil
}

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger, os.Stdout); err != nil {
		logger.Fatalf("Ingestion failed: %v", err)
	}
}

// run wires stores and providers for one invocation and executes it.
func run(ctx context.Context, cfg *config.Config, opts *options, logger *log.Logger, stdout io.Writer) error {
	if opts.mode == string(ingestion.KindDominance) {
		if err := cfg.RequireCMC(); err != nil {
			return err
		}
	}

	metrics := observability.DefaultMetrics

	// Start metrics server if enabled
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Printf("Starting metrics server on %s", cfg.MetricsAddr)
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	stores, cleanup, err := createStores(ctx, cfg, opts.useMemory, metrics, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	clientOpts := []provider.ClientOption{
		provider.WithObserver(metrics.RecordFetch),
		provider.WithMaxRetries(opts.retries),
	}
	if opts.timeout > 0 {
		clientOpts = append(clientOpts, provider.WithTimeout(opts.timeout))
	}

	pipeline := ingestion.NewPipeline(ingestion.Options{
		CandleSource:     coingecko.NewClient(cfg.CoinGeckoBaseURL, clientOpts...),
		CandleNormalizer: coingecko.Normalizer{},
		MarketCapSource:  coinmarketcap.NewClient(cfg.CMCBaseURL, cfg.CMCAPIKey, clientOpts...),
		SeriesNormalizer: coinmarketcap.Normalizer{},
		PriceStore:       stores.prices,
		DominanceStore:   stores.dominance,
		Logger:           logger,
		Metrics:          metrics,
	})

	switch opts.mode {
	case string(ingestion.KindOHLCV):
		res, err := pipeline.IngestOHLCV(ctx, ingestion.OHLCVRequest{
			AssetID:  opts.assetID,
			Interval: domain.PriceInterval1Day,
			Days:     opts.days,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Upserted %d OHLCV rows for %s interval=%s\n", res.Written, opts.assetID, domain.PriceInterval1Day)

	case string(ingestion.KindDominance):
		assets := coinmarketcap.DefaultDominanceAssets
		res, err := pipeline.IngestDominance(ctx, ingestion.DominanceRequest{
			Assets:   assets,
			Interval: opts.interval,
			Start:    opts.start,
			End:      opts.end,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Upserted %d dominance points for %v interval=%s\n", res.Written, ingestion.SortedSymbols(assets), opts.interval)
	}

	return nil
}
