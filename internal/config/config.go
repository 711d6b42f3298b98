// Package config reads process configuration from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when a required setting is absent.
var ErrMissing = errors.New("missing required configuration")

// Environment keys.
const (
	KeyDatabaseURL      = "DATABASE_URL"
	KeyCMCAPIKey        = "CMC_API_KEY"
	KeyClickhouseDSN    = "CLICKHOUSE_DSN"
	KeyRedisAddr        = "REDIS_ADDR"
	KeyCacheTTL         = "CACHE_TTL"
	KeyCoinGeckoBaseURL = "COINGECKO_BASE_URL"
	KeyCMCBaseURL       = "CMC_BASE_URL"
	KeyHTTPAddr         = "HTTP_ADDR"
	KeyMetricsAddr      = "METRICS_ADDR"
	KeyReadBackend      = "READ_BACKEND"
)

// Defaults for optional settings.
const (
	DefaultHTTPAddr    = ":8080"
	DefaultCacheTTL    = 30 * time.Second
	DefaultReadBackend = "postgres"
)

// Config holds every setting the binaries read from the environment.
type Config struct {
	DatabaseURL      string
	CMCAPIKey        string
	ClickhouseDSN    string // empty disables the ClickHouse mirror
	RedisAddr        string // empty disables the API response cache
	CacheTTL         time.Duration
	CoinGeckoBaseURL string // empty uses the provider default
	CMCBaseURL       string // empty uses the provider default
	HTTPAddr         string
	MetricsAddr      string // empty disables the metrics listener in cmd/ingest
	ReadBackend      string // store cmd/server reads OHLCV and dominance from: postgres or clickhouse
}

// Load seeds the environment from .env files once and returns the resulting Config.
// Required keys are checked by the Require* methods, since each binary needs a different set.
func Load() (*Config, error) {
	LoadDotenvOnce()
	return FromEnv()
}

// FromEnv builds a Config from the current environment without reading .env files.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      os.Getenv(KeyDatabaseURL),
		CMCAPIKey:        os.Getenv(KeyCMCAPIKey),
		ClickhouseDSN:    os.Getenv(KeyClickhouseDSN),
		RedisAddr:        os.Getenv(KeyRedisAddr),
		CacheTTL:         DefaultCacheTTL,
		CoinGeckoBaseURL: os.Getenv(KeyCoinGeckoBaseURL),
		CMCBaseURL:       os.Getenv(KeyCMCBaseURL),
		HTTPAddr:         getenv(KeyHTTPAddr, DefaultHTTPAddr),
		MetricsAddr:      os.Getenv(KeyMetricsAddr),
		ReadBackend:      getenv(KeyReadBackend, DefaultReadBackend),
	}

	if raw := os.Getenv(KeyCacheTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl < 0 {
			return nil, fmt.Errorf("invalid %s %q: want a non-negative duration", KeyCacheTTL, raw)
		}
		cfg.CacheTTL = ttl
	}

	return cfg, nil
}

// RequireDatabase checks that DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissing, KeyDatabaseURL)
	}
	return nil
}

// RequireCMC checks that CMC_API_KEY is set.
func (c *Config) RequireCMC() error {
	if c.CMCAPIKey == "" {
		return fmt.Errorf("%w: %s is not set; export it to run dominance ingestion", ErrMissing, KeyCMCAPIKey)
	}
	return nil
}

// RequireClickhouse checks that CLICKHOUSE_DSN is set.
func (c *Config) RequireClickhouse() error {
	if c.ClickhouseDSN == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissing, KeyClickhouseDSN)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files into the environment. The first call wins;
// later calls are no-ops. Variables already set are never overridden.
func LoadDotenvOnce() {
	dotenvOnce.Do(func() {
		wd, err := os.Getwd()
		if err != nil {
			return
		}
		loadDotenv(wd)
	})
}

// loadDotenv loads environment variables from .env files.
// Priority:
// 1) ENV_FILE if set (single path)
// 2) .env in start, then in each parent up to the directory holding go.mod or .git
// Skips when NO_DOTENV=1.
func loadDotenv(start string) {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		_ = godotenv.Load(envFile)
		return
	}

	dir := start
	for i := 0; i < 8; i++ {
		// Missing files are expected at most levels
		_ = godotenv.Load(filepath.Join(dir, ".env"))
		if exists(filepath.Join(dir, "go.mod")) || exists(filepath.Join(dir, ".git")) {
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
