// Package api serves stored OHLCV, dominance and divergence series over HTTP.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"market-ingest/internal/cache"
	"market-ingest/internal/observability"
	"market-ingest/internal/storage"
)

// Query defaults and limits.
const (
	DefaultLimit             = 200
	MaxLimit                 = 2000
	DefaultAsset             = "bitcoin"
	DefaultInterval          = "1d"
	DefaultDominanceAssets   = "BTC,ETH,USDT"
	DefaultDominanceInterval = "daily"
)

// Pinger reports dependency health for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the read-side dependencies.
type Server struct {
	prices    storage.PricePointStore
	dominance storage.DominancePointStore
	divs      storage.DivergenceStore
	cache     cache.Cache
	cacheTTL  time.Duration
	pingers   map[string]Pinger
	logger    *log.Logger
	metrics   *observability.Metrics
	startedAt time.Time
}

// Options contains configuration for creating a Server.
type Options struct {
	PriceStore     storage.PricePointStore
	DominanceStore storage.DominancePointStore
	DivStore       storage.DivergenceStore // nil leaves /api/crypto/divergences unregistered
	Cache          cache.Cache // nil disables response caching
	CacheTTL       time.Duration
	Pingers        map[string]Pinger // checked by /health, keyed by dependency name
	Logger         *log.Logger
	Metrics        *observability.Metrics
}

// NewServer creates a new Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}

	return &Server{
		prices:    opts.PriceStore,
		dominance: opts.DominanceStore,
		divs:      opts.DivStore,
		cache:     opts.Cache,
		cacheTTL:  ttl,
		pingers:   opts.Pingers,
		logger:    logger,
		metrics:   opts.Metrics,
		startedAt: time.Now(),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	crypto := r.Group("/api/crypto")
	crypto.GET("/ohlc", s.getOHLC)
	crypto.GET("/dominance", s.getDominance)
	if s.divs != nil {
		crypto.GET("/divergences", s.getDivergences)
	}

	return r
}

// observe records request counts and latency per route.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordAPIRequest(route, c.Writer.Status(), time.Since(start))
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Checks map[string]string `json:"checks,omitempty"`
}

// health returns 200 when every dependency answers, 503 otherwise.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Uptime: time.Since(s.startedAt).Round(time.Second).String()}
	code := http.StatusOK

	if len(s.pingers) > 0 {
		resp.Checks = make(map[string]string, len(s.pingers))
		for name, p := range s.pingers {
			if err := p.Ping(ctx); err != nil {
				resp.Checks[name] = "down: " + err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
	}

	c.JSON(code, resp)
}
