package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"market-ingest/internal/domain"
	"market-ingest/internal/storage"
)

var errBadLimit = errors.New("limit must be a positive integer")

type ohlcRow struct {
	Asset    string    `json:"asset"`
	Interval string    `json:"interval"`
	Ts       time.Time `json:"ts"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   *float64  `json:"volume"`
}

type ohlcResponse struct {
	Asset    string    `json:"asset"`
	Interval string    `json:"interval"`
	Count    int       `json:"count"`
	Rows     []ohlcRow `json:"rows"`
}

type dominanceRow struct {
	Asset    string    `json:"asset"`
	Interval string    `json:"interval"`
	Ts       time.Time `json:"ts"`
	Close    float64   `json:"close"`
}

type dominanceResponse struct {
	Interval string                    `json:"interval"`
	Assets   []string                  `json:"assets"`
	Series   map[string][]dominanceRow `json:"series"`
}

// getOHLC handles GET /api/crypto/ohlc?asset=&interval=&limit=.
// Rows are the latest limit candles in ascending time order.
func (s *Server) getOHLC(c *gin.Context) {
	asset := c.DefaultQuery("asset", DefaultAsset)
	interval := c.DefaultQuery("interval", DefaultInterval)
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := fmt.Sprintf("ohlc:%s:%s:%d", asset, interval, limit)
	if s.serveCached(c, key) {
		return
	}

	points, err := s.prices.GetLatest(c.Request.Context(), asset, interval, limit)
	if err != nil {
		s.logger.Printf("get ohlc %s/%s: %v", asset, interval, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch ohlc"})
		return
	}

	rows := make([]ohlcRow, len(points))
	for i, p := range points {
		rows[i] = ohlcRow{
			Asset: p.Asset, Interval: p.Interval, Ts: p.Timestamp,
			Open: p.Open, High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume,
		}
	}

	s.respond(c, key, ohlcResponse{Asset: asset, Interval: interval, Count: len(rows), Rows: rows})
}

// getDominance handles GET /api/crypto/dominance?assets=&interval=&limit=.
func (s *Server) getDominance(c *gin.Context) {
	assets := splitAssets(c.DefaultQuery("assets", DefaultDominanceAssets))
	interval := c.DefaultQuery("interval", DefaultDominanceInterval)
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key := fmt.Sprintf("dominance:%s:%s:%d", strings.Join(assets, ","), interval, limit)
	if s.serveCached(c, key) {
		return
	}

	series := make(map[string][]dominanceRow, len(assets))
	for _, asset := range assets {
		points, err := s.dominance.GetLatest(c.Request.Context(), asset, interval, limit)
		if err != nil {
			s.logger.Printf("get dominance %s/%s: %v", asset, interval, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch dominance"})
			return
		}
		series[asset] = toDominanceRows(points)
	}

	s.respond(c, key, dominanceResponse{Interval: interval, Assets: assets, Series: series})
}

func toDominanceRows(points []*domain.DominancePoint) []dominanceRow {
	rows := make([]dominanceRow, len(points))
	for i, p := range points {
		rows[i] = dominanceRow{Asset: p.Asset, Interval: p.Interval, Ts: p.Timestamp, Close: p.Close}
	}
	return rows
}

type divergenceRow struct {
	Asset          string    `json:"asset"`
	Interval       string    `json:"interval"`
	Ts             time.Time `json:"ts"`
	Indicator      string    `json:"indicator"`
	Kind           string    `json:"kind"`
	PriceSwing     *float64  `json:"price_swing"`
	IndicatorSwing *float64  `json:"indicator_swing"`
}

type divergenceResponse struct {
	Count int             `json:"count"`
	Rows  []divergenceRow `json:"rows"`
}

// getDivergences handles GET /api/crypto/divergences?asset=&interval=&indicator=&kind=&limit=.
// Every filter is optional. Rows are the latest limit matches in ascending time order.
func (s *Server) getDivergences(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := storage.DivergenceFilter{
		Asset:     c.Query("asset"),
		Interval:  c.Query("interval"),
		Indicator: c.Query("indicator"),
		Kind:      c.Query("kind"),
		Limit:     limit,
	}

	key := fmt.Sprintf("divergences:%s:%s:%s:%s:%d", filter.Asset, filter.Interval, filter.Indicator, filter.Kind, limit)
	if s.serveCached(c, key) {
		return
	}

	divs, err := s.divs.GetLatest(c.Request.Context(), filter)
	if err != nil {
		s.logger.Printf("get divergences %+v: %v", filter, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch divergences"})
		return
	}

	rows := make([]divergenceRow, len(divs))
	for i, d := range divs {
		rows[i] = divergenceRow{
			Asset: d.Asset, Interval: d.Interval, Ts: d.Timestamp, Indicator: d.Indicator, Kind: d.Kind,
			PriceSwing: d.PriceSwing, IndicatorSwing: d.IndicatorSwing,
		}
	}

	s.respond(c, key, divergenceResponse{Count: len(rows), Rows: rows})
}

// serveCached writes a cached body and reports whether it did.
// Cache errors are logged and treated as misses.
func (s *Server) serveCached(c *gin.Context, key string) bool {
	if s.cache == nil {
		return false
	}

	body, ok, err := s.cache.Get(c.Request.Context(), key)
	switch {
	case err != nil:
		s.metrics.RecordCache("error")
		s.logger.Printf("cache get %s: %v", key, err)
		return false
	case !ok:
		s.metrics.RecordCache("miss")
		return false
	}

	s.metrics.RecordCache("hit")
	c.Header("X-Cache", "HIT")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	return true
}

// respond writes resp as JSON and stores it in the cache when one is configured.
func (s *Server) respond(c *gin.Context, key string, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode response"})
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(c.Request.Context(), key, body, s.cacheTTL); err != nil {
			s.logger.Printf("cache set %s: %v", key, err)
		}
		c.Header("X-Cache", "MISS")
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// parseLimit reads the limit parameter: default 200, capped at 2000.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return DefaultLimit, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	if n > MaxLimit {
		n = MaxLimit
	}
	return n, nil
}

// splitAssets splits a comma separated list, dropping blanks.
func splitAssets(raw string) []string {
	out := []string{}
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
