// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	IngestionRunsTotal *prometheus.CounterVec
	IngestionDuration  *prometheus.HistogramVec
	RowsWritten        *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec

	// Provider metrics
	FetchLatency *prometheus.HistogramVec
	FetchErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// API metrics
	APIRequests    *prometheus.CounterVec
	APIRequestTime *prometheus.HistogramVec
	CacheResults   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "market_ingest"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		IngestionRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by kind and status",
		}, []string{"kind", "status"}),
		IngestionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "rows_written_total",
			Help:      "Total number of records upserted by kind",
		}, []string{"kind"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each ingestion stage in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "stage"}),

		// Provider metrics
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_latency_seconds",
			Help:      "Provider request latency in seconds, retries included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed provider requests",
		}, []string{"provider"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// API metrics
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status code",
		}, []string{"route", "code"}),
		APIRequestTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CacheResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "cache_results_total",
			Help:      "Response cache lookups by result (hit, miss, error)",
		}, []string{"result"}),

		// Health metrics
		LastSuccessfulIngestion: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion by kind",
		}, []string{"kind"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordIngestionRun records a finished ingestion run and its row count.
func (m *Metrics) RecordIngestionRun(kind string, rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.IngestionRunsTotal.WithLabelValues(kind, status).Inc()
	m.IngestionDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err == nil {
		m.RowsWritten.WithLabelValues(kind).Add(float64(rows))
		m.LastSuccessfulIngestion.WithLabelValues(kind).SetToCurrentTime()
	}
}

// RecordStage records the duration of one ingestion stage.
func (m *Metrics) RecordStage(kind, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(kind, stage).Observe(d.Seconds())
}

// RecordFetch records one provider request. Its signature matches provider.Observer.
func (m *Metrics) RecordFetch(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchLatency.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(provider).Inc()
	}
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordAPIRequest records a served API request.
func (m *Metrics) RecordAPIRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.APIRequestTime.WithLabelValues(route).Observe(d.Seconds())
}

// RecordCache records a response cache lookup result.
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.CacheResults.WithLabelValues(result).Inc()
}
