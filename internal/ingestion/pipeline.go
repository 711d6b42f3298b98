// Package ingestion runs fetch, normalize, align and write as one synchronous pass.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"market-ingest/internal/alignment"
	"market-ingest/internal/domain"
	"market-ingest/internal/normalization"
	"market-ingest/internal/observability"
	"market-ingest/internal/storage"
)

// Kind names a pipeline.
type Kind string

const (
	KindOHLCV     Kind = "ohlcv"
	KindDominance Kind = "dominance"
)

// Stage names a pipeline step. A Result's Stage is the last stage reached.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageAlign     Stage = "align"
	StageWrite     Stage = "write"
	StageDone      Stage = "done"
)

// ErrInvalidRequest is returned for requests rejected before any fetch.
var ErrInvalidRequest = errors.New("invalid ingestion request")

// OHLCVRequest selects one asset's daily candles.
type OHLCVRequest struct {
	AssetID  string
	Interval string // Default: "1d"
	Days     string // Default: "365"
}

// DominanceRequest selects the assets and the inclusive date range for dominance.
type DominanceRequest struct {
	Assets   map[string]int // symbol -> provider id
	Interval string         // "daily" or "hourly"
	Start    domain.Date
	End      domain.Date // inclusive
}

// Result describes one pipeline run.
type Result struct {
	RunID    string
	Kind     Kind
	Stage    Stage
	Written  int
	Duration time.Duration
}

// Pipeline runs ingestion passes against injected sources and stores.
type Pipeline struct {
	candles        CandleSource
	candleNorm     normalization.CandleNormalizer
	marketCaps     MarketCapSource
	seriesNorm     normalization.SeriesNormalizer
	priceStore     storage.PricePointStore
	dominanceStore storage.DominancePointStore
	logger         *log.Logger
	metrics        *observability.Metrics
	now            func() time.Time
}

// Options contains configuration for creating a Pipeline.
// Sources and stores a run kind does not need may be nil.
type Options struct {
	CandleSource     CandleSource
	CandleNormalizer normalization.CandleNormalizer // decodes CandleSource payloads
	MarketCapSource  MarketCapSource
	SeriesNormalizer normalization.SeriesNormalizer // decodes MarketCapSource payloads
	PriceStore       storage.PricePointStore
	DominanceStore   storage.DominancePointStore
	Logger           *log.Logger
	Metrics          *observability.Metrics // nil disables metrics
}

// NewPipeline creates a new Pipeline.
func NewPipeline(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Pipeline{
		candles:        opts.CandleSource,
		candleNorm:     opts.CandleNormalizer,
		marketCaps:     opts.MarketCapSource,
		seriesNorm:     opts.SeriesNormalizer,
		priceStore:     opts.PriceStore,
		dominanceStore: opts.DominanceStore,
		logger:         logger,
		metrics:        opts.Metrics,
		now:            time.Now,
	}
}

// run tracks stage progress for one invocation.
type run struct {
	p      *Pipeline
	result *Result
	start  time.Time
}

func (p *Pipeline) newRun(kind Kind) *run {
	return &run{
		p:      p,
		result: &Result{RunID: uuid.NewString(), Kind: kind, Stage: StageFetch},
		start:  p.now(),
	}
}

// stage runs fn as the named stage. Errors are wrapped with the stage name.
func (r *run) stage(s Stage, fn func() error) error {
	r.result.Stage = s
	began := r.p.now()
	err := fn()
	r.p.metrics.RecordStage(string(r.result.Kind), string(s), r.p.now().Sub(began))
	if err != nil {
		return fmt.Errorf("stage %s: %w", s, err)
	}
	return nil
}

func (r *run) finish(err error) (*Result, error) {
	r.result.Duration = r.p.now().Sub(r.start)
	r.p.metrics.RecordIngestionRun(string(r.result.Kind), r.result.Written, r.result.Duration, err)

	if err != nil {
		r.p.logger.Printf("run %s (%s) failed at %s: %v", r.result.RunID, r.result.Kind, r.result.Stage, err)
		return r.result, err
	}

	r.result.Stage = StageDone
	r.p.logger.Printf("run %s (%s) done: %d records in %v", r.result.RunID, r.result.Kind, r.result.Written, r.result.Duration)
	return r.result, nil
}

// IngestOHLCV fetches candles and volumes for one asset, normalizes them and
// upserts the price points. Nothing is written if fetch or normalize fails.
func (p *Pipeline) IngestOHLCV(ctx context.Context, req OHLCVRequest) (*Result, error) {
	if req.Interval == "" {
		req.Interval = domain.PriceInterval1Day
	}
	if req.Days == "" {
		req.Days = "365"
	}

	r := p.newRun(KindOHLCV)
	if req.AssetID == "" {
		return r.finish(fmt.Errorf("%w: empty asset id", ErrInvalidRequest))
	}
	if p.candles == nil || p.candleNorm == nil || p.priceStore == nil {
		return r.finish(fmt.Errorf("%w: ohlcv pipeline needs a candle source, a candle normalizer and a price store", ErrInvalidRequest))
	}

	p.logger.Printf("run %s: ohlcv asset=%s interval=%s days=%s", r.result.RunID, req.AssetID, req.Interval, req.Days)

	var (
		ohlc, chart []byte
		points      []*domain.PricePoint
	)

	err := r.stage(StageFetch, func() error {
		var err error
		if ohlc, err = p.candles.FetchOHLC(ctx, req.AssetID, req.Days); err != nil {
			return err
		}
		chart, err = p.candles.FetchMarketChart(ctx, req.AssetID, req.Days)
		return err
	})
	if err != nil {
		return r.finish(err)
	}

	err = r.stage(StageNormalize, func() error {
		var err error
		points, err = p.candleNorm.NormalizeCandles(req.AssetID, req.Interval, ohlc, chart)
		return err
	})
	if err != nil {
		return r.finish(err)
	}

	err = r.stage(StageWrite, func() error {
		n, err := p.priceStore.UpsertBulk(ctx, points)
		if err != nil {
			return err
		}
		r.result.Written = n
		return nil
	})
	return r.finish(err)
}

// IngestDominance fetches market cap quotes for every requested asset,
// normalizes them into series, aligns them into percentage shares and upserts
// the dominance points.
// The end date is inclusive; the fetch window runs to the day after it.
func (p *Pipeline) IngestDominance(ctx context.Context, req DominanceRequest) (*Result, error) {
	r := p.newRun(KindDominance)

	if err := validateDominanceRequest(req); err != nil {
		return r.finish(err)
	}
	if p.marketCaps == nil || p.seriesNorm == nil || p.dominanceStore == nil {
		return r.finish(fmt.Errorf("%w: dominance pipeline needs a market cap source, a series normalizer and a dominance store", ErrInvalidRequest))
	}

	symbols := SortedSymbols(req.Assets)
	fetchEnd := req.End.AddDays(1)
	p.logger.Printf("run %s: dominance assets=%v interval=%s window=[%s, %s)", r.result.RunID, symbols, req.Interval, req.Start, fetchEnd)

	var (
		bodies = make(map[string][]byte, len(req.Assets))
		caps   = make(map[string]domain.ValueSeries, len(req.Assets))
		shares map[string]domain.ValueSeries
		points []*domain.DominancePoint
	)

	err := r.stage(StageFetch, func() error {
		for _, sym := range symbols {
			body, err := p.marketCaps.FetchQuotes(ctx, req.Assets[sym], req.Start, fetchEnd, req.Interval)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			bodies[sym] = body
		}
		return nil
	})
	if err != nil {
		return r.finish(err)
	}

	err = r.stage(StageNormalize, func() error {
		for _, sym := range symbols {
			series, err := p.seriesNorm.NormalizeSeries(bodies[sym])
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			caps[sym] = series
		}
		return nil
	})
	if err != nil {
		return r.finish(err)
	}

	err = r.stage(StageAlign, func() error {
		var err error
		shares, err = alignment.ComputeShareSeries(caps)
		if err != nil {
			return err
		}
		points = alignment.ToDominancePoints(req.Interval, shares)
		return nil
	})
	if err != nil {
		return r.finish(err)
	}

	if len(points) == 0 {
		p.logger.Printf("run %s: no common timestamps across %v, nothing to write", r.result.RunID, symbols)
	}

	err = r.stage(StageWrite, func() error {
		n, err := p.dominanceStore.UpsertBulk(ctx, points)
		if err != nil {
			return err
		}
		r.result.Written = n
		return nil
	})
	return r.finish(err)
}

func validateDominanceRequest(req DominanceRequest) error {
	if len(req.Assets) == 0 {
		return fmt.Errorf("%w: no assets", ErrInvalidRequest)
	}
	if !domain.IsValidDominanceInterval(req.Interval) {
		return fmt.Errorf("%w: interval %q must be daily or hourly", ErrInvalidRequest, req.Interval)
	}
	if req.End.Time().Before(req.Start.Time()) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRequest, req.End, req.Start)
	}
	return nil
}

// SortedSymbols returns the asset symbols in ascending order.
func SortedSymbols(assets map[string]int) []string {
	out := make([]string, 0, len(assets))
	for sym := range assets {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
