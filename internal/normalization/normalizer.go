package normalization

import "market-ingest/internal/domain"

// CandleNormalizer turns a provider's raw OHLC payload and raw chart payload
// into price points for one asset.
type CandleNormalizer interface {
	NormalizeCandles(asset, interval string, ohlc, chart []byte) ([]*domain.PricePoint, error)
}

// SeriesNormalizer turns a provider's raw quotes payload into a value series.
type SeriesNormalizer interface {
	NormalizeSeries(payload []byte) (domain.ValueSeries, error)
}
