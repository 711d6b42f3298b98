package ingestion

import (
	"context"

	"market-ingest/internal/domain"
)

// CandleSource provides raw daily candle and chart payloads for one asset.
// Payloads are decoded by the CandleNormalizer paired with the source.
type CandleSource interface {
	// FetchOHLC returns the raw OHLC body for the last days.
	FetchOHLC(ctx context.Context, assetID, days string) ([]byte, error)
	// FetchMarketChart returns the raw chart body carrying total volumes for the last days.
	FetchMarketChart(ctx context.Context, assetID, days string) ([]byte, error)
}

// MarketCapSource provides raw market capitalisation quote payloads.
// Payloads are decoded by the SeriesNormalizer paired with the source.
type MarketCapSource interface {
	// FetchQuotes returns the raw quotes body between start and end dates for a provider asset id.
	FetchQuotes(ctx context.Context, id int, start, end domain.Date, interval string) ([]byte, error)
}
