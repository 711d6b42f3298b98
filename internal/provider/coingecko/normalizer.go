package coingecko

import (
	"encoding/json"
	"fmt"

	"market-ingest/internal/domain"
	"market-ingest/internal/normalization"
	"market-ingest/internal/provider"
)

// Normalizer converts CoinGecko /ohlc and /market_chart payloads into price points.
type Normalizer struct{}

var _ normalization.CandleNormalizer = Normalizer{}

// NormalizeCandles joins OHLC rows with daily total volumes from the chart payload.
func (Normalizer) NormalizeCandles(asset, interval string, ohlc, chart []byte) ([]*domain.PricePoint, error) {
	rows, err := ParseOHLC(ohlc)
	if err != nil {
		return nil, err
	}
	totals, err := ParseTotalVolumes(chart)
	if err != nil {
		return nil, err
	}
	volumes, err := normalization.ExtractDailyVolumes(totals)
	if err != nil {
		return nil, err
	}
	return normalization.NormalizeCandles(asset, interval, rows, volumes)
}

// ParseOHLC decodes the /coins/{id}/ohlc body, a JSON array of
// [t_ms, open, high, low, close] rows. Row contents are checked by the normalizer.
func ParseOHLC(body []byte) ([]normalization.RawCandle, error) {
	rows, err := normalization.DecodeRows(body)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko ohlc: %v", provider.ErrUnexpectedPayload, err)
	}

	out := make([]normalization.RawCandle, len(rows))
	for i, r := range rows {
		out[i] = normalization.RawCandle(r)
	}
	return out, nil
}

// marketChart is the subset of /coins/{id}/market_chart used here.
type marketChart struct {
	TotalVolumes json.RawMessage `json:"total_volumes"`
}

// ParseTotalVolumes extracts total_volumes from the /coins/{id}/market_chart body.
// A missing total_volumes key yields an empty series.
func ParseTotalVolumes(body []byte) ([]normalization.RawSample, error) {
	var chart marketChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("%w: coingecko market_chart: %v", provider.ErrUnexpectedPayload, err)
	}
	if len(chart.TotalVolumes) == 0 || string(chart.TotalVolumes) == "null" {
		return nil, nil
	}

	rows, err := normalization.DecodeRows(chart.TotalVolumes)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko total_volumes: %v", provider.ErrUnexpectedPayload, err)
	}

	out := make([]normalization.RawSample, len(rows))
	for i, r := range rows {
		out[i] = normalization.RawSample(r)
	}
	return out, nil
}
