package coinmarketcap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"market-ingest/internal/domain"
	"market-ingest/internal/normalization"
	"market-ingest/internal/provider"
)

// Normalizer converts /v2/cryptocurrency/quotes/historical bodies into
// USD market cap series.
type Normalizer struct{}

var _ normalization.SeriesNormalizer = Normalizer{}

type historicalResponse struct {
	Status *struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Data *struct {
		Quotes []historicalQuote `json:"quotes"`
	} `json:"data"`
}

type historicalQuote struct {
	Timestamp string `json:"timestamp"`
	Quote     map[string]struct {
		MarketCap *json.Number `json:"market_cap"`
	} `json:"quote"`
}

// NormalizeSeries returns (timestamp, market_cap) samples in payload order.
// Timestamps are RFC 3339 and converted to UTC. A quote without a USD
// market cap fails the whole payload.
func (Normalizer) NormalizeSeries(payload []byte) (domain.ValueSeries, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var resp historicalResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: coinmarketcap quotes: %v", provider.ErrUnexpectedPayload, err)
	}
	if resp.Status != nil && resp.Status.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: coinmarketcap error %d: %s",
			provider.ErrUnexpectedPayload, resp.Status.ErrorCode, resp.Status.ErrorMessage)
	}
	if resp.Data == nil {
		return domain.ValueSeries{}, nil
	}

	series := make(domain.ValueSeries, 0, len(resp.Data.Quotes))
	for i, q := range resp.Data.Quotes {
		ts, err := time.Parse(time.RFC3339Nano, q.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: quote %d: timestamp %q: %v", provider.ErrUnexpectedPayload, i, q.Timestamp, err)
		}

		usd, ok := q.Quote[Convert]
		if !ok || usd.MarketCap == nil {
			return nil, fmt.Errorf("%w: quote %d: missing %s market_cap", provider.ErrUnexpectedPayload, i, Convert)
		}
		d, err := decimal.NewFromString(usd.MarketCap.String())
		if err != nil {
			return nil, fmt.Errorf("%w: quote %d: market_cap: %v", provider.ErrUnexpectedPayload, i, err)
		}
		v, _ := d.Float64()
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: quote %d: market_cap out of range", provider.ErrUnexpectedPayload, i)
		}

		series = append(series, domain.Sample{Timestamp: ts.UTC(), Value: v})
	}

	return series, nil
}
