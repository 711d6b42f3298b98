// Package coingecko fetches daily OHLC candles and total volumes from the CoinGecko API.
package coingecko

import (
	"context"
	"fmt"
	"net/url"

	"market-ingest/internal/provider"
)

// DefaultBaseURL is the public CoinGecko v3 API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// ProviderName identifies CoinGecko in errors and metrics.
const ProviderName = "coingecko"

// ValidDays lists the day ranges accepted by the ohlc endpoint.
var ValidDays = []string{"1", "7", "14", "30", "90", "180", "365", "max"}

// IsValidDays reports whether days is one of ValidDays.
func IsValidDays(days string) bool {
	for _, d := range ValidDays {
		if d == days {
			return true
		}
	}
	return false
}

// Client fetches raw CoinGecko payloads.
type Client struct {
	http *provider.HTTPClient
}

// NewClient creates a Client rooted at baseURL. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...provider.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: provider.NewHTTPClient(ProviderName, baseURL, opts...)}
}

// FetchOHLC returns the raw /coins/{id}/ohlc body for assetID over the last days.
func (c *Client) FetchOHLC(ctx context.Context, assetID, days string) ([]byte, error) {
	body, err := c.http.Get(ctx, "/coins/"+url.PathEscape(assetID)+"/ohlc", usdQuery(days))
	if err != nil {
		return nil, fmt.Errorf("fetch ohlc for %s: %w", assetID, err)
	}
	return body, nil
}

// FetchMarketChart returns the raw /coins/{id}/market_chart body, which carries total_volumes.
func (c *Client) FetchMarketChart(ctx context.Context, assetID, days string) ([]byte, error) {
	body, err := c.http.Get(ctx, "/coins/"+url.PathEscape(assetID)+"/market_chart", usdQuery(days))
	if err != nil {
		return nil, fmt.Errorf("fetch market chart for %s: %w", assetID, err)
	}
	return body, nil
}

func usdQuery(days string) url.Values {
	return url.Values{
		"vs_currency": {"usd"},
		"days":        {days},
	}
}
