// Package coinmarketcap fetches historical market capitalisation from the CoinMarketCap Pro API.
package coinmarketcap

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"market-ingest/internal/domain"
	"market-ingest/internal/provider"
)

const (
	// DefaultBaseURL is the CoinMarketCap Pro API root.
	DefaultBaseURL = "https://pro-api.coinmarketcap.com"

	// ProviderName identifies CoinMarketCap in errors and metrics.
	ProviderName = "coinmarketcap"

	// Convert is the quote currency requested and read back.
	Convert = "USD"

	apiKeyHeader = "X-CMC_PRO_API_KEY"
)

// DefaultDominanceAssets is the fixed symbol set for dominance ingestion,
// keyed by symbol with CoinMarketCap ids as values.
var DefaultDominanceAssets = map[string]int{
	"BTC":  1,
	"ETH":  1027,
	"USDT": 825,
}

// Client fetches CoinMarketCap historical quotes.
type Client struct {
	http *provider.HTTPClient
}

// NewClient creates a Client authenticated with apiKey. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey string, opts ...provider.ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]provider.ClientOption{provider.WithHeader(apiKeyHeader, apiKey)}, opts...)
	return &Client{http: provider.NewHTTPClient(ProviderName, baseURL, opts...)}
}

// FetchQuotes returns the raw historical quotes body for one CoinMarketCap id
// between start and end dates. interval is "daily" or "hourly".
func (c *Client) FetchQuotes(ctx context.Context, id int, start, end domain.Date, interval string) ([]byte, error) {
	if !domain.IsValidDominanceInterval(interval) {
		return nil, fmt.Errorf("fetch quotes: invalid interval %q", interval)
	}

	query := url.Values{
		"id":         {strconv.Itoa(id)},
		"time_start": {start.String()},
		"time_end":   {end.String()},
		"interval":   {interval},
		"convert":    {Convert},
	}

	body, err := c.http.Get(ctx, "/v2/cryptocurrency/quotes/historical", query)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes for id %d: %w", id, err)
	}
	return body, nil
}
