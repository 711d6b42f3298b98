// Package provider holds the HTTP plumbing shared by market data provider clients.
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Observer receives the latency and outcome of every completed request.
type Observer func(provider string, d time.Duration, err error)

// HTTPClient performs GET requests against one provider base URL
// with retries and exponential backoff.
type HTTPClient struct {
	name        string
	baseURL     string
	client      *http.Client
	header      http.Header
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	observe     Observer
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *HTTPClient) {
		c.header.Set(key, value)
	}
}

// WithObserver registers a callback invoked after each request.
func WithObserver(fn Observer) ClientOption {
	return func(c *HTTPClient) {
		c.observe = fn
	}
}

// NewHTTPClient creates a client for the named provider rooted at baseURL.
func NewHTTPClient(name, baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		header:      make(http.Header),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path with the query parameters and returns the response body.
// 429, 5xx and transport errors are retried; other non-2xx statuses fail fast.
// Every failure wraps ErrFetchFailed.
func (c *HTTPClient) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, path, query)
	if c.observe != nil {
		c.observe(c.name, time.Since(start), err)
	}
	return body, err
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %s %s: %v", ErrFetchFailed, c.name, path, ctx.Err())
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: create request: %v", ErrFetchFailed, c.name, err)
		}
		req.Header.Set("Accept", "application/json")
		for k, vs := range c.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrFetchFailed, c.name, path, ctx.Err())
			}
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Rate limiting and server errors are transient
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrFetchFailed, c.name, path, resp.StatusCode, truncate(respBody))
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("%w: %s %s: max retries exceeded: %v", ErrFetchFailed, c.name, path, lastErr)
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
