// Package alphavantage provides a client for the Alpha Vantage technical
// indicator endpoints: three simple moving averages, one oscillator, and two
// exponential averages. The MACD value is derived locally by the aggregator,
// not fetched.
package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/httpclient"
)

const (
	// Source is the rate-limiter source name for this provider.
	Source = "alphavantage"

	// DefaultBaseURL is the base URL for the Alpha Vantage API.
	DefaultBaseURL = "https://www.alphavantage.co"
)

// Client is an Alpha Vantage API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  arbor.ILogger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// NewClient creates a new Alpha Vantage API client.
func NewClient(apiKey string, http *httpclient.Client, logger arbor.ILogger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    http,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// latestValue fetches one indicator series and returns its most recent
// point. Alpha Vantage's payload is a map of date -> {"<NAME>": "<value>"}.
func (c *Client) latestValue(ctx context.Context, function, symbol, valueKey string, period int) (float64, error) {
	params := url.Values{}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("series_type", "close")
	params.Set("apikey", c.apiKey)
	if period > 0 {
		params.Set("time_period", strconv.Itoa(period))
	}

	var raw map[string]any
	if err := c.http.GetJSON(ctx, Source, c.baseURL+"/query", params, &raw); err != nil {
		return 0, err
	}

	seriesKey := "Technical Analysis: " + valueKey
	series, ok := raw[seriesKey].(map[string]any)
	if !ok || len(series) == 0 {
		return 0, fmt.Errorf("alphavantage returned no %s series for %s", valueKey, symbol)
	}

	// Entries are keyed by date; take the most recent.
	dates := make([]string, 0, len(series))
	for d := range series {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	point, ok := series[dates[0]].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("alphavantage malformed %s point for %s", valueKey, symbol)
	}
	str, ok := point[valueKey].(string)
	if !ok {
		return 0, fmt.Errorf("alphavantage missing %s value for %s", valueKey, symbol)
	}

	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("alphavantage unparsable %s value %q: %w", valueKey, str, err)
	}
	return v, nil
}

// GetSMA retrieves the latest simple moving average for the given period.
func (c *Client) GetSMA(ctx context.Context, symbol string, period int) (float64, error) {
	return c.latestValue(ctx, "SMA", symbol, "SMA", period)
}

// GetEMA retrieves the latest exponential moving average for the given period.
func (c *Client) GetEMA(ctx context.Context, symbol string, period int) (float64, error) {
	return c.latestValue(ctx, "EMA", symbol, "EMA", period)
}

// GetRSI retrieves the latest relative strength index for the given period.
func (c *Client) GetRSI(ctx context.Context, symbol string, period int) (float64, error) {
	return c.latestValue(ctx, "RSI", symbol, "RSI", period)
}

// HealthCheck probes the API with a minimal SMA request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetSMA(probeCtx, "SPY", 20); err != nil {
		return fmt.Errorf("alphavantage health check failed: %w", err)
	}
	return nil
}
