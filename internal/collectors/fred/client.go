// Package fred provides a client for the FRED (Federal Reserve Economic
// Data) API, the macro-indicator provider.
package fred

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/models"
)

const (
	// Source is the rate-limiter source name for this provider.
	Source = "fred"

	// DefaultBaseURL is the base URL for the FRED API.
	DefaultBaseURL = "https://api.stlouisfed.org/fred"
)

// Well-known series ids polled by the scheduler.
const (
	SeriesFedFunds     = "DFF"      // effective federal funds rate
	SeriesCPI          = "CPIAUCSL" // consumer price index
	SeriesUnemployment = "UNRATE"   // unemployment rate
	SeriesTenYear      = "DGS10"    // 10-year treasury yield
)

// Client is a FRED API client.
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

// NewClient creates a new FRED API client.
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

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// GetLatestObservation retrieves the most recent observation of a series.
func (c *Client) GetLatestObservation(ctx context.Context, seriesID string) (*models.MacroPoint, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("series_id", seriesID)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", "1")

	var result observationsResponse
	if err := c.http.GetJSON(ctx, Source, c.baseURL+"/series/observations", params, &result); err != nil {
		return nil, err
	}
	if len(result.Observations) == 0 {
		return nil, fmt.Errorf("fred returned no observations for %s", seriesID)
	}

	obs := result.Observations[0]
	point := &models.MacroPoint{SeriesID: seriesID}
	if t, err := time.Parse("2006-01-02", obs.Date); err == nil {
		point.Date = t
	}
	v, err := strconv.ParseFloat(obs.Value, 64)
	if err != nil {
		// FRED reports missing observations as ".".
		return nil, fmt.Errorf("fred observation for %s has no numeric value", seriesID)
	}
	point.Value = v

	return point, nil
}

// HealthCheck probes the API with a fed-funds observation request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetLatestObservation(probeCtx, SeriesFedFunds); err != nil {
		return fmt.Errorf("fred health check failed: %w", err)
	}
	return nil
}
