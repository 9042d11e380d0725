// Package polymarket provides a client for the Polymarket Gamma API,
// the prediction-market signal provider.
package polymarket

import (
	"context"
	"encoding/json"
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
	Source = "polymarket"

	// DefaultBaseURL is the base URL for the Polymarket Gamma API.
	DefaultBaseURL = "https://gamma-api.polymarket.com"
)

// Client is a Polymarket API client. The API requires no credentials.
type Client struct {
	baseURL string
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

// NewClient creates a new Polymarket API client.
func NewClient(http *httpclient.Client, logger arbor.ILogger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    http,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type marketResponse struct {
	Slug          string `json:"slug"`
	Question      string `json:"question"`
	Category      string `json:"category"`
	Volume        string `json:"volume"`
	OutcomePrices string `json:"outcomePrices"` // JSON-encoded array of price strings
	Tags          []struct {
		Label string `json:"label"`
	} `json:"tags"`
}

// GetActiveMarkets retrieves active markets sorted by volume, highest first.
func (c *Client) GetActiveMarkets(ctx context.Context, limit int) ([]models.PredictionMarket, error) {
	if limit <= 0 {
		limit = 50
	}

	params := url.Values{}
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("order", "volume")
	params.Set("ascending", "false")
	params.Set("limit", strconv.Itoa(limit))

	var result []marketResponse
	if err := c.http.GetJSON(ctx, Source, c.baseURL+"/markets", params, &result); err != nil {
		return nil, err
	}

	markets := make([]models.PredictionMarket, 0, len(result))
	for _, m := range result {
		market := models.PredictionMarket{
			Slug:     m.Slug,
			Question: m.Question,
			Category: m.Category,
		}
		if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
			market.Volume = v
		}
		// The first outcome price is the implied YES probability.
		var prices []string
		if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil && len(prices) > 0 {
			if p, err := strconv.ParseFloat(prices[0], 64); err == nil {
				market.Probability = p
			}
		}
		for _, tag := range m.Tags {
			market.Tags = append(market.Tags, tag.Label)
		}
		markets = append(markets, market)
	}
	return markets, nil
}

// HealthCheck probes the API with a single-market request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetActiveMarkets(probeCtx, 1); err != nil {
		return fmt.Errorf("polymarket health check failed: %w", err)
	}
	return nil
}
