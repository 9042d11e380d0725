// Package finnhub provides a client for the Finnhub API: fallback quotes,
// generic (sentiment-free) company news, and earnings surprises.
package finnhub

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/models"
)

const (
	// Source is the rate-limiter source name for this provider.
	Source = "finnhub"

	// DefaultBaseURL is the base URL for the Finnhub API.
	DefaultBaseURL = "https://finnhub.io/api/v1"
)

// Client is a Finnhub API client.
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

// NewClient creates a new Finnhub API client.
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

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", c.apiKey)
	return c.http.GetJSON(ctx, Source, c.baseURL+path, params, out)
}

type quoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// GetQuote retrieves the real-time quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var q quoteResponse
	if err := c.get(ctx, "/quote", params, &q); err != nil {
		return nil, err
	}
	if q.Current == 0 && q.Timestamp == 0 {
		return nil, fmt.Errorf("finnhub returned no quote for %s", symbol)
	}

	return &models.Quote{
		Symbol:        symbol,
		Price:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		DayHigh:       q.High,
		DayLow:        q.Low,
		PreviousClose: q.PreviousClose,
		Timestamp:     time.Unix(q.Timestamp, 0),
	}, nil
}

type newsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	SourceName string `json:"source"`
	Datetime int64  `json:"datetime"`
	Related  string `json:"related"`
}

// GetCompanyNews retrieves recent company news for a symbol. Articles have
// no sentiment; this is the generic fallback provider.
func (c *Client) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))

	var items []newsItem
	if err := c.get(ctx, "/company-news", params, &items); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(items))
	for _, item := range items {
		article := models.NewsArticle{
			Title:       item.Headline,
			Description: item.Summary,
			URL:         item.URL,
			Source:      item.SourceName,
			PublishedAt: time.Unix(item.Datetime, 0),
		}
		if item.Related != "" {
			article.Symbols = []string{item.Related}
		}
		articles = append(articles, article)
	}
	return articles, nil
}

type surpriseItem struct {
	Period   string  `json:"period"`
	Actual   float64 `json:"actual"`
	Estimate float64 `json:"estimate"`
}

// GetEarningsSurprises retrieves recent reported earnings with surprise
// percentages, most recent first.
func (c *Client) GetEarningsSurprises(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var items []surpriseItem
	if err := c.get(ctx, "/stock/earnings", params, &items); err != nil {
		return nil, err
	}

	events := make([]models.EarningsEvent, 0, len(items))
	for _, item := range items {
		t, err := time.Parse("2006-01-02", item.Period)
		if err != nil {
			continue
		}
		ev := models.EarningsEvent{
			Symbol:      symbol,
			Date:        t,
			EPSEstimate: item.Estimate,
			EPSActual:   item.Actual,
			Reported:    true,
		}
		if item.Estimate != 0 {
			ev.SurprisePct = (item.Actual - item.Estimate) / item.Estimate * 100
		}
		events = append(events, ev)
	}
	return events, nil
}

// HealthCheck probes the API with a lightweight quote request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetQuote(probeCtx, "SPY"); err != nil {
		return fmt.Errorf("finnhub health check failed: %w", err)
	}
	return nil
}
