// Package marketaux provides a client for the Marketaux news API, the
// sentiment-rich news provider. It supports batched multi-symbol queries.
package marketaux

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/models"
)

const (
	// Source is the rate-limiter source name for this provider.
	Source = "marketaux"

	// DefaultBaseURL is the base URL for the Marketaux API.
	DefaultBaseURL = "https://api.marketaux.com/v1"
)

// Client is a Marketaux API client.
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

// NewClient creates a new Marketaux API client.
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

type newsResponse struct {
	Data []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
		Entities    []struct {
			Symbol         string  `json:"symbol"`
			SentimentScore float64 `json:"sentiment_score"`
		} `json:"entities"`
	} `json:"data"`
}

// GetNews retrieves news for one or more symbols in a single upstream call.
// Articles carry a per-article mean entity sentiment in [-1, 1].
func (c *Client) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsArticle, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("symbols", strings.Join(symbols, ","))
	params.Set("filter_entities", "true")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var result newsResponse
	if err := c.http.GetJSON(ctx, Source, c.baseURL+"/news/all", params, &result); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(result.Data))
	for _, item := range result.Data {
		article := models.NewsArticle{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source,
		}
		if t, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			article.PublishedAt = t
		}

		var sum float64
		for _, e := range item.Entities {
			article.Symbols = append(article.Symbols, e.Symbol)
			sum += e.SentimentScore
		}
		if len(item.Entities) > 0 {
			article.Sentiment = sum / float64(len(item.Entities))
			article.HasSentiment = true
		}

		articles = append(articles, article)
	}
	return articles, nil
}

// GetSectorNews retrieves recent articles for an industry sector.
func (c *Client) GetSectorNews(ctx context.Context, sector string, limit int) ([]models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("api_token", c.apiKey)
	params.Set("industries", sector)
	params.Set("filter_entities", "true")
	params.Set("limit", fmt.Sprintf("%d", limit))

	var result newsResponse
	if err := c.http.GetJSON(ctx, Source, c.baseURL+"/news/all", params, &result); err != nil {
		return nil, err
	}

	articles := make([]models.NewsArticle, 0, len(result.Data))
	for _, item := range result.Data {
		article := models.NewsArticle{
			Title:       item.Title,
			Description: item.Description,
			URL:         item.URL,
			Source:      item.Source,
		}
		if t, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			article.PublishedAt = t
		}
		var sum float64
		for _, e := range item.Entities {
			article.Symbols = append(article.Symbols, e.Symbol)
			sum += e.SentimentScore
		}
		if len(item.Entities) > 0 {
			article.Sentiment = sum / float64(len(item.Entities))
			article.HasSentiment = true
		}
		articles = append(articles, article)
	}
	return articles, nil
}

// HealthCheck probes the API with a minimal single-symbol query.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetNews(probeCtx, []string{"SPY"}, 1); err != nil {
		return fmt.Errorf("marketaux health check failed: %w", err)
	}
	return nil
}
