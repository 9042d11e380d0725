// Package fmp provides a client for the Financial Modeling Prep API, the
// primary provider for quotes, profiles, fundamentals, peers, analyst data,
// earnings, and price history.
package fmp

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
	Source = "fmp"

	// DefaultBaseURL is the base URL for the FMP API.
	DefaultBaseURL = "https://financialmodelingprep.com/api"
)

// Client is an FMP API client.
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

// NewClient creates a new FMP API client.
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
	params.Set("apikey", c.apiKey)
	return c.http.GetJSON(ctx, Source, c.baseURL+path, params, out)
}

// GetQuote retrieves the real-time quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var result []quoteResponse
	if err := c.get(ctx, "/v3/quote/"+symbol, nil, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("fmp returned no quote for %s", symbol)
	}

	q := result[0]
	return &models.Quote{
		Symbol:        q.Symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangesPercentage,
		DayHigh:       q.DayHigh,
		DayLow:        q.DayLow,
		Volume:        q.Volume,
		PreviousClose: q.PreviousClose,
		Timestamp:     time.Unix(q.Timestamp, 0),
	}, nil
}

// GetProfile retrieves the company profile for a symbol.
func (c *Client) GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	var result []profileResponse
	if err := c.get(ctx, "/v3/profile/"+symbol, nil, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("fmp returned no profile for %s", symbol)
	}

	p := result[0]
	return &models.CompanyProfile{
		Symbol:      p.Symbol,
		Name:        p.CompanyName,
		Sector:      p.Sector,
		Industry:    p.Industry,
		MarketCap:   p.MktCap,
		Description: p.Description,
		Exchange:    p.ExchangeShortName,
		Website:     p.Website,
	}, nil
}

// GetFundamentals retrieves TTM ratios plus trailing growth for a symbol.
func (c *Client) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	var ratios []ratiosTTMResponse
	if err := c.get(ctx, "/v3/ratios-ttm/"+symbol, nil, &ratios); err != nil {
		return nil, err
	}
	if len(ratios) == 0 {
		return nil, fmt.Errorf("fmp returned no ratios for %s", symbol)
	}
	r := ratios[0]

	f := &models.Fundamentals{
		Symbol:          symbol,
		PERatio:         r.PERatioTTM,
		PriceToSales:    r.PriceToSalesRatioTTM,
		PriceToBook:     r.PriceToBookRatioTTM,
		EVToEBITDA:      r.EnterpriseValueMultipleTTM,
		GrossMargin:     r.GrossProfitMarginTTM,
		OperatingMargin: r.OperatingProfitMarginTTM,
		NetMargin:       r.NetProfitMarginTTM,
		ReturnOnEquity:  r.ReturnOnEquityTTM,
		ReturnOnAssets:  r.ReturnOnAssetsTTM,
		DebtToEquity:    r.DebtEquityRatioTTM,
	}

	// Growth is a separate endpoint; its failure degrades the record rather
	// than failing the fetch.
	var growth []growthResponse
	params := url.Values{}
	params.Set("limit", "1")
	if err := c.get(ctx, "/v3/financial-growth/"+symbol, params, &growth); err != nil {
		c.logger.Debug().Str("symbol", symbol).Err(err).Msg("FMP growth fetch failed, fundamentals degraded")
	} else if len(growth) > 0 {
		f.RevenueGrowthYoY = growth[0].RevenueGrowth
		f.EPSGrowthYoY = growth[0].EPSGrowth
	}

	return f, nil
}

// GetPeers retrieves the live peer list for a symbol.
func (c *Client) GetPeers(ctx context.Context, symbol string) ([]string, error) {
	var result []peersResponse
	params := url.Values{}
	params.Set("symbol", symbol)
	if err := c.get(ctx, "/v4/stock_peers", params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("fmp returned no peers for %s", symbol)
	}
	return result[0].PeersList, nil
}

// GetAnalystRatings retrieves the latest analyst consensus for a symbol.
func (c *Client) GetAnalystRatings(ctx context.Context, symbol string) (*models.AnalystRatings, error) {
	var result []analystResponse
	params := url.Values{}
	params.Set("limit", "2")
	if err := c.get(ctx, "/v3/analyst-stock-recommendations/"+symbol, params, &result); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("fmp returned no analyst data for %s", symbol)
	}

	latest := result[0]
	ratings := &models.AnalystRatings{
		Symbol:     symbol,
		StrongBuy:  latest.AnalystRatingsStrongBuy,
		Buy:        latest.AnalystRatingsBuy,
		Hold:       latest.AnalystRatingsHold,
		Sell:       latest.AnalystRatingsSell,
		StrongSell: latest.AnalystRatingsStrongSell,
	}
	if t, err := time.Parse("2006-01-02", latest.Date); err == nil {
		ratings.LastUpdated = t
	}

	// Month-over-month deltas approximate estimate-revision direction.
	if len(result) > 1 {
		prev := result[1]
		up := (latest.AnalystRatingsStrongBuy + latest.AnalystRatingsBuy) - (prev.AnalystRatingsStrongBuy + prev.AnalystRatingsBuy)
		down := (latest.AnalystRatingsSell + latest.AnalystRatingsStrongSell) - (prev.AnalystRatingsSell + prev.AnalystRatingsStrongSell)
		if up > 0 {
			ratings.RevisionsUp = up
		}
		if down > 0 {
			ratings.RevisionsDown = down
		}
	}

	return ratings, nil
}

// GetEarningsCalendar retrieves upcoming and recent earnings events for a
// symbol, most recent first.
func (c *Client) GetEarningsCalendar(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	var result []earningsResponse
	params := url.Values{}
	params.Set("limit", "8")
	if err := c.get(ctx, "/v3/historical/earning_calendar/"+symbol, params, &result); err != nil {
		return nil, err
	}

	events := make([]models.EarningsEvent, 0, len(result))
	for _, e := range result {
		t, err := time.Parse("2006-01-02", e.Date)
		if err != nil {
			continue
		}
		ev := models.EarningsEvent{
			Symbol:      symbol,
			Date:        t,
			EPSEstimate: e.EPSEstimated,
		}
		if e.EPS != nil {
			ev.EPSActual = *e.EPS
			ev.Reported = true
			if e.EPSEstimated != 0 {
				ev.SurprisePct = (*e.EPS - e.EPSEstimated) / e.EPSEstimated * 100
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// GetPriceHistory retrieves up to days of daily bars, oldest first.
func (c *Client) GetPriceHistory(ctx context.Context, symbol string, days int) ([]models.PriceBar, error) {
	var result historyResponse
	params := url.Values{}
	params.Set("timeseries", fmt.Sprintf("%d", days))
	if err := c.get(ctx, "/v3/historical-price-full/"+symbol, params, &result); err != nil {
		return nil, err
	}

	bars := make([]models.PriceBar, 0, len(result.Historical))
	// FMP returns newest first; reverse to oldest first.
	for i := len(result.Historical) - 1; i >= 0; i-- {
		h := result.Historical[i]
		t, err := time.Parse("2006-01-02", h.Date)
		if err != nil {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   t,
			Open:   h.Open,
			High:   h.High,
			Low:    h.Low,
			Close:  h.Close,
			Volume: h.Volume,
		})
	}
	return bars, nil
}

// HealthCheck probes the API with a lightweight quote request.
func (c *Client) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.GetQuote(probeCtx, "SPY"); err != nil {
		return fmt.Errorf("fmp health check failed: %w", err)
	}
	return nil
}
