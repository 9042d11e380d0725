package aggregator

import (
	"context"
	"time"

	"github.com/ternarybob/advisor/internal/models"
)

// Per-domain source interfaces, satisfied by the concrete collector clients.
// The aggregator depends on these rather than on provider packages so fallback
// chains can be exercised with fakes.

// QuoteSource answers real-time quote queries.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// ReferenceSource answers the slow-moving reference-data queries served by
// the primary provider.
type ReferenceSource interface {
	QuoteSource
	GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	GetPeers(ctx context.Context, symbol string) ([]string, error)
	GetAnalystRatings(ctx context.Context, symbol string) (*models.AnalystRatings, error)
	GetEarningsCalendar(ctx context.Context, symbol string) ([]models.EarningsEvent, error)
	GetPriceHistory(ctx context.Context, symbol string, days int) ([]models.PriceBar, error)
}

// SentimentNewsSource answers batched multi-symbol news with sentiment.
type SentimentNewsSource interface {
	GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsArticle, error)
	GetSectorNews(ctx context.Context, sector string, limit int) ([]models.NewsArticle, error)
}

// FallbackNewsSource answers single-symbol news without sentiment.
type FallbackNewsSource interface {
	GetCompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error)
}

// SurpriseSource answers reported earnings-surprise queries.
type SurpriseSource interface {
	GetEarningsSurprises(ctx context.Context, symbol string) ([]models.EarningsEvent, error)
}

// TechnicalsSource answers the six indicator endpoints.
type TechnicalsSource interface {
	GetSMA(ctx context.Context, symbol string, period int) (float64, error)
	GetEMA(ctx context.Context, symbol string, period int) (float64, error)
	GetRSI(ctx context.Context, symbol string, period int) (float64, error)
}

// MarketsSource answers prediction-market queries.
type MarketsSource interface {
	GetActiveMarkets(ctx context.Context, limit int) ([]models.PredictionMarket, error)
}

// MacroSource answers macro-series queries.
type MacroSource interface {
	GetLatestObservation(ctx context.Context, seriesID string) (*models.MacroPoint, error)
}

// HealthChecker is implemented by every collector for operational status
// reporting; it never influences live routing.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
