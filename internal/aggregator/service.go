// Package aggregator exposes one stable per-domain query surface over the
// collector fleet: cache first, then a fixed fallback chain per domain, with
// results normalized before caching so callers never see provider schemas.
package aggregator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/cache"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/models"
)

// TTLs holds the per-domain cache lifetimes.
type TTLs struct {
	Quote        time.Duration
	Profile      time.Duration
	Fundamentals time.Duration
	News         time.Duration
	Technicals   time.Duration
	Macro        time.Duration
	Markets      time.Duration
}

// TTLsFromConfig parses the configured duration strings.
func TTLsFromConfig(cfg *common.CacheConfig) TTLs {
	return TTLs{
		Quote:        common.Duration(cfg.Quote, time.Minute),
		Profile:      common.Duration(cfg.Profile, 24*time.Hour),
		Fundamentals: common.Duration(cfg.Fundamentals, 6*time.Hour),
		News:         common.Duration(cfg.News, 10*time.Minute),
		Technicals:   common.Duration(cfg.Technicals, 15*time.Minute),
		Macro:        common.Duration(cfg.Macro, time.Hour),
		Markets:      common.Duration(cfg.Markets, 10*time.Minute),
	}
}

// Service is the data aggregator.
type Service struct {
	reference     ReferenceSource
	quoteFallback QuoteSource
	news          SentimentNewsSource
	newsFallback  FallbackNewsSource
	surprises     SurpriseSource
	technicals    TechnicalsSource
	markets       MarketsSource
	macro         MacroSource

	cache  *cache.TTLCache
	ttls   TTLs
	logger arbor.ILogger
}

// NewService creates the aggregator over the given sources.
func NewService(
	reference ReferenceSource,
	quoteFallback QuoteSource,
	news SentimentNewsSource,
	newsFallback FallbackNewsSource,
	surprises SurpriseSource,
	technicals TechnicalsSource,
	markets MarketsSource,
	macro MacroSource,
	ttlCache *cache.TTLCache,
	ttls TTLs,
	logger arbor.ILogger,
) *Service {
	return &Service{
		reference:     reference,
		quoteFallback: quoteFallback,
		news:          news,
		newsFallback:  newsFallback,
		surprises:     surprises,
		technicals:    technicals,
		markets:       markets,
		macro:         macro,
		cache:         ttlCache,
		ttls:          ttls,
		logger:        logger,
	}
}

// Cache returns the shared TTL cache for sweep scheduling.
func (s *Service) Cache() *cache.TTLCache {
	return s.cache
}

// GetQuote returns the current quote, preferring the primary provider and
// falling back to the secondary. Unlike the news methods this returns an
// error when every provider fails: alert evaluation must distinguish "no
// data" from a real zero.
func (s *Service) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = strings.ToUpper(symbol)
	key := "quote:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.Quote), nil
	}

	quote, err := s.reference.GetQuote(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Primary quote source failed, trying fallback")
		quote, err = s.quoteFallback.GetQuote(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("all quote sources failed for %s: %w", symbol, err)
		}
	}

	s.cache.Set(key, quote, s.ttls.Quote)
	return quote, nil
}

// GetProfile returns the company profile, or nil when unavailable.
func (s *Service) GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	symbol = strings.ToUpper(symbol)
	key := "profile:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.CompanyProfile), nil
	}

	profile, err := s.reference.GetProfile(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("profile unavailable for %s: %w", symbol, err)
	}

	s.cache.Set(key, profile, s.ttls.Profile)
	return profile, nil
}

// GetFundamentals returns fundamentals for a symbol. Errors are surfaced so
// the grade engine can drop a failed peer from its cohort.
func (s *Service) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	symbol = strings.ToUpper(symbol)
	key := "fundamentals:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.Fundamentals), nil
	}

	f, err := s.reference.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamentals unavailable for %s: %w", symbol, err)
	}

	s.cache.Set(key, f, s.ttls.Fundamentals)
	return f, nil
}

// GetPeers returns the live peer list, or an empty slice on failure; the
// grade engine then falls back to its curated per-sector list.
func (s *Service) GetPeers(ctx context.Context, symbol string) []string {
	symbol = strings.ToUpper(symbol)
	key := "peers:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.([]string)
	}

	peers, err := s.reference.GetPeers(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Peer list unavailable")
		return nil
	}

	s.cache.Set(key, peers, s.ttls.Fundamentals)
	return peers
}

// GetAnalystRatings returns the analyst consensus, or nil on failure.
func (s *Service) GetAnalystRatings(ctx context.Context, symbol string) *models.AnalystRatings {
	symbol = strings.ToUpper(symbol)
	key := "analyst:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.AnalystRatings)
	}

	ratings, err := s.reference.GetAnalystRatings(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Analyst ratings unavailable")
		return nil
	}

	s.cache.Set(key, ratings, s.ttls.Fundamentals)
	return ratings
}

// GetEarnings returns earnings events for a symbol, empty on failure.
func (s *Service) GetEarnings(ctx context.Context, symbol string) []models.EarningsEvent {
	symbol = strings.ToUpper(symbol)
	key := "earnings:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.EarningsEvent)
	}

	events, err := s.reference.GetEarningsCalendar(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Earnings calendar unavailable")
		return nil
	}

	s.cache.Set(key, events, s.ttls.Fundamentals)
	return events
}

// GetEarningsSurprises returns recent reported earnings with surprise
// percentages, most recent first, empty on failure.
func (s *Service) GetEarningsSurprises(ctx context.Context, symbol string) []models.EarningsEvent {
	symbol = strings.ToUpper(symbol)
	key := "surprises:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.EarningsEvent)
	}

	events, err := s.surprises.GetEarningsSurprises(ctx, symbol)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Earnings surprises unavailable")
		return nil
	}

	s.cache.Set(key, events, s.ttls.Fundamentals)
	return events
}

// GetPriceHistory returns up to days of daily bars, oldest first, empty on
// failure.
func (s *Service) GetPriceHistory(ctx context.Context, symbol string, days int) []models.PriceBar {
	symbol = strings.ToUpper(symbol)
	key := fmt.Sprintf("history:%s:%d", symbol, days)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.PriceBar)
	}

	bars, err := s.reference.GetPriceHistory(ctx, symbol, days)
	if err != nil {
		s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Price history unavailable")
		return nil
	}

	s.cache.Set(key, bars, s.ttls.Fundamentals)
	return bars
}

// GetNews returns normalized articles for one or more symbols. The batched
// sentiment-rich provider is preferred with a single multi-symbol call; only
// when that call fails entirely does the aggregator fall back to per-symbol
// calls against the generic provider. Returns an empty slice when every
// provider fails.
func (s *Service) GetNews(ctx context.Context, symbols []string, limit int) []models.NewsArticle {
	if len(symbols) == 0 {
		return nil
	}
	upper := make([]string, len(symbols))
	for i, sym := range symbols {
		upper[i] = strings.ToUpper(sym)
	}
	sort.Strings(upper)
	key := "news:" + strings.Join(upper, ",")
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.NewsArticle)
	}

	articles, err := s.news.GetNews(ctx, upper, limit)
	if err != nil {
		s.logger.Debug().Str("symbols", strings.Join(upper, ",")).Err(err).Msg("Sentiment news source failed, falling back per symbol")
		articles = s.fallbackNewsPerSymbol(ctx, upper, limit)
	}

	s.cache.Set(key, articles, s.ttls.News)
	return articles
}

func (s *Service) fallbackNewsPerSymbol(ctx context.Context, symbols []string, limit int) []models.NewsArticle {
	var merged []models.NewsArticle
	to := time.Now()
	from := to.AddDate(0, 0, -3)

	for _, symbol := range symbols {
		articles, err := s.newsFallback.GetCompanyNews(ctx, symbol, from, to)
		if err != nil {
			s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Fallback news source failed")
			continue
		}
		merged = append(merged, articles...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// GetSectorNews returns sector-level articles, empty on failure.
func (s *Service) GetSectorNews(ctx context.Context, sector string, limit int) []models.NewsArticle {
	key := "sectornews:" + strings.ToLower(sector)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.NewsArticle)
	}

	articles, err := s.news.GetSectorNews(ctx, sector, limit)
	if err != nil {
		s.logger.Debug().Str("sector", sector).Err(err).Msg("Sector news unavailable")
		return nil
	}

	s.cache.Set(key, articles, s.ttls.News)
	return articles
}

// GetTechnicalIndicators joins six independent provider calls into one
// record. The calls run in parallel; a failed leg leaves its field zero.
// MACD is computed locally as EMA12 - EMA26, the one value in the aggregator
// derived from composed inputs rather than fetched.
func (s *Service) GetTechnicalIndicators(ctx context.Context, symbol string) *models.TechnicalIndicators {
	symbol = strings.ToUpper(symbol)
	key := "technicals:" + symbol
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.TechnicalIndicators)
	}

	ind := &models.TechnicalIndicators{Symbol: symbol}

	type leg struct {
		dest  *float64
		fetch func(context.Context) (float64, error)
	}
	legs := []leg{
		{&ind.SMA20, func(ctx context.Context) (float64, error) { return s.technicals.GetSMA(ctx, symbol, 20) }},
		{&ind.SMA50, func(ctx context.Context) (float64, error) { return s.technicals.GetSMA(ctx, symbol, 50) }},
		{&ind.SMA200, func(ctx context.Context) (float64, error) { return s.technicals.GetSMA(ctx, symbol, 200) }},
		{&ind.RSI14, func(ctx context.Context) (float64, error) { return s.technicals.GetRSI(ctx, symbol, 14) }},
		{&ind.EMA12, func(ctx context.Context) (float64, error) { return s.technicals.GetEMA(ctx, symbol, 12) }},
		{&ind.EMA26, func(ctx context.Context) (float64, error) { return s.technicals.GetEMA(ctx, symbol, 26) }},
	}

	var wg sync.WaitGroup
	for _, l := range legs {
		wg.Add(1)
		go func(l leg) {
			defer wg.Done()
			v, err := l.fetch(ctx)
			if err != nil {
				s.logger.Debug().Str("symbol", symbol).Err(err).Msg("Technical indicator leg failed")
				return
			}
			*l.dest = v
		}(l)
	}
	wg.Wait()

	ind.MACD = ind.EMA12 - ind.EMA26

	s.cache.Set(key, ind, s.ttls.Technicals)
	return ind
}

// GetPredictionMarkets returns active prediction markets, empty on failure.
func (s *Service) GetPredictionMarkets(ctx context.Context, limit int) []models.PredictionMarket {
	key := "markets:active"
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.PredictionMarket)
	}

	markets, err := s.markets.GetActiveMarkets(ctx, limit)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Prediction markets unavailable")
		return nil
	}

	s.cache.Set(key, markets, s.ttls.Markets)
	return markets
}

// GetMacro returns the latest observation of a macro series, or nil on
// failure.
func (s *Service) GetMacro(ctx context.Context, seriesID string) *models.MacroPoint {
	key := "macro:" + seriesID
	if v, ok := s.cache.Get(key); ok {
		return v.(*models.MacroPoint)
	}

	point, err := s.macro.GetLatestObservation(ctx, seriesID)
	if err != nil {
		s.logger.Debug().Str("series", seriesID).Err(err).Msg("Macro series unavailable")
		return nil
	}

	s.cache.Set(key, point, s.ttls.Macro)
	return point
}

// HealthStatus probes every collector that implements HealthChecker and
// returns source name -> probe error (nil entries are healthy). Used for
// operational status only, never routing.
func (s *Service) HealthStatus(ctx context.Context) map[string]error {
	status := make(map[string]error)
	probes := map[string]any{
		"reference":     s.reference,
		"quoteFallback": s.quoteFallback,
		"news":          s.news,
		"technicals":    s.technicals,
		"markets":       s.markets,
		"macro":         s.macro,
	}
	for name, src := range probes {
		if hc, ok := src.(HealthChecker); ok {
			status[name] = hc.HealthCheck(ctx)
		}
	}
	return status
}
