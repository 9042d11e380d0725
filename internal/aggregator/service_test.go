package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/cache"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/models"
)

type fakeReference struct {
	quote      *models.Quote
	quoteErr   error
	quoteCalls int
}

func (f *fakeReference) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.quoteCalls++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeReference) GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error) {
	return &models.CompanyProfile{Symbol: symbol, Sector: "Technology"}, nil
}

func (f *fakeReference) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	return &models.Fundamentals{Symbol: symbol, PERatio: 20}, nil
}

func (f *fakeReference) GetPeers(ctx context.Context, symbol string) ([]string, error) {
	return []string{"MSFT", "GOOGL"}, nil
}

func (f *fakeReference) GetAnalystRatings(ctx context.Context, symbol string) (*models.AnalystRatings, error) {
	return nil, errors.New("not available")
}

func (f *fakeReference) GetEarningsCalendar(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	return nil, errors.New("not available")
}

func (f *fakeReference) GetPriceHistory(ctx context.Context, symbol string, days int) ([]models.PriceBar, error) {
	return nil, errors.New("not available")
}

type fakeQuoteFallback struct {
	quote *models.Quote
	err   error
	calls int
}

func (f *fakeQuoteFallback) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

type fakeSentimentNews struct {
	articles []models.NewsArticle
	err      error
	symbols  []string
	calls    int
}

func (f *fakeSentimentNews) GetNews(ctx context.Context, symbols []string, limit int) ([]models.NewsArticle, error) {
	f.calls++
	f.symbols = symbols
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

func (f *fakeSentimentNews) GetSectorNews(ctx context.Context, sector string, limit int) ([]models.NewsArticle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

type fakeFallbackNews struct {
	bySymbol map[string][]models.NewsArticle
	calls    int
}

func (f *fakeFallbackNews) GetCompanyNews(ctx context.Context, symbol string, from, to time.Time) ([]models.NewsArticle, error) {
	f.calls++
	articles, ok := f.bySymbol[symbol]
	if !ok {
		return nil, errors.New("no news")
	}
	return articles, nil
}

type fakeTechnicals struct {
	sma map[int]float64
	ema map[int]float64
	rsi float64
}

func (f *fakeTechnicals) GetSMA(ctx context.Context, symbol string, period int) (float64, error) {
	v, ok := f.sma[period]
	if !ok {
		return 0, errors.New("no data")
	}
	return v, nil
}

func (f *fakeTechnicals) GetEMA(ctx context.Context, symbol string, period int) (float64, error) {
	v, ok := f.ema[period]
	if !ok {
		return 0, errors.New("no data")
	}
	return v, nil
}

func (f *fakeTechnicals) GetRSI(ctx context.Context, symbol string, period int) (float64, error) {
	return f.rsi, nil
}

type fakeMarkets struct {
	markets []models.PredictionMarket
	err     error
}

func (f *fakeMarkets) GetActiveMarkets(ctx context.Context, limit int) ([]models.PredictionMarket, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

type fakeSurprises struct {
	events []models.EarningsEvent
	err    error
	calls  int
}

func (f *fakeSurprises) GetEarningsSurprises(ctx context.Context, symbol string) ([]models.EarningsEvent, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeMacro struct {
	point *models.MacroPoint
	err   error
}

func (f *fakeMacro) GetLatestObservation(ctx context.Context, seriesID string) (*models.MacroPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.point, nil
}

func newTestService(ref *fakeReference, qf *fakeQuoteFallback, news *fakeSentimentNews, fb *fakeFallbackNews, tech *fakeTechnicals) *Service {
	if qf == nil {
		qf = &fakeQuoteFallback{err: errors.New("unused")}
	}
	if news == nil {
		news = &fakeSentimentNews{err: errors.New("unused")}
	}
	if fb == nil {
		fb = &fakeFallbackNews{}
	}
	if tech == nil {
		tech = &fakeTechnicals{}
	}
	ttls := TTLs{
		Quote:        time.Minute,
		Profile:      24 * time.Hour,
		Fundamentals: 6 * time.Hour,
		News:         10 * time.Minute,
		Technicals:   15 * time.Minute,
		Macro:        time.Hour,
		Markets:      10 * time.Minute,
	}
	return NewService(ref, qf, news, fb, &fakeSurprises{err: errors.New("unused")}, tech,
		&fakeMarkets{}, &fakeMacro{point: &models.MacroPoint{SeriesID: "DFF", Value: 5.33}},
		cache.New(), ttls, common.GetLogger())
}

func TestGetQuotePrimary(t *testing.T) {
	ref := &fakeReference{quote: &models.Quote{Symbol: "AAPL", Price: 201.50}}
	fallback := &fakeQuoteFallback{err: errors.New("should not be called")}
	svc := newTestService(ref, fallback, nil, nil, nil)

	quote, err := svc.GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 201.50, quote.Price)
	assert.Equal(t, 0, fallback.calls)
}

func TestGetQuoteFallback(t *testing.T) {
	ref := &fakeReference{quoteErr: errors.New("primary down")}
	fallback := &fakeQuoteFallback{quote: &models.Quote{Symbol: "AAPL", Price: 201.25}}
	svc := newTestService(ref, fallback, nil, nil, nil)

	quote, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 201.25, quote.Price)
	assert.Equal(t, 1, fallback.calls)
}

func TestGetQuoteAllSourcesFail(t *testing.T) {
	ref := &fakeReference{quoteErr: errors.New("primary down")}
	fallback := &fakeQuoteFallback{err: errors.New("secondary down")}
	svc := newTestService(ref, fallback, nil, nil, nil)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all quote sources failed")
}

func TestGetQuoteCached(t *testing.T) {
	ref := &fakeReference{quote: &models.Quote{Symbol: "AAPL", Price: 201.50}}
	svc := newTestService(ref, nil, nil, nil, nil)

	_, err := svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	_, err = svc.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, ref.quoteCalls, "second read should be served from cache")
}

func TestGetNewsBatchedSingleCall(t *testing.T) {
	news := &fakeSentimentNews{articles: []models.NewsArticle{
		{Title: "Chip demand surges", Symbols: []string{"NVDA"}, Sentiment: 0.6, HasSentiment: true},
	}}
	svc := newTestService(&fakeReference{}, nil, news, nil, nil)

	articles := svc.GetNews(context.Background(), []string{"nvda", "aapl"}, 10)
	require.Len(t, articles, 1)
	assert.Equal(t, 1, news.calls, "multi-symbol requests batch into one call")
	assert.Equal(t, []string{"AAPL", "NVDA"}, news.symbols)
}

func TestGetNewsFallbackPerSymbol(t *testing.T) {
	news := &fakeSentimentNews{err: errors.New("quota exhausted")}
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	fb := &fakeFallbackNews{bySymbol: map[string][]models.NewsArticle{
		"AAPL": {{Title: "Apple event", PublishedAt: older}},
		"NVDA": {{Title: "Nvidia earnings", PublishedAt: newer}},
	}}
	svc := newTestService(&fakeReference{}, nil, news, fb, nil)

	articles := svc.GetNews(context.Background(), []string{"AAPL", "NVDA"}, 10)
	require.Len(t, articles, 2)
	assert.Equal(t, 2, fb.calls)
	assert.Equal(t, "Nvidia earnings", articles[0].Title, "fallback merge sorts newest first")
}

func TestGetNewsAllSourcesFailReturnsEmpty(t *testing.T) {
	news := &fakeSentimentNews{err: errors.New("down")}
	fb := &fakeFallbackNews{bySymbol: map[string][]models.NewsArticle{}}
	svc := newTestService(&fakeReference{}, nil, news, fb, nil)

	articles := svc.GetNews(context.Background(), []string{"AAPL"}, 10)
	assert.Empty(t, articles)
}

func TestGetTechnicalIndicatorsFanOut(t *testing.T) {
	tech := &fakeTechnicals{
		sma: map[int]float64{20: 210.0, 50: 205.0, 200: 190.0},
		ema: map[int]float64{12: 211.5, 26: 208.0},
		rsi: 62.4,
	}
	svc := newTestService(&fakeReference{}, nil, nil, nil, tech)

	ind := svc.GetTechnicalIndicators(context.Background(), "AAPL")
	require.NotNil(t, ind)
	assert.Equal(t, 210.0, ind.SMA20)
	assert.Equal(t, 190.0, ind.SMA200)
	assert.Equal(t, 62.4, ind.RSI14)
	assert.InDelta(t, 3.5, ind.MACD, 1e-9, "MACD is EMA12 minus EMA26")
}

func TestGetTechnicalIndicatorsPartialFailure(t *testing.T) {
	// SMA200 missing from the provider; the remaining legs still populate.
	tech := &fakeTechnicals{
		sma: map[int]float64{20: 210.0, 50: 205.0},
		ema: map[int]float64{12: 211.5, 26: 208.0},
		rsi: 55.0,
	}
	svc := newTestService(&fakeReference{}, nil, nil, nil, tech)

	ind := svc.GetTechnicalIndicators(context.Background(), "AAPL")
	assert.Zero(t, ind.SMA200)
	assert.Equal(t, 210.0, ind.SMA20)
}

func TestGetPeersFallsBackToEmpty(t *testing.T) {
	svc := newTestService(&fakeReference{}, nil, nil, nil, nil)
	peers := svc.GetPeers(context.Background(), "AAPL")
	assert.Equal(t, []string{"MSFT", "GOOGL"}, peers)
}

func TestGetMacroCached(t *testing.T) {
	svc := newTestService(&fakeReference{}, nil, nil, nil, nil)
	point := svc.GetMacro(context.Background(), "DFF")
	require.NotNil(t, point)
	assert.Equal(t, 5.33, point.Value)
}

func TestGetEarningsSurprisesCached(t *testing.T) {
	svc := newTestService(&fakeReference{}, nil, nil, nil, nil)
	source := &fakeSurprises{events: []models.EarningsEvent{
		{Symbol: "AAPL", Reported: true, SurprisePct: 4.2},
	}}
	svc.surprises = source

	events := svc.GetEarningsSurprises(context.Background(), "aapl")
	require.Len(t, events, 1)
	assert.Equal(t, 4.2, events[0].SurprisePct)

	svc.GetEarningsSurprises(context.Background(), "AAPL")
	assert.Equal(t, 1, source.calls)
}

func TestGetEarningsSurprisesFailureReturnsEmpty(t *testing.T) {
	svc := newTestService(&fakeReference{}, nil, nil, nil, nil)
	events := svc.GetEarningsSurprises(context.Background(), "AAPL")
	assert.Empty(t, events)
}
