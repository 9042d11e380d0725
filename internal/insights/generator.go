// Package insights periodically cross-references each user's holdings,
// watchlist, interests, and polled market signals to synthesize
// notification-shaped observations, each category independently deduped.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/notify"
)

// MarketData is the slice of the aggregator surface the generator consumes.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetEarnings(ctx context.Context, symbol string) []models.EarningsEvent
	GetSectorNews(ctx context.Context, sector string, limit int) []models.NewsArticle
	GetPredictionMarkets(ctx context.Context, limit int) []models.PredictionMarket
}

const (
	moveThresholdPct      = 3.0
	earningsWindowDays    = 7
	querySuggestThreshold = 3
	queryLookback         = 14 * 24 * time.Hour
	staleNoteAge          = 3 * 24 * time.Hour
	marketVolumeHigh      = 100_000
	marketVolumeExtreme   = 50_000
	extremeProbLow        = 0.15
	extremeProbHigh       = 0.85
	newsSentimentBar      = 0.4
	newsPerUserCap        = 3
	sectorNewsFetch       = 10
	marketsFetch          = 40
)

// dedupWindows bound how often each category may repeat per (user, key).
var dedupWindows = map[models.InsightType]time.Duration{
	models.InsightPriceMovement:    24 * time.Hour,
	models.InsightUpcomingEarnings: 7 * 24 * time.Hour,
	models.InsightWatchlistSuggest: 7 * 24 * time.Hour,
	models.InsightStaleNote:        3 * 24 * time.Hour,
	models.InsightPredictionMarket: 7 * 24 * time.Hour,
	models.InsightInterestNews:     7 * 24 * time.Hour,
}

// Generator runs insight cycles and pushes pending insights out through the
// notification pipeline.
type Generator struct {
	data     MarketData
	storage  interfaces.StorageManager
	pipeline *notify.Pipeline
	logger   arbor.ILogger

	now func() time.Time
}

func NewGenerator(data MarketData, storage interfaces.StorageManager, pipeline *notify.Pipeline, logger arbor.ILogger) *Generator {
	return &Generator{
		data:     data,
		storage:  storage,
		pipeline: pipeline,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes one insight cycle across all users. Sector news and
// prediction markets are fetched once and shared across users so call
// volume stays flat as the user count grows.
func (g *Generator) Run(ctx context.Context) error {
	users, err := g.storage.UserStorage().ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	sectorNews := g.prefetchSectorNews(ctx, users)
	markets := g.data.GetPredictionMarkets(ctx, marketsFetch)

	created := 0
	for _, user := range users {
		created += g.runForUser(ctx, user, sectorNews, markets)
	}

	g.logger.Info().
		Int("users", len(users)).
		Int("created", created).
		Msg("Insight cycle complete")
	return nil
}

// prefetchSectorNews batches one sector-news fetch per distinct interest
// across all users.
func (g *Generator) prefetchSectorNews(ctx context.Context, users []*models.UserProfile) map[string][]models.NewsArticle {
	out := make(map[string][]models.NewsArticle)
	for _, user := range users {
		for _, interest := range user.Interests {
			key := strings.ToLower(interest)
			if _, done := out[key]; done {
				continue
			}
			out[key] = g.data.GetSectorNews(ctx, interest, sectorNewsFetch)
		}
	}
	return out
}

func (g *Generator) runForUser(ctx context.Context, user *models.UserProfile, sectorNews map[string][]models.NewsArticle, markets []models.PredictionMarket) int {
	held := g.heldSymbols(ctx, user.UserID)
	watched := g.watchedSymbols(ctx, user.UserID)
	if len(held) == 0 && len(watched) == 0 && len(user.Interests) == 0 {
		return 0
	}

	tracked := make(map[string]bool, len(held)+len(watched))
	for s := range held {
		tracked[s] = true
	}
	for s := range watched {
		tracked[s] = true
	}

	created := 0
	movedSymbols := make(map[string]bool)

	for symbol := range tracked {
		if g.priceMovementInsight(ctx, user, symbol) {
			created++
			movedSymbols[symbol] = true
		}
		if g.upcomingEarningsInsight(ctx, user, symbol) {
			created++
		}
	}

	created += g.watchlistSuggestions(ctx, user, tracked)
	created += g.staleNoteInsights(ctx, user)
	created += g.predictionMarketInsights(ctx, user, tracked, markets)
	created += g.interestNewsInsights(ctx, user, sectorNews, movedSymbols)

	return created
}

// priceMovementInsight fires on a daily move of 3% or more in either
// direction, keyed by symbol and calendar day.
func (g *Generator) priceMovementInsight(ctx context.Context, user *models.UserProfile, symbol string) bool {
	quote, err := g.data.GetQuote(ctx, symbol)
	if err != nil {
		return false
	}
	if quote.ChangePercent < moveThresholdPct && quote.ChangePercent > -moveThresholdPct {
		return false
	}

	direction := "up"
	if quote.ChangePercent < 0 {
		direction = "down"
	}
	return g.create(ctx, &models.ProactiveInsight{
		UserID:   user.UserID,
		Type:     models.InsightPriceMovement,
		Title:    fmt.Sprintf("%s moved %.1f%% today", symbol, quote.ChangePercent),
		Content:  fmt.Sprintf("%s is %s %.1f%% at %.2f.", symbol, direction, abs(quote.ChangePercent), quote.Price),
		Symbols:  []string{symbol},
		DedupKey: fmt.Sprintf("%s|%s", symbol, g.now().Format("2006-01-02")),
	})
}

func (g *Generator) upcomingEarningsInsight(ctx context.Context, user *models.UserProfile, symbol string) bool {
	for _, event := range g.data.GetEarnings(ctx, symbol) {
		if event.Reported {
			continue
		}
		until := event.Date.Sub(g.now())
		if until < 0 || until > earningsWindowDays*24*time.Hour {
			continue
		}
		return g.create(ctx, &models.ProactiveInsight{
			UserID:   user.UserID,
			Type:     models.InsightUpcomingEarnings,
			Title:    fmt.Sprintf("%s reports earnings on %s", symbol, event.Date.Format("Jan 2")),
			Content:  fmt.Sprintf("%s reports in %d days. Consensus EPS estimate: %.2f.", symbol, int(until.Hours()/24), event.EPSEstimate),
			Symbols:  []string{symbol},
			DedupKey: fmt.Sprintf("%s|%s", symbol, event.Date.Format("2006-01-02")),
		})
	}
	return false
}

// watchlistSuggestions proposes symbols the user keeps asking about but
// neither holds nor watches.
func (g *Generator) watchlistSuggestions(ctx context.Context, user *models.UserProfile, tracked map[string]bool) int {
	counts, err := g.storage.QueryStatStorage().QueryCounts(ctx, user.UserID, g.now().Add(-queryLookback))
	if err != nil {
		g.logger.Warn().Err(err).Str("user", user.UserID).Msg("Query stats unavailable")
		return 0
	}

	created := 0
	for symbol, count := range counts {
		if count < querySuggestThreshold || tracked[symbol] {
			continue
		}
		if g.create(ctx, &models.ProactiveInsight{
			UserID:   user.UserID,
			Type:     models.InsightWatchlistSuggest,
			Title:    fmt.Sprintf("Add %s to your watchlist?", symbol),
			Content:  fmt.Sprintf("You've asked about %s %d times in the last two weeks but it isn't on your watchlist.", symbol, count),
			Symbols:  []string{symbol},
			DedupKey: symbol,
		}) {
			created++
		}
	}
	return created
}

func (g *Generator) staleNoteInsights(ctx context.Context, user *models.UserProfile) int {
	notes, err := g.storage.NoteStorage().GetNotes(ctx, user.UserID)
	if err != nil {
		return 0
	}

	created := 0
	for _, note := range notes {
		if note.Resolved || g.now().Sub(note.CreatedAt) < staleNoteAge {
			continue
		}
		if g.create(ctx, &models.ProactiveInsight{
			UserID:   user.UserID,
			Type:     models.InsightStaleNote,
			Title:    "Open reminder needs attention",
			Content:  fmt.Sprintf("Still unresolved after %d days: %s", int(g.now().Sub(note.CreatedAt).Hours()/24), note.Text),
			DedupKey: note.ID,
		}) {
			created++
		}
	}
	return created
}

// predictionMarketInsights surfaces markets relevant to the user's symbols
// or interests with heavy volume or an extreme implied probability.
func (g *Generator) predictionMarketInsights(ctx context.Context, user *models.UserProfile, tracked map[string]bool, markets []models.PredictionMarket) int {
	created := 0
	for _, market := range markets {
		if !marketMatchesUser(&market, user, tracked) {
			continue
		}
		heavy := market.Volume >= marketVolumeHigh
		extreme := market.Volume >= marketVolumeExtreme &&
			(market.Probability <= extremeProbLow || market.Probability >= extremeProbHigh)
		if !heavy && !extreme {
			continue
		}
		if g.create(ctx, &models.ProactiveInsight{
			UserID:   user.UserID,
			Type:     models.InsightPredictionMarket,
			Title:    "Prediction market signal",
			Content:  fmt.Sprintf("%q trades at %.0f%% implied probability on %.0f volume.", market.Question, market.Probability*100, market.Volume),
			DedupKey: market.Slug,
		}) {
			created++
		}
	}
	return created
}

// interestNewsInsights surfaces strong-sentiment sector articles matching a
// declared interest, capped per cycle, deduped by URL, and skipped when the
// article's only symbols already produced a price-movement insight.
func (g *Generator) interestNewsInsights(ctx context.Context, user *models.UserProfile, sectorNews map[string][]models.NewsArticle, movedSymbols map[string]bool) int {
	created := 0
	for _, interest := range user.Interests {
		if created >= newsPerUserCap {
			break
		}
		for _, article := range sectorNews[strings.ToLower(interest)] {
			if created >= newsPerUserCap {
				break
			}
			if !article.HasSentiment || abs(article.Sentiment) < newsSentimentBar {
				continue
			}
			if coveredByMovement(article.Symbols, movedSymbols) {
				continue
			}
			tone := "Positive"
			if article.Sentiment < 0 {
				tone = "Negative"
			}
			if g.create(ctx, &models.ProactiveInsight{
				UserID:   user.UserID,
				Type:     models.InsightInterestNews,
				Title:    fmt.Sprintf("%s %s news", tone, interest),
				Content:  fmt.Sprintf("%s (%s) %s", article.Title, article.Source, article.URL),
				Symbols:  article.Symbols,
				DedupKey: article.URL,
			}) {
				created++
			}
		}
	}
	return created
}

// create persists one undelivered insight unless the same (user, type, key)
// already exists inside its category's dedup window. Re-running a cycle is
// therefore idempotent.
func (g *Generator) create(ctx context.Context, insight *models.ProactiveInsight) bool {
	window := dedupWindows[insight.Type]
	exists, err := g.storage.InsightStorage().HasInsight(ctx, insight.UserID, insight.Type, insight.DedupKey, g.now().Add(-window))
	if err != nil {
		g.logger.Warn().Err(err).Str("type", string(insight.Type)).Msg("Insight dedup lookup failed")
		return false
	}
	if exists {
		return false
	}

	insight.ID = uuid.NewString()
	insight.CreatedAt = g.now()
	if err := g.storage.InsightStorage().InsertInsight(ctx, insight); err != nil {
		g.logger.Warn().Err(err).Str("type", string(insight.Type)).Msg("Failed to persist insight")
		return false
	}
	return true
}

// DispatchPending converts every undelivered insight into a single-user
// notification and marks it delivered only when the pipeline reached at
// least one recipient.
func (g *Generator) DispatchPending(ctx context.Context) error {
	pending, err := g.storage.InsightStorage().ListUndelivered(ctx)
	if err != nil {
		return fmt.Errorf("listing undelivered insights: %w", err)
	}

	for _, insight := range pending {
		symbol := ""
		if len(insight.Symbols) == 1 {
			symbol = insight.Symbols[0]
		}
		delivered, err := g.pipeline.Dispatch(ctx, &models.Notification{
			Type:          models.NotifyInsight,
			Title:         insight.Title,
			Description:   insight.Content,
			Symbol:        symbol,
			TargetUserIDs: []string{insight.UserID},
			Urgency:       models.UrgencyLow,
		})
		if err != nil {
			g.logger.Warn().Err(err).Str("insight", insight.ID).Msg("Insight dispatch failed")
			continue
		}
		if delivered > 0 {
			if err := g.storage.InsightStorage().MarkDelivered(ctx, insight.ID); err != nil {
				g.logger.Warn().Err(err).Str("insight", insight.ID).Msg("Failed to mark insight delivered")
			}
		}
	}
	return nil
}

// Purge removes delivered insights older than the retention cutoff.
func (g *Generator) Purge(ctx context.Context, retention time.Duration) (int, error) {
	return g.storage.InsightStorage().PurgeDelivered(ctx, g.now().Add(-retention))
}

func (g *Generator) heldSymbols(ctx context.Context, userID string) map[string]bool {
	out := make(map[string]bool)
	holdings, err := g.storage.PortfolioStorage().GetHoldings(ctx, userID)
	if err != nil {
		return out
	}
	for _, h := range holdings {
		out[strings.ToUpper(h.Symbol)] = true
	}
	return out
}

func (g *Generator) watchedSymbols(ctx context.Context, userID string) map[string]bool {
	out := make(map[string]bool)
	entries, err := g.storage.WatchlistStorage().GetWatchlist(ctx, userID)
	if err != nil {
		return out
	}
	for _, e := range entries {
		out[strings.ToUpper(e.Symbol)] = true
	}
	return out
}

func marketMatchesUser(market *models.PredictionMarket, user *models.UserProfile, tracked map[string]bool) bool {
	haystack := strings.ToLower(market.Question + " " + strings.Join(market.Tags, " "))
	for _, interest := range user.Interests {
		if strings.Contains(haystack, strings.ToLower(interest)) {
			return true
		}
	}
	for symbol := range tracked {
		if strings.Contains(haystack, strings.ToLower(symbol)) {
			return true
		}
	}
	return false
}

// coveredByMovement reports whether every symbol the article mentions
// already produced a price-movement insight this cycle. Articles with no
// symbols are never considered covered.
func coveredByMovement(symbols []string, moved map[string]bool) bool {
	if len(symbols) == 0 {
		return false
	}
	for _, s := range symbols {
		if !moved[strings.ToUpper(s)] {
			return false
		}
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
