package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/notify"
)

type fakeData struct {
	quotes   map[string]*models.Quote
	earnings map[string][]models.EarningsEvent
	news     map[string][]models.NewsArticle
	markets  []models.PredictionMarket

	sectorCalls map[string]int
}

func (f *fakeData) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return nil, errors.New("no quote")
}

func (f *fakeData) GetEarnings(ctx context.Context, symbol string) []models.EarningsEvent {
	return f.earnings[symbol]
}

func (f *fakeData) GetSectorNews(ctx context.Context, sector string, limit int) []models.NewsArticle {
	if f.sectorCalls == nil {
		f.sectorCalls = make(map[string]int)
	}
	f.sectorCalls[sector]++
	return f.news[sector]
}

func (f *fakeData) GetPredictionMarkets(ctx context.Context, limit int) []models.PredictionMarket {
	return f.markets
}

// memStorage is an in-memory StorageManager covering what the generator and
// pipeline touch.
type memStorage struct {
	interfaces.StorageManager
	users    []*models.UserProfile
	holdings map[string][]*models.Holding
	watched  map[string][]*models.WatchlistEntry
	notes    map[string][]*models.Note
	queries  map[string]map[string]int
	insights []*models.ProactiveInsight
	log      []*models.NotificationRecord
}

type memUsers struct{ s *memStorage }

func (m memUsers) GetUser(ctx context.Context, id string) (*models.UserProfile, error) {
	for _, u := range m.s.users {
		if u.UserID == id {
			return u, nil
		}
	}
	return nil, interfaces.ErrNotFound
}
func (m memUsers) UpsertUser(ctx context.Context, u *models.UserProfile) error { return nil }
func (m memUsers) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	return m.s.users, nil
}

type memWatchlists struct{ s *memStorage }

func (m memWatchlists) GetWatchlist(ctx context.Context, userID string) ([]*models.WatchlistEntry, error) {
	return m.s.watched[userID], nil
}
func (m memWatchlists) AddToWatchlist(ctx context.Context, e *models.WatchlistEntry) error {
	return nil
}
func (m memWatchlists) RemoveFromWatchlist(ctx context.Context, userID, symbol string) (bool, error) {
	return false, nil
}
func (m memWatchlists) UsersWatching(ctx context.Context, symbol string) ([]string, error) {
	var out []string
	for userID, entries := range m.s.watched {
		for _, e := range entries {
			if e.Symbol == symbol {
				out = append(out, userID)
			}
		}
	}
	return out, nil
}
func (m memWatchlists) AllWatchedSymbols(ctx context.Context) ([]string, error) { return nil, nil }

type memPortfolios struct{ s *memStorage }

func (m memPortfolios) GetHoldings(ctx context.Context, userID string) ([]*models.Holding, error) {
	return m.s.holdings[userID], nil
}
func (m memPortfolios) UpsertHolding(ctx context.Context, h *models.Holding) error { return nil }
func (m memPortfolios) RemoveHolding(ctx context.Context, userID, symbol string) (bool, error) {
	return false, nil
}

type memNotes struct{ s *memStorage }

func (m memNotes) GetNotes(ctx context.Context, userID string) ([]*models.Note, error) {
	return m.s.notes[userID], nil
}
func (m memNotes) InsertNote(ctx context.Context, n *models.Note) error { return nil }
func (m memNotes) ResolveNote(ctx context.Context, userID, noteID string) (bool, error) {
	return false, nil
}

type memQueries struct{ s *memStorage }

func (m memQueries) RecordQuery(ctx context.Context, userID, symbol string) error { return nil }
func (m memQueries) QueryCounts(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	return m.s.queries[userID], nil
}

type memInsights struct{ s *memStorage }

func (m memInsights) InsertInsight(ctx context.Context, i *models.ProactiveInsight) error {
	m.s.insights = append(m.s.insights, i)
	return nil
}
func (m memInsights) ListUndelivered(ctx context.Context) ([]*models.ProactiveInsight, error) {
	var out []*models.ProactiveInsight
	for _, i := range m.s.insights {
		if !i.Delivered {
			out = append(out, i)
		}
	}
	return out, nil
}
func (m memInsights) MarkDelivered(ctx context.Context, id string) error {
	for _, i := range m.s.insights {
		if i.ID == id {
			i.Delivered = true
			now := time.Now()
			i.DeliveredAt = &now
		}
	}
	return nil
}
func (m memInsights) HasInsight(ctx context.Context, userID string, typ models.InsightType, key string, since time.Time) (bool, error) {
	for _, i := range m.s.insights {
		if i.UserID == userID && i.Type == typ && i.DedupKey == key && i.CreatedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}
func (m memInsights) PurgeDelivered(ctx context.Context, cutoff time.Time) (int, error) {
	var kept []*models.ProactiveInsight
	removed := 0
	for _, i := range m.s.insights {
		if i.Delivered && i.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, i)
	}
	m.s.insights = kept
	return removed, nil
}

type memLog struct{ s *memStorage }

func (m memLog) LogNotification(ctx context.Context, r *models.NotificationRecord) error {
	m.s.log = append(m.s.log, r)
	return nil
}
func (m memLog) SeenSince(ctx context.Context, hash string, since time.Time) (bool, error) {
	for _, r := range m.s.log {
		if r.ContentHash == hash && r.DispatchedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}
func (m memLog) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func (s *memStorage) UserStorage() interfaces.UserStorage             { return memUsers{s} }
func (s *memStorage) WatchlistStorage() interfaces.WatchlistStorage   { return memWatchlists{s} }
func (s *memStorage) PortfolioStorage() interfaces.PortfolioStorage   { return memPortfolios{s} }
func (s *memStorage) NoteStorage() interfaces.NoteStorage             { return memNotes{s} }
func (s *memStorage) QueryStatStorage() interfaces.QueryStatStorage   { return memQueries{s} }
func (s *memStorage) InsightStorage() interfaces.InsightStorage       { return memInsights{s} }
func (s *memStorage) NotificationLogStorage() interfaces.NotificationLogStorage {
	return memLog{s}
}

type stubMessenger struct {
	direct  int
	channel int
}

func (m *stubMessenger) SendDirectMessage(ctx context.Context, chatID int64, text string) error {
	m.direct++
	return nil
}
func (m *stubMessenger) SendToChannel(ctx context.Context, text string) error {
	m.channel++
	return nil
}

func newTestGenerator(data *fakeData, storage *memStorage) (*Generator, *stubMessenger) {
	messenger := &stubMessenger{}
	pipeline := notify.NewPipeline(storage, messenger, 6*time.Hour, common.GetLogger())
	return NewGenerator(data, storage, pipeline, common.GetLogger()), messenger
}

func holderOfAAPL() *memStorage {
	return &memStorage{
		users: []*models.UserProfile{
			{UserID: "u1", ChatID: 100, Preference: models.DeliverDirect},
		},
		holdings: map[string][]*models.Holding{
			"u1": {{ID: "h1", UserID: "u1", Symbol: "AAPL", Quantity: 10}},
		},
		watched: map[string][]*models.WatchlistEntry{},
		notes:   map[string][]*models.Note{},
		queries: map[string]map[string]int{},
	}
}

func TestPriceMovementInsightIdempotentWithinCycle(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{
			"AAPL": {Symbol: "AAPL", Price: 210.40, ChangePercent: 5.2},
		},
	}
	storage := holderOfAAPL()
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	require.Len(t, storage.insights, 1)
	assert.Equal(t, models.InsightPriceMovement, storage.insights[0].Type)
	assert.Equal(t, []string{"AAPL"}, storage.insights[0].Symbols)

	// Re-running the same cycle must not create a duplicate.
	require.NoError(t, gen.Run(context.Background()))
	assert.Len(t, storage.insights, 1)
}

func TestPriceMovementBelowThresholdIgnored(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{
			"AAPL": {Symbol: "AAPL", Price: 204.00, ChangePercent: 2.9},
		},
	}
	storage := holderOfAAPL()
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	assert.Empty(t, storage.insights)
}

func TestNegativeMovementTriggers(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{
			"AAPL": {Symbol: "AAPL", Price: 190.00, ChangePercent: -4.1},
		},
	}
	storage := holderOfAAPL()
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	require.Len(t, storage.insights, 1)
	assert.Contains(t, storage.insights[0].Content, "down 4.1%")
}

func TestUpcomingEarningsInsight(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
		earnings: map[string][]models.EarningsEvent{
			"AAPL": {{Symbol: "AAPL", Date: time.Now().Add(3 * 24 * time.Hour), EPSEstimate: 1.62}},
		},
	}
	storage := holderOfAAPL()
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	require.Len(t, storage.insights, 1)
	assert.Equal(t, models.InsightUpcomingEarnings, storage.insights[0].Type)
}

func TestEarningsOutsideWindowIgnored(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
		earnings: map[string][]models.EarningsEvent{
			"AAPL": {
				{Symbol: "AAPL", Date: time.Now().Add(20 * 24 * time.Hour)},
				{Symbol: "AAPL", Date: time.Now().Add(-5 * 24 * time.Hour), Reported: true},
			},
		},
	}
	storage := holderOfAAPL()
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	assert.Empty(t, storage.insights)
}

func TestWatchlistSuggestion(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
	}
	storage := holderOfAAPL()
	storage.queries["u1"] = map[string]int{"NVDA": 4, "AAPL": 6, "TSLA": 2}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	// AAPL is held and TSLA is under the threshold; only NVDA qualifies.
	require.Len(t, storage.insights, 1)
	assert.Equal(t, models.InsightWatchlistSuggest, storage.insights[0].Type)
	assert.Equal(t, "NVDA", storage.insights[0].DedupKey)
}

func TestStaleNoteInsight(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
	}
	storage := holderOfAAPL()
	storage.notes["u1"] = []*models.Note{
		{ID: "n1", UserID: "u1", Text: "review TSMC exposure", CreatedAt: time.Now().Add(-4 * 24 * time.Hour)},
		{ID: "n2", UserID: "u1", Text: "fresh note", CreatedAt: time.Now().Add(-1 * time.Hour)},
		{ID: "n3", UserID: "u1", Text: "old but done", Resolved: true, CreatedAt: time.Now().Add(-10 * 24 * time.Hour)},
	}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	require.Len(t, storage.insights, 1)
	assert.Equal(t, "n1", storage.insights[0].DedupKey)
}

func TestPredictionMarketSignal(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
		markets: []models.PredictionMarket{
			{Slug: "fed-cut-march", Question: "Will the Fed cut rates in March?", Volume: 250000, Probability: 0.62, Tags: []string{"rates"}},
			{Slug: "aapl-3t", Question: "Will AAPL reach $3T market cap?", Volume: 60000, Probability: 0.91},
			{Slug: "thin-market", Question: "Will AAPL split?", Volume: 10000, Probability: 0.05},
		},
	}
	storage := holderOfAAPL()
	storage.users[0].Interests = []string{"rates"}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	// fed-cut-march matches the interest with heavy volume; aapl-3t matches
	// the held symbol with an extreme probability; thin-market is too small.
	require.Len(t, storage.insights, 2)
	keys := []string{storage.insights[0].DedupKey, storage.insights[1].DedupKey}
	assert.ElementsMatch(t, []string{"fed-cut-march", "aapl-3t"}, keys)
}

func TestInterestNewsCapAndSentimentBar(t *testing.T) {
	articles := []models.NewsArticle{
		{Title: "chip surge 1", URL: "https://n/1", Sentiment: 0.7, HasSentiment: true},
		{Title: "chip surge 2", URL: "https://n/2", Sentiment: -0.5, HasSentiment: true},
		{Title: "mild story", URL: "https://n/3", Sentiment: 0.2, HasSentiment: true},
		{Title: "chip surge 3", URL: "https://n/4", Sentiment: 0.9, HasSentiment: true},
		{Title: "chip surge 4", URL: "https://n/5", Sentiment: 0.8, HasSentiment: true},
	}
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", ChangePercent: 0.1}},
		news:   map[string][]models.NewsArticle{"Technology": articles},
	}
	storage := holderOfAAPL()
	storage.users[0].Interests = []string{"Technology"}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	// Four articles clear the bar but the per-user cap is three.
	assert.Len(t, storage.insights, newsPerUserCap)
}

func TestInterestNewsSkipsSymbolsCoveredByMovement(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", Price: 210, ChangePercent: 5.0}},
		news: map[string][]models.NewsArticle{
			"Technology": {
				{Title: "AAPL jumps", URL: "https://n/a", Sentiment: 0.8, HasSentiment: true, Symbols: []string{"AAPL"}},
				{Title: "sector story", URL: "https://n/b", Sentiment: 0.8, HasSentiment: true},
			},
		},
	}
	storage := holderOfAAPL()
	storage.users[0].Interests = []string{"Technology"}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))

	var types []models.InsightType
	var keys []string
	for _, i := range storage.insights {
		types = append(types, i.Type)
		keys = append(keys, i.DedupKey)
	}
	assert.Contains(t, types, models.InsightPriceMovement)
	assert.Contains(t, keys, "https://n/b")
	assert.NotContains(t, keys, "https://n/a", "article whose only symbol already moved is skipped")
}

func TestSectorNewsPrefetchedOncePerInterest(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{
			"AAPL": {Symbol: "AAPL", ChangePercent: 0.1},
			"MSFT": {Symbol: "MSFT", ChangePercent: 0.1},
		},
		news: map[string][]models.NewsArticle{},
	}
	storage := holderOfAAPL()
	storage.users = append(storage.users, &models.UserProfile{
		UserID: "u2", ChatID: 200, Preference: models.DeliverDirect, Interests: []string{"Technology"},
	})
	storage.users[0].Interests = []string{"Technology"}
	storage.holdings["u2"] = []*models.Holding{{ID: "h2", UserID: "u2", Symbol: "MSFT", Quantity: 1}}
	gen, _ := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	assert.Equal(t, 1, data.sectorCalls["Technology"], "one fetch shared across users with the same interest")
}

func TestDispatchPendingMarksDelivered(t *testing.T) {
	data := &fakeData{
		quotes: map[string]*models.Quote{"AAPL": {Symbol: "AAPL", Price: 210, ChangePercent: 5.2}},
	}
	storage := holderOfAAPL()
	gen, messenger := newTestGenerator(data, storage)

	require.NoError(t, gen.Run(context.Background()))
	require.NoError(t, gen.DispatchPending(context.Background()))

	assert.Equal(t, 1, messenger.direct)
	assert.True(t, storage.insights[0].Delivered)

	// A second sweep has nothing left to send.
	require.NoError(t, gen.DispatchPending(context.Background()))
	assert.Equal(t, 1, messenger.direct)
}

func TestPurgeRemovesOldDeliveredOnly(t *testing.T) {
	storage := holderOfAAPL()
	old := time.Now().Add(-60 * 24 * time.Hour)
	storage.insights = []*models.ProactiveInsight{
		{ID: "i1", UserID: "u1", Type: models.InsightPriceMovement, Delivered: true, CreatedAt: old},
		{ID: "i2", UserID: "u1", Type: models.InsightPriceMovement, Delivered: false, CreatedAt: old},
		{ID: "i3", UserID: "u1", Type: models.InsightPriceMovement, Delivered: true, CreatedAt: time.Now()},
	}
	gen, _ := newTestGenerator(&fakeData{}, storage)

	removed, err := gen.Purge(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, storage.insights, 2)
}
