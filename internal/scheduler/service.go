// Package scheduler drives the periodic polls and fixed-time jobs that feed
// the notification pipeline.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/agent"
	"github.com/ternarybob/advisor/internal/cache"
	"github.com/ternarybob/advisor/internal/collectors/fred"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/notify"
	"github.com/ternarybob/advisor/internal/router"
)

// macroSeries are the macro observations polled for change notifications.
// The ids live with the collector so the vocabulary has one home.
var macroSeries = []string{
	fred.SeriesFedFunds,
	fred.SeriesCPI,
	fred.SeriesUnemployment,
	fred.SeriesTenYear,
}

const (
	seenURLRetention   = 24 * time.Hour
	notificationLogTTL = 7 * 24 * time.Hour
	insightRetention   = 30 * 24 * time.Hour
	newsFetchLimit     = 25
)

// MarketData is the aggregator surface the polls read from.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetNews(ctx context.Context, symbols []string, limit int) []models.NewsArticle
	GetAnalystRatings(ctx context.Context, symbol string) *models.AnalystRatings
	GetEarningsSurprises(ctx context.Context, symbol string) []models.EarningsEvent
	GetMacro(ctx context.Context, seriesID string) *models.MacroPoint
}

// InsightRunner is the proactive-insight cycle invoked on its own interval.
type InsightRunner interface {
	Run(ctx context.Context) error
	DispatchPending(ctx context.Context) error
	Purge(ctx context.Context, retention time.Duration) (int, error)
}

// BriefingRunner produces briefing text through the orchestration loop.
type BriefingRunner interface {
	RunOnce(ctx context.Context, userID, prompt string, tier router.Tier) (string, error)
}

// jobEntry tracks one registered interval job with run metadata.
type jobEntry struct {
	name      string
	interval  time.Duration
	stagger   time.Duration
	handler   func(ctx context.Context) error
	lastRun   *time.Time
	lastError string
}

// JobStatus is a point-in-time snapshot of one job for status reporting.
type JobStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Service runs the interval polls, the cron briefings, and the maintenance
// sweeps. Start launches one goroutine per interval job with a staggered
// first tick so a cold start never bursts every poll at the shared rate
// limiters at once.
type Service struct {
	cfg        *common.SchedulerConfig
	data       MarketData
	cache      *cache.TTLCache
	storage    interfaces.StorageManager
	pipeline   *notify.Pipeline
	insights   InsightRunner
	briefer    BriefingRunner
	cron       *cron.Cron
	logger     arbor.ILogger
	jobMu      sync.Mutex
	jobs       []*jobEntry
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	newsMu     sync.Mutex
	seenURLs   map[string]time.Time
	newsStart  int
	analystMu  sync.Mutex
	analysts   map[string]analystSnapshot
	earningsMu sync.Mutex
	earnings   map[string]time.Time
	macroMu    sync.Mutex
	macros     map[string]models.MacroPoint
	now        func() time.Time
}

// analystSnapshot is the last-known consensus used for change diffing.
type analystSnapshot struct {
	strongBuy, buy, hold, sell, strongSell int
	targetPrice                            float64
}

func NewService(
	cfg *common.SchedulerConfig,
	data MarketData,
	ttlCache *cache.TTLCache,
	storage interfaces.StorageManager,
	pipeline *notify.Pipeline,
	insightRunner InsightRunner,
	briefer BriefingRunner,
	logger arbor.ILogger,
) *Service {
	return &Service{
		cfg:      cfg,
		data:     data,
		cache:    ttlCache,
		storage:  storage,
		pipeline: pipeline,
		insights: insightRunner,
		briefer:  briefer,
		logger:   logger,
		seenURLs: make(map[string]time.Time),
		analysts: make(map[string]analystSnapshot),
		earnings: make(map[string]time.Time),
		macros:   make(map[string]models.MacroPoint),
		now:      time.Now,
	}
}

// Start registers the interval jobs and the cron briefings and launches
// them. The briefing schedules run in the configured exchange timezone.
func (s *Service) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	loc, err := time.LoadLocation(s.cfg.ExchangeTimezone)
	if err != nil {
		return fmt.Errorf("invalid exchange timezone %q: %w", s.cfg.ExchangeTimezone, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.jobs = []*jobEntry{
		{name: "alerts", interval: common.Duration(s.cfg.AlertInterval, 60*time.Second), stagger: 2 * time.Second, handler: s.pollAlerts},
		{name: "news", interval: common.Duration(s.cfg.NewsInterval, 3*time.Minute), stagger: 10 * time.Second, handler: s.pollNews},
		{name: "insights", interval: common.Duration(s.cfg.InsightInterval, 15*time.Minute), stagger: 25 * time.Second, handler: s.runInsights},
		{name: "analysts", interval: common.Duration(s.cfg.AnalystInterval, 30*time.Minute), stagger: 45 * time.Second, handler: s.pollAnalysts},
		{name: "earnings", interval: common.Duration(s.cfg.EarningsInterval, time.Hour), stagger: 55 * time.Second, handler: s.pollEarnings},
		{name: "macro", interval: common.Duration(s.cfg.MacroInterval, time.Hour), stagger: 70 * time.Second, handler: s.pollMacro},
		{name: "sweep", interval: common.Duration(s.cfg.SweepInterval, 5*time.Minute), stagger: 90 * time.Second, handler: s.sweep},
	}

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(runCtx, job)
	}

	s.cron = cron.New(cron.WithLocation(loc))
	if _, err := s.cron.AddFunc(s.cfg.MorningBriefing, func() { s.briefAll(runCtx, "morning") }); err != nil {
		cancel()
		return fmt.Errorf("invalid morning briefing schedule: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.EveningSummary, func() { s.briefAll(runCtx, "evening") }); err != nil {
		cancel()
		return fmt.Errorf("invalid evening summary schedule: %w", err)
	}
	s.cron.Start()

	s.running = true
	s.logger.Info().
		Int("jobs", len(s.jobs)).
		Str("timezone", s.cfg.ExchangeTimezone).
		Msg("Scheduler started")
	return nil
}

// Stop halts the cron entries and waits for in-flight job runs to finish.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	s.cron.Stop()
	s.cancel()
	s.wg.Wait()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	return s.running
}

// Jobs returns a snapshot of registered jobs and their last outcomes.
func (s *Service) Jobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, JobStatus{
			Name:      job.name,
			Interval:  job.interval.String(),
			LastRun:   job.lastRun,
			LastError: job.lastError,
		})
	}
	return out
}

// runJob waits out the job's stagger, runs once, then ticks at its interval
// until the context is cancelled.
func (s *Service) runJob(ctx context.Context, job *jobEntry) {
	defer s.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(job.stagger):
	}

	s.execute(ctx, job)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

func (s *Service) execute(ctx context.Context, job *jobEntry) {
	err := job.handler(ctx)

	s.jobMu.Lock()
	ran := s.now()
	job.lastRun = &ran
	if err != nil {
		job.lastError = err.Error()
	} else {
		job.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("job", job.name).Msg("Scheduled job failed")
	}
}

// pollAlerts evaluates every active alert against a fresh quote. A
// triggered alert is deactivated before delivery so it fires at most once.
func (s *Service) pollAlerts(ctx context.Context) error {
	alerts, err := s.storage.AlertStorage().ListActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("list active alerts: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	quotes := make(map[string]*models.Quote)
	for _, alert := range alerts {
		quote, ok := quotes[alert.Symbol]
		if !ok {
			fetched, err := s.data.GetQuote(ctx, alert.Symbol)
			if err != nil {
				s.logger.Debug().Err(err).Str("symbol", alert.Symbol).Msg("Alert quote unavailable, skipping")
				quotes[alert.Symbol] = nil
				continue
			}
			quotes[alert.Symbol] = fetched
			quote = fetched
		}
		if quote == nil {
			continue
		}
		if !alertTriggered(alert, quote) {
			continue
		}

		triggered := s.now()
		alert.Active = false
		alert.TriggeredAt = &triggered
		if err := s.storage.AlertStorage().UpdateAlert(ctx, alert); err != nil {
			s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Failed to deactivate triggered alert")
			continue
		}

		n := &models.Notification{
			Type:          models.NotifyPriceAlert,
			Title:         fmt.Sprintf("%s %s %.2f", alert.Symbol, alert.Condition, alert.Threshold),
			Description:   alertDescription(alert, quote),
			Symbol:        alert.Symbol,
			TargetUserIDs: []string{alert.UserID},
			Urgency:       models.UrgencyHigh,
		}
		if _, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("Alert notification dispatch failed")
		}
	}
	return nil
}

func alertTriggered(alert *models.PriceAlert, quote *models.Quote) bool {
	switch alert.Condition {
	case models.AlertAbove:
		return quote.Price > alert.Threshold
	case models.AlertBelow:
		return quote.Price < alert.Threshold
	case models.AlertChangePercent:
		return math.Abs(quote.ChangePercent) >= alert.Threshold
	default:
		return false
	}
}

func alertDescription(alert *models.PriceAlert, quote *models.Quote) string {
	if alert.Condition == models.AlertChangePercent {
		return fmt.Sprintf("%s moved %.2f%% today (threshold %.2f%%), now at %.2f",
			alert.Symbol, quote.ChangePercent, alert.Threshold, quote.Price)
	}
	return fmt.Sprintf("%s is trading at %.2f, crossing your %s %.2f alert",
		alert.Symbol, quote.Price, alert.Condition, alert.Threshold)
}

// pollNews fetches headlines for a rotating capped subset of watched
// symbols and forwards the relevant, unseen ones to the pipeline. An
// article is relevant when it names a watched symbol or carries strong
// sentiment either way.
func (s *Service) pollNews(ctx context.Context) error {
	watched, err := s.storage.WatchlistStorage().AllWatchedSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list watched symbols: %w", err)
	}
	if len(watched) == 0 {
		return nil
	}
	sort.Strings(watched)

	watchedSet := make(map[string]bool, len(watched))
	for _, sym := range watched {
		watchedSet[strings.ToUpper(sym)] = true
	}

	subset := s.nextNewsSubset(watched)
	articles := s.data.GetNews(ctx, subset, newsFetchLimit)

	s.pruneSeenURLs()
	forwarded := 0
	for i := range articles {
		article := &articles[i]
		if article.URL == "" || s.markSeen(article.URL) {
			continue
		}

		matched := ""
		for _, sym := range article.Symbols {
			if watchedSet[strings.ToUpper(sym)] {
				matched = strings.ToUpper(sym)
				break
			}
		}
		if matched == "" && math.Abs(article.Sentiment) < 0.3 {
			continue
		}

		urgency := models.UrgencyLow
		if math.Abs(article.Sentiment) >= 0.6 {
			urgency = models.UrgencyMedium
		}
		n := &models.Notification{
			Type:        models.NotifyNews,
			Title:       article.Title,
			Description: fmt.Sprintf("%s (%s)", article.Description, article.Source),
			Symbol:      matched,
			Urgency:     urgency,
		}
		if _, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("url", article.URL).Msg("News notification dispatch failed")
			continue
		}
		forwarded++
	}

	s.logger.Debug().
		Int("fetched", len(articles)).
		Int("forwarded", forwarded).
		Str("symbols", strings.Join(subset, ",")).
		Msg("News poll complete")
	return nil
}

// nextNewsSubset returns up to NewsSymbolCap symbols, advancing a rotating
// window so every watched symbol is covered across successive polls.
func (s *Service) nextNewsSubset(watched []string) []string {
	limit := s.cfg.NewsSymbolCap
	if limit <= 0 || limit >= len(watched) {
		return watched
	}

	s.newsMu.Lock()
	defer s.newsMu.Unlock()

	start := s.newsStart % len(watched)
	subset := make([]string, 0, limit)
	for i := 0; i < limit; i++ {
		subset = append(subset, watched[(start+i)%len(watched)])
	}
	s.newsStart = (start + limit) % len(watched)
	return subset
}

// markSeen records the URL and reports whether it had been seen already.
func (s *Service) markSeen(url string) bool {
	s.newsMu.Lock()
	defer s.newsMu.Unlock()
	if _, ok := s.seenURLs[url]; ok {
		return true
	}
	s.seenURLs[url] = s.now()
	return false
}

func (s *Service) pruneSeenURLs() {
	cutoff := s.now().Add(-seenURLRetention)
	s.newsMu.Lock()
	defer s.newsMu.Unlock()
	for url, when := range s.seenURLs {
		if when.Before(cutoff) {
			delete(s.seenURLs, url)
		}
	}
}

// pollAnalysts diffs consensus ratings for watched symbols against the
// last-known snapshot. The first observation of a symbol only seeds the
// snapshot; unchanged data never re-notifies.
func (s *Service) pollAnalysts(ctx context.Context) error {
	watched, err := s.storage.WatchlistStorage().AllWatchedSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list watched symbols: %w", err)
	}

	for _, symbol := range watched {
		ratings := s.data.GetAnalystRatings(ctx, symbol)
		if ratings == nil {
			continue
		}
		current := analystSnapshot{
			strongBuy:   ratings.StrongBuy,
			buy:         ratings.Buy,
			hold:        ratings.Hold,
			sell:        ratings.Sell,
			strongSell:  ratings.StrongSell,
			targetPrice: ratings.TargetPrice,
		}

		s.analystMu.Lock()
		previous, known := s.analysts[symbol]
		s.analysts[symbol] = current
		s.analystMu.Unlock()

		if !known || previous == current {
			continue
		}

		n := &models.Notification{
			Type:   models.NotifyAnalystAction,
			Title:  fmt.Sprintf("Analyst consensus changed for %s", symbol),
			Symbol: symbol,
			Description: fmt.Sprintf("%d buy / %d hold / %d sell, target %.2f (was %d/%d/%d, target %.2f)",
				current.strongBuy+current.buy, current.hold, current.sell+current.strongSell, current.targetPrice,
				previous.strongBuy+previous.buy, previous.hold, previous.sell+previous.strongSell, previous.targetPrice),
			Urgency: models.UrgencyMedium,
		}
		if _, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Analyst notification dispatch failed")
		}
	}
	return nil
}

// pollEarnings watches each watched symbol for a newly reported quarter and
// notifies watchers of the surprise. The first observation per symbol only
// seeds the baseline.
func (s *Service) pollEarnings(ctx context.Context) error {
	watched, err := s.storage.WatchlistStorage().AllWatchedSymbols(ctx)
	if err != nil {
		return fmt.Errorf("list watched symbols: %w", err)
	}

	for _, symbol := range watched {
		latest, ok := newestReported(s.data.GetEarningsSurprises(ctx, symbol))
		if !ok {
			continue
		}

		s.earningsMu.Lock()
		previous, known := s.earnings[symbol]
		s.earnings[symbol] = latest.Date
		s.earningsMu.Unlock()

		if !known || !latest.Date.After(previous) {
			continue
		}

		direction := "beat"
		if latest.SurprisePct < 0 {
			direction = "missed"
		}
		urgency := models.UrgencyMedium
		if math.Abs(latest.SurprisePct) >= 10 {
			urgency = models.UrgencyHigh
		}

		n := &models.Notification{
			Type:   models.NotifyEarningsSurprise,
			Title:  fmt.Sprintf("%s %s earnings estimates by %.1f%%", symbol, direction, math.Abs(latest.SurprisePct)),
			Symbol: symbol,
			Description: fmt.Sprintf("EPS %.2f vs %.2f expected for the quarter ended %s",
				latest.EPSActual, latest.EPSEstimate, latest.Date.Format("2006-01-02")),
			Urgency: urgency,
		}
		if _, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Earnings notification dispatch failed")
		}
	}
	return nil
}

// newestReported picks the most recent reported event from a most-recent-first
// slice.
func newestReported(events []models.EarningsEvent) (models.EarningsEvent, bool) {
	for _, ev := range events {
		if ev.Reported {
			return ev, true
		}
	}
	return models.EarningsEvent{}, false
}

// pollMacro diffs the tracked macro series against their last-known
// observations and broadcasts new prints.
func (s *Service) pollMacro(ctx context.Context) error {
	for _, seriesID := range macroSeries {
		point := s.data.GetMacro(ctx, seriesID)
		if point == nil {
			continue
		}

		s.macroMu.Lock()
		previous, known := s.macros[seriesID]
		s.macros[seriesID] = *point
		s.macroMu.Unlock()

		if !known || (previous.Value == point.Value && previous.Date.Equal(point.Date)) {
			continue
		}

		n := &models.Notification{
			Type:  models.NotifyMacroUpdate,
			Title: fmt.Sprintf("%s updated: %.2f", seriesID, point.Value),
			Description: fmt.Sprintf("%s printed %.2f for %s (previous %.2f)",
				seriesID, point.Value, point.Date.Format("2006-01-02"), previous.Value),
			Urgency: models.UrgencyLow,
		}
		if _, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("series", seriesID).Msg("Macro notification dispatch failed")
		}
	}
	return nil
}

// runInsights runs one proactive-insight cycle and delivers whatever it
// produced.
func (s *Service) runInsights(ctx context.Context) error {
	if s.insights == nil {
		return nil
	}
	if err := s.insights.Run(ctx); err != nil {
		return fmt.Errorf("insight cycle: %w", err)
	}
	if err := s.insights.DispatchPending(ctx); err != nil {
		return fmt.Errorf("insight dispatch: %w", err)
	}
	return nil
}

// sweep evicts expired cache entries and prunes aged persistence.
func (s *Service) sweep(ctx context.Context) error {
	if s.cache != nil {
		if evicted := s.cache.Cleanup(); evicted > 0 {
			s.logger.Debug().Int("evicted", evicted).Msg("Cache sweep")
		}
	}
	if _, err := s.pipeline.PurgeLog(ctx, notificationLogTTL); err != nil {
		s.logger.Warn().Err(err).Msg("Notification log purge failed")
	}
	if s.insights != nil {
		if _, err := s.insights.Purge(ctx, insightRetention); err != nil {
			s.logger.Warn().Err(err).Msg("Insight purge failed")
		}
	}
	return nil
}

// briefAll generates a briefing for every user who holds or watches
// anything, through the orchestration loop at the routine tier.
func (s *Service) briefAll(ctx context.Context, edition string) {
	if s.briefer == nil {
		return
	}

	users, err := s.storage.UserStorage().ListUsers(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Briefing user listing failed")
		return
	}

	delivered := 0
	for _, user := range users {
		symbols := s.briefingSymbols(ctx, user.UserID)
		if len(symbols) == 0 {
			continue
		}

		prompt := briefingPrompt(edition, symbols)
		text, err := s.briefer.RunOnce(ctx, user.UserID, prompt, router.TierRoutine)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.UserID).Msg("Briefing generation failed")
			continue
		}

		n := &models.Notification{
			Type:          models.NotifyBriefing,
			Title:         briefingTitle(edition, s.now()),
			Description:   text,
			TargetUserIDs: []string{user.UserID},
			Urgency:       models.UrgencyLow,
		}
		if count, err := s.pipeline.Dispatch(ctx, n); err != nil {
			s.logger.Warn().Err(err).Str("user_id", user.UserID).Msg("Briefing dispatch failed")
		} else {
			delivered += count
		}
	}

	s.logger.Info().
		Str("edition", edition).
		Int("delivered", delivered).
		Msg("Briefings dispatched")
}

func (s *Service) briefingSymbols(ctx context.Context, userID string) []string {
	set := make(map[string]bool)
	if holdings, err := s.storage.PortfolioStorage().GetHoldings(ctx, userID); err == nil {
		for _, h := range holdings {
			set[strings.ToUpper(h.Symbol)] = true
		}
	}
	if entries, err := s.storage.WatchlistStorage().GetWatchlist(ctx, userID); err == nil {
		for _, e := range entries {
			set[strings.ToUpper(e.Symbol)] = true
		}
	}

	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

func briefingPrompt(edition string, symbols []string) string {
	joined := strings.Join(symbols, ", ")
	if edition == "morning" {
		return fmt.Sprintf("Write a concise morning briefing for a user tracking %s: "+
			"current quotes, notable overnight news, and anything to watch today.", joined)
	}
	return fmt.Sprintf("Write a concise end-of-day summary for a user tracking %s: "+
		"closing moves, notable news from the session, and anything ahead.", joined)
}

func briefingTitle(edition string, at time.Time) string {
	if edition == "morning" {
		return "Morning briefing " + at.Format("Jan 2")
	}
	return "Evening summary " + at.Format("Jan 2")
}

var _ BriefingRunner = (*agent.Loop)(nil)
