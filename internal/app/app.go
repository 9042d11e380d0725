// Package app wires configuration, storage, collectors, and services into
// a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/agent"
	"github.com/ternarybob/advisor/internal/aggregator"
	"github.com/ternarybob/advisor/internal/cache"
	"github.com/ternarybob/advisor/internal/collectors/alphavantage"
	"github.com/ternarybob/advisor/internal/collectors/finnhub"
	"github.com/ternarybob/advisor/internal/collectors/fmp"
	"github.com/ternarybob/advisor/internal/collectors/fred"
	"github.com/ternarybob/advisor/internal/collectors/marketaux"
	"github.com/ternarybob/advisor/internal/collectors/polymarket"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/grades"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/insights"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/llm"
	"github.com/ternarybob/advisor/internal/messenger"
	"github.com/ternarybob/advisor/internal/notify"
	"github.com/ternarybob/advisor/internal/ratelimit"
	"github.com/ternarybob/advisor/internal/router"
	"github.com/ternarybob/advisor/internal/scheduler"
	badgerstorage "github.com/ternarybob/advisor/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Aggregator     *aggregator.Service
	GradeEngine    *grades.Engine
	LLMService     interfaces.LLMService
	ModelRouter    *router.ModelRouter
	AgentLoop      *agent.Loop
	Messenger      interfaces.Messenger
	Pipeline       *notify.Pipeline
	Insights       *insights.Generator
	Scheduler      *scheduler.Service
}

// New builds the full dependency graph from configuration. Components are
// constructed storage-first so everything downstream can persist.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badgerstorage.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	limiter := ratelimit.NewLimiter(map[string]int{
		fmp.Source:          config.Sources.FMP.RequestsPerMinute,
		finnhub.Source:      config.Sources.Finnhub.RequestsPerMinute,
		marketaux.Source:    config.Sources.Marketaux.RequestsPerMinute,
		alphavantage.Source: config.Sources.AlphaVantage.RequestsPerMinute,
		polymarket.Source:   config.Sources.Polymarket.RequestsPerMinute,
		fred.Source:         config.Sources.FRED.RequestsPerMinute,
	}, 60)
	breaker := httpclient.NewBreaker(time.Hour)
	httpClient := httpclient.NewClient(limiter, breaker, logger)

	fmpClient := fmp.NewClient(config.Sources.FMP.APIKey, httpClient, logger, baseURLOption(config.Sources.FMP.BaseURL, fmp.WithBaseURL)...)
	finnhubClient := finnhub.NewClient(config.Sources.Finnhub.APIKey, httpClient, logger, baseURLOption(config.Sources.Finnhub.BaseURL, finnhub.WithBaseURL)...)
	marketauxClient := marketaux.NewClient(config.Sources.Marketaux.APIKey, httpClient, logger, baseURLOption(config.Sources.Marketaux.BaseURL, marketaux.WithBaseURL)...)
	alphaClient := alphavantage.NewClient(config.Sources.AlphaVantage.APIKey, httpClient, logger, baseURLOption(config.Sources.AlphaVantage.BaseURL, alphavantage.WithBaseURL)...)
	polymarketClient := polymarket.NewClient(httpClient, logger, baseURLOption(config.Sources.Polymarket.BaseURL, polymarket.WithBaseURL)...)
	fredClient := fred.NewClient(config.Sources.FRED.APIKey, httpClient, logger, baseURLOption(config.Sources.FRED.BaseURL, fred.WithBaseURL)...)

	ttlCache := cache.New()
	agg := aggregator.NewService(
		fmpClient,
		finnhubClient,
		marketauxClient,
		finnhubClient,
		finnhubClient,
		alphaClient,
		polymarketClient,
		fredClient,
		ttlCache,
		aggregator.TTLsFromConfig(&config.Cache),
		logger,
	)

	engine := grades.NewEngine(agg, logger)

	llmService, err := llm.NewClaudeService(&config.Claude, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize LLM backend: %w", err)
	}

	modelRouter := router.New(config.Claude.Tiers, router.NewBudgetTracker(config.Router.DeepDailyBudget), logger)

	var sender interfaces.Messenger
	telegramClient, err := messenger.NewTelegramClient(&config.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Telegram not configured, notifications will be logged only")
		sender = &logMessenger{logger: logger}
	} else {
		sender = telegramClient
	}

	pipeline := notify.NewPipeline(storageManager, sender,
		common.Duration(config.Notify.DedupWindow, 6*time.Hour), logger)

	registry := agent.NewToolRegistry(agg, engine, storageManager, nil, logger)
	loop := agent.NewLoop(llmService, registry, modelRouter, storageManager, config.Agent.MaxRounds, logger)

	generator := insights.NewGenerator(agg, storageManager, pipeline, logger)

	sched := scheduler.NewService(&config.Scheduler, agg, ttlCache, storageManager,
		pipeline, generator, loop, logger)

	logger.Info().Msg("Application components initialized")

	return &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		Aggregator:     agg,
		GradeEngine:    engine,
		LLMService:     llmService,
		ModelRouter:    modelRouter,
		AgentLoop:      loop,
		Messenger:      sender,
		Pipeline:       pipeline,
		Insights:       generator,
		Scheduler:      sched,
	}, nil
}

// Start launches the scheduler.
func (a *App) Start(ctx context.Context) error {
	return a.Scheduler.Start(ctx)
}

// Close stops the scheduler and releases storage.
func (a *App) Close() {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Scheduler stop failed")
		}
	}
	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("LLM service close failed")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Storage close failed")
		}
	}
}

// baseURLOption turns an optional config override into a client option list.
func baseURLOption[T any](baseURL string, with func(string) T) []T {
	if baseURL == "" {
		return nil
	}
	return []T{with(baseURL)}
}

// logMessenger is the development fallback when no Telegram credentials are
// configured.
type logMessenger struct {
	logger arbor.ILogger
}

func (m *logMessenger) SendDirectMessage(ctx context.Context, chatID int64, text string) error {
	m.logger.Info().Int64("chat_id", chatID).Str("text", text).Msg("Notification (no messenger configured)")
	return nil
}

func (m *logMessenger) SendToChannel(ctx context.Context, text string) error {
	m.logger.Info().Str("text", text).Msg("Channel notification (no messenger configured)")
	return nil
}
