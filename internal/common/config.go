package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging"`
	Storage     StorageConfig   `toml:"storage"`
	Claude      ClaudeConfig    `toml:"claude"`
	Router      RouterConfig    `toml:"router"`
	Agent       AgentConfig     `toml:"agent"`
	Sources     SourcesConfig   `toml:"sources"`
	Cache       CacheConfig     `toml:"cache"`
	Notify      NotifyConfig    `toml:"notify"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Telegram    TelegramConfig  `toml:"telegram"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// ClaudeConfig holds Anthropic API settings and the model-tier table.
type ClaudeConfig struct {
	APIKey  string     `toml:"api_key"`
	Timeout string     `toml:"timeout"`
	Tiers   TierConfig `toml:"tiers"`
}

// TierConfig binds each routing tier to a model and its token budgets.
type TierConfig struct {
	Routine  TierEntry `toml:"routine"`
	Standard TierEntry `toml:"standard"`
	Deep     TierEntry `toml:"deep"`
}

type TierEntry struct {
	Model           string  `toml:"model"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	ThinkingBudget  int     `toml:"thinking_budget"` // extended reasoning tokens, 0 = disabled
	InputCostPer1K  float64 `toml:"input_cost_per_1k"`
	OutputCostPer1K float64 `toml:"output_cost_per_1k"`
}

type RouterConfig struct {
	DeepDailyBudget int `toml:"deep_daily_budget" validate:"min=0"`
}

type AgentConfig struct {
	MaxRounds int `toml:"max_rounds" validate:"min=1"`
}

// SourcesConfig carries per-provider credentials and rate ceilings.
type SourcesConfig struct {
	FMP          SourceConfig `toml:"fmp"`
	Finnhub      SourceConfig `toml:"finnhub"`
	Marketaux    SourceConfig `toml:"marketaux"`
	AlphaVantage SourceConfig `toml:"alphavantage"`
	Polymarket   SourceConfig `toml:"polymarket"`
	FRED         SourceConfig `toml:"fred"`
}

type SourceConfig struct {
	APIKey            string `toml:"api_key"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	BaseURL           string `toml:"base_url"` // override for testing
}

// CacheConfig holds per-domain TTLs as duration strings ("1m", "24h").
type CacheConfig struct {
	Quote        string `toml:"quote"`
	Profile      string `toml:"profile"`
	Fundamentals string `toml:"fundamentals"`
	News         string `toml:"news"`
	Technicals   string `toml:"technicals"`
	Macro        string `toml:"macro"`
	Markets      string `toml:"markets"`
}

type NotifyConfig struct {
	DedupWindow string `toml:"dedup_window"` // default "6h"
}

type SchedulerConfig struct {
	NewsInterval     string `toml:"news_interval"`     // default "3m"
	AlertInterval    string `toml:"alert_interval"`    // default "60s"
	AnalystInterval  string `toml:"analyst_interval"`  // default "30m"
	EarningsInterval string `toml:"earnings_interval"` // default "1h"
	MacroInterval    string `toml:"macro_interval"`    // default "1h"
	InsightInterval  string `toml:"insight_interval"`  // default "15m"
	SweepInterval    string `toml:"sweep_interval"`    // default "5m"
	MorningBriefing  string `toml:"morning_briefing"`  // cron, exchange-local
	EveningSummary   string `toml:"evening_summary"`   // cron, exchange-local
	ExchangeTimezone string `toml:"exchange_timezone"` // default "America/New_York"
	NewsSymbolCap    int    `toml:"news_symbol_cap"`   // watched symbols per news poll
}

type TelegramConfig struct {
	BotToken      string `toml:"bot_token"`
	ChannelChatID int64  `toml:"channel_chat_id"`
}

// DefaultConfig returns configuration defaults applied before any file or
// environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/advisor"},
		},
		Claude: ClaudeConfig{
			Timeout: "120s",
			Tiers: TierConfig{
				Routine: TierEntry{
					Model:           "claude-3-5-haiku-latest",
					MaxOutputTokens: 1024,
					InputCostPer1K:  0.0008,
					OutputCostPer1K: 0.004,
				},
				Standard: TierEntry{
					Model:           "claude-sonnet-4-20250514",
					MaxOutputTokens: 4096,
					InputCostPer1K:  0.003,
					OutputCostPer1K: 0.015,
				},
				Deep: TierEntry{
					Model:           "claude-opus-4-20250514",
					MaxOutputTokens: 8192,
					ThinkingBudget:  16384,
					InputCostPer1K:  0.015,
					OutputCostPer1K: 0.075,
				},
			},
		},
		Router: RouterConfig{DeepDailyBudget: 25},
		Agent:  AgentConfig{MaxRounds: 10},
		Sources: SourcesConfig{
			FMP:          SourceConfig{RequestsPerMinute: 60},
			Finnhub:      SourceConfig{RequestsPerMinute: 30},
			Marketaux:    SourceConfig{RequestsPerMinute: 15},
			AlphaVantage: SourceConfig{RequestsPerMinute: 5},
			Polymarket:   SourceConfig{RequestsPerMinute: 30},
			FRED:         SourceConfig{RequestsPerMinute: 30},
		},
		Cache: CacheConfig{
			Quote:        "1m",
			Profile:      "24h",
			Fundamentals: "6h",
			News:         "10m",
			Technicals:   "15m",
			Macro:        "1h",
			Markets:      "10m",
		},
		Notify: NotifyConfig{DedupWindow: "6h"},
		Scheduler: SchedulerConfig{
			NewsInterval:     "3m",
			AlertInterval:    "60s",
			AnalystInterval:  "30m",
			EarningsInterval: "1h",
			MacroInterval:    "1h",
			InsightInterval:  "15m",
			SweepInterval:    "5m",
			MorningBriefing:  "30 8 * * MON-FRI",
			EveningSummary:   "30 17 * * MON-FRI",
			ExchangeTimezone: "America/New_York",
			NewsSymbolCap:    20,
		},
	}
}

// LoadConfig loads configuration in priority order:
// defaults -> config files (later files override earlier) -> environment.
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides maps well-known environment variables onto the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("ADVISOR_FMP_API_KEY"); v != "" {
		cfg.Sources.FMP.APIKey = v
	}
	if v := os.Getenv("ADVISOR_FINNHUB_API_KEY"); v != "" {
		cfg.Sources.Finnhub.APIKey = v
	}
	if v := os.Getenv("ADVISOR_MARKETAUX_API_KEY"); v != "" {
		cfg.Sources.Marketaux.APIKey = v
	}
	if v := os.Getenv("ADVISOR_ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.Sources.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("ADVISOR_FRED_API_KEY"); v != "" {
		cfg.Sources.FRED.APIKey = v
	}
	if v := os.Getenv("ADVISOR_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("ADVISOR_TELEGRAM_CHANNEL_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChannelChatID = id
		}
	}
	if v := os.Getenv("ADVISOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ADVISOR_BADGER_PATH"); v != "" {
		cfg.Storage.Badger.Path = v
	}
}

// Validate checks structural validity plus the duration fields.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	durations := map[string]string{
		"claude.timeout":           c.Claude.Timeout,
		"notify.dedup_window":      c.Notify.DedupWindow,
		"scheduler.news_interval":  c.Scheduler.NewsInterval,
		"scheduler.alert_interval": c.Scheduler.AlertInterval,
		"cache.quote":              c.Cache.Quote,
		"cache.profile":            c.Cache.Profile,
	}
	for name, val := range durations {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("invalid duration for %s: %q", name, val)
		}
	}

	return nil
}

// Duration parses a duration string, returning fallback on empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
