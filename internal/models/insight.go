package models

import "time"

// InsightType identifies the proactive-insight category.
type InsightType string

const (
	InsightPriceMovement    InsightType = "price_movement"
	InsightUpcomingEarnings InsightType = "upcoming_earnings"
	InsightWatchlistSuggest InsightType = "watchlist_suggestion"
	InsightStaleNote        InsightType = "stale_action_item"
	InsightPredictionMarket InsightType = "prediction_market"
	InsightInterestNews     InsightType = "interest_news"
)

// ProactiveInsight is a synthesized observation for one user. It transitions
// undelivered -> delivered exactly once and is garbage-collected after a
// retention window once delivered.
type ProactiveInsight struct {
	ID          string      `badgerhold:"key" json:"id"`
	UserID      string      `badgerholdIndex:"UserID" json:"user_id"`
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	Symbols     []string    `json:"symbols,omitempty"`
	DedupKey    string      `json:"dedup_key"` // per-category key: symbol, market slug, article URL, note id
	Delivered   bool        `badgerholdIndex:"Delivered" json:"delivered"`
	CreatedAt   time.Time   `json:"created_at"`
	DeliveredAt *time.Time  `json:"delivered_at,omitempty"`
}
