package models

import "time"

// DeliveryPreference selects how a user receives notifications.
type DeliveryPreference string

const (
	DeliverDirect  DeliveryPreference = "direct"
	DeliverChannel DeliveryPreference = "channel"
)

// UserProfile is the per-user record. Interests are free-text sectors or
// themes matched against news and prediction markets.
type UserProfile struct {
	UserID     string             `badgerhold:"key" json:"user_id"`
	Name       string             `json:"name"`
	ChatID     int64              `json:"chat_id"` // direct-message channel id
	Preference DeliveryPreference `json:"preference"`
	Interests  []string           `json:"interests,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// WatchlistEntry is one watched symbol for one user.
type WatchlistEntry struct {
	ID      string    `badgerhold:"key" json:"id"`
	UserID  string    `badgerholdIndex:"UserID" json:"user_id"`
	Symbol  string    `badgerholdIndex:"Symbol" json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

// Holding is one portfolio position for one user.
type Holding struct {
	ID        string    `badgerhold:"key" json:"id"`
	UserID    string    `badgerholdIndex:"UserID" json:"user_id"`
	Symbol    string    `badgerholdIndex:"Symbol" json:"symbol"`
	Quantity  float64   `json:"quantity"`
	CostBasis float64   `json:"cost_basis"` // per share
	AddedAt   time.Time `json:"added_at"`
}

// AlertCondition is the trigger operator for a price alert.
type AlertCondition string

const (
	AlertAbove         AlertCondition = "above"
	AlertBelow         AlertCondition = "below"
	AlertChangePercent AlertCondition = "changePercent" // absolute-value comparison
)

// PriceAlert triggers at most once; it is deactivated on trigger.
type PriceAlert struct {
	ID          string         `badgerhold:"key" json:"id"`
	UserID      string         `badgerholdIndex:"UserID" json:"user_id"`
	Symbol      string         `badgerholdIndex:"Symbol" json:"symbol"`
	Condition   AlertCondition `json:"condition"`
	Threshold   float64        `json:"threshold"`
	Active      bool           `badgerholdIndex:"Active" json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
	TriggeredAt *time.Time     `json:"triggered_at,omitempty"`
}

// Note is a free-form reminder; unresolved notes older than a few days feed
// the stale-action-item insight.
type Note struct {
	ID        string    `badgerhold:"key" json:"id"`
	UserID    string    `badgerholdIndex:"UserID" json:"user_id"`
	Text      string    `json:"text"`
	Resolved  bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// SymbolQuery records one user query against a symbol; trailing counts feed
// the watchlist-suggestion insight.
type SymbolQuery struct {
	ID        string    `badgerhold:"key" json:"id"`
	UserID    string    `badgerholdIndex:"UserID" json:"user_id"`
	Symbol    string    `badgerholdIndex:"Symbol" json:"symbol"`
	QueriedAt time.Time `json:"queried_at"`
}
