package models

import (
	"fmt"
	"hash/fnv"
	"time"
)

// NotificationType categorizes notifications for dedup and formatting.
type NotificationType string

const (
	NotifyPriceAlert       NotificationType = "price_alert"
	NotifyPriceMovement    NotificationType = "price_movement"
	NotifyEarningsUpcoming NotificationType = "earnings_upcoming"
	NotifyEarningsSurprise NotificationType = "earnings_surprise"
	NotifyAnalystAction    NotificationType = "analyst_action"
	NotifyMacroUpdate      NotificationType = "macro_update"
	NotifyNews             NotificationType = "news"
	NotifyInsight          NotificationType = "insight"
	NotifyBriefing         NotificationType = "briefing"
)

// Urgency grades how prominently a notification should be delivered.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Notification is the single unit of outbound user communication. An empty
// TargetUserIDs with an empty Symbol means broadcast; an empty TargetUserIDs
// with a Symbol targets that symbol's watchers.
type Notification struct {
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Symbol        string           `json:"symbol,omitempty"`
	Data          map[string]any   `json:"data,omitempty"`
	TargetUserIDs []string         `json:"target_user_ids,omitempty"`
	Urgency       Urgency          `json:"urgency"`
}

// ContentHash returns the stable dedup hash over (type, symbol, title).
// Two occurrences of the same logical event collapse to the same hash even
// when their descriptions differ.
func (n *Notification) ContentHash() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", n.Type, n.Symbol, n.Title)
	return fmt.Sprintf("%016x", h.Sum64())
}

// NotificationRecord is the persisted post-dispatch log entry that seeds the
// dedup window.
type NotificationRecord struct {
	ID           string           `badgerhold:"key" json:"id"`
	ContentHash  string           `badgerholdIndex:"ContentHash" json:"content_hash"`
	Type         NotificationType `json:"type"`
	Symbol       string           `json:"symbol,omitempty"`
	Title        string           `json:"title"`
	Delivered    int              `json:"delivered"`
	DispatchedAt time.Time        `json:"dispatched_at"`
}
