package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/advisor/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// UserStorage manages user profiles.
type UserStorage interface {
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)
	UpsertUser(ctx context.Context, user *models.UserProfile) error
	ListUsers(ctx context.Context) ([]*models.UserProfile, error)
}

// WatchlistStorage manages per-user watched symbols.
type WatchlistStorage interface {
	GetWatchlist(ctx context.Context, userID string) ([]*models.WatchlistEntry, error)
	AddToWatchlist(ctx context.Context, entry *models.WatchlistEntry) error
	RemoveFromWatchlist(ctx context.Context, userID, symbol string) (bool, error)
	// UsersWatching returns the ids of every user whose watchlist contains symbol.
	UsersWatching(ctx context.Context, symbol string) ([]string, error)
	// AllWatchedSymbols returns the distinct symbols watched by any user.
	AllWatchedSymbols(ctx context.Context) ([]string, error)
}

// PortfolioStorage manages per-user holdings.
type PortfolioStorage interface {
	GetHoldings(ctx context.Context, userID string) ([]*models.Holding, error)
	UpsertHolding(ctx context.Context, holding *models.Holding) error
	RemoveHolding(ctx context.Context, userID, symbol string) (bool, error)
}

// AlertStorage manages price alerts.
type AlertStorage interface {
	GetAlerts(ctx context.Context, userID string) ([]*models.PriceAlert, error)
	ListActiveAlerts(ctx context.Context) ([]*models.PriceAlert, error)
	InsertAlert(ctx context.Context, alert *models.PriceAlert) error
	UpdateAlert(ctx context.Context, alert *models.PriceAlert) error
	DeleteAlert(ctx context.Context, userID, alertID string) (bool, error)
}

// NoteStorage manages reminder notes.
type NoteStorage interface {
	GetNotes(ctx context.Context, userID string) ([]*models.Note, error)
	InsertNote(ctx context.Context, note *models.Note) error
	ResolveNote(ctx context.Context, userID, noteID string) (bool, error)
}

// ConversationStorage is append-only per (user, channel).
type ConversationStorage interface {
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	GetTurns(ctx context.Context, userID, channelID string, limit int) ([]*models.ConversationTurn, error)
	ClearTurns(ctx context.Context, userID, channelID string) error
}

// InsightStorage persists proactive insights across the
// undelivered -> delivered transition.
type InsightStorage interface {
	InsertInsight(ctx context.Context, insight *models.ProactiveInsight) error
	ListUndelivered(ctx context.Context) ([]*models.ProactiveInsight, error)
	MarkDelivered(ctx context.Context, insightID string) error
	// HasInsight reports whether any insight exists for (userID, type, dedupKey)
	// newer than since.
	HasInsight(ctx context.Context, userID string, typ models.InsightType, dedupKey string, since time.Time) (bool, error)
	// PurgeDelivered removes delivered insights older than cutoff, returning
	// the count removed.
	PurgeDelivered(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationLogStorage seeds the dedup window.
type NotificationLogStorage interface {
	LogNotification(ctx context.Context, record *models.NotificationRecord) error
	// SeenSince reports whether a record with contentHash was logged after since.
	SeenSince(ctx context.Context, contentHash string, since time.Time) (bool, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// QueryStatStorage records per-user symbol queries.
type QueryStatStorage interface {
	RecordQuery(ctx context.Context, userID, symbol string) error
	// QueryCounts returns symbol -> count for userID since the given time.
	QueryCounts(ctx context.Context, userID string, since time.Time) (map[string]int, error)
}

// StorageManager is the façade over all repositories.
type StorageManager interface {
	UserStorage() UserStorage
	WatchlistStorage() WatchlistStorage
	PortfolioStorage() PortfolioStorage
	AlertStorage() AlertStorage
	NoteStorage() NoteStorage
	ConversationStorage() ConversationStorage
	InsightStorage() InsightStorage
	NotificationLogStorage() NotificationLogStorage
	QueryStatStorage() QueryStatStorage
	Close() error
}
