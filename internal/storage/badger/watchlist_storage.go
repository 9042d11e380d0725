package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// WatchlistStorage implements the WatchlistStorage interface for Badger
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{db: db, logger: logger}
}

func (s *WatchlistStorage) GetWatchlist(ctx context.Context, userID string) ([]*models.WatchlistEntry, error) {
	var entries []models.WatchlistEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}

	result := make([]*models.WatchlistEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// AddToWatchlist is idempotent per (user, symbol); re-adding a watched
// symbol leaves the original entry in place.
func (s *WatchlistStorage) AddToWatchlist(ctx context.Context, entry *models.WatchlistEntry) error {
	if entry.UserID == "" || entry.Symbol == "" {
		return fmt.Errorf("user ID and symbol are required")
	}
	entry.Symbol = strings.ToUpper(entry.Symbol)

	existing, err := s.db.Store().Count(&models.WatchlistEntry{},
		badgerhold.Where("UserID").Eq(entry.UserID).And("Symbol").Eq(entry.Symbol))
	if err != nil {
		return fmt.Errorf("failed to check watchlist: %w", err)
	}
	if existing > 0 {
		return nil
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}

	if err := s.db.Store().Insert(entry.ID, entry); err != nil {
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}
	return nil
}

func (s *WatchlistStorage) RemoveFromWatchlist(ctx context.Context, userID, symbol string) (bool, error) {
	symbol = strings.ToUpper(symbol)
	var entries []models.WatchlistEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("UserID").Eq(userID).And("Symbol").Eq(symbol))
	if err != nil {
		return false, fmt.Errorf("failed to find watchlist entry: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	for i := range entries {
		if err := s.db.Store().Delete(entries[i].ID, &models.WatchlistEntry{}); err != nil {
			return false, fmt.Errorf("failed to remove watchlist entry: %w", err)
		}
	}
	return true, nil
}

func (s *WatchlistStorage) UsersWatching(ctx context.Context, symbol string) ([]string, error) {
	symbol = strings.ToUpper(symbol)
	var entries []models.WatchlistEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("Symbol").Eq(symbol).Index("Symbol"))
	if err != nil {
		return nil, fmt.Errorf("failed to find watchers: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	var userIDs []string
	for i := range entries {
		if !seen[entries[i].UserID] {
			seen[entries[i].UserID] = true
			userIDs = append(userIDs, entries[i].UserID)
		}
	}
	return userIDs, nil
}

func (s *WatchlistStorage) AllWatchedSymbols(ctx context.Context) ([]string, error) {
	var entries []models.WatchlistEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Symbol").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list watched symbols: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	var symbols []string
	for i := range entries {
		if !seen[entries[i].Symbol] {
			seen[entries[i].Symbol] = true
			symbols = append(symbols, entries[i].Symbol)
		}
	}
	return symbols, nil
}
