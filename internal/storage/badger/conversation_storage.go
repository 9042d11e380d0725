package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// ConversationStorage implements the ConversationStorage interface for
// Badger. Turns are append-only per (user, channel).
type ConversationStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewConversationStorage creates a new ConversationStorage instance
func NewConversationStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ConversationStorage {
	return &ConversationStorage{db: db, logger: logger}
}

func (s *ConversationStorage) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.UserID == "" || turn.ChannelID == "" {
		return fmt.Errorf("user ID and channel ID are required")
	}

	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(turn.ID, turn); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// GetTurns returns the most recent turns in chronological order, capped at
// limit when limit is positive.
func (s *ConversationStorage) GetTurns(ctx context.Context, userID, channelID string, limit int) ([]*models.ConversationTurn, error) {
	var turns []models.ConversationTurn
	err := s.db.Store().Find(&turns,
		badgerhold.Where("UserID").Eq(userID).Index("UserID").And("ChannelID").Eq(channelID))
	if err != nil {
		return nil, fmt.Errorf("failed to get turns: %w", err)
	}

	sort.Slice(turns, func(i, j int) bool {
		return turns[i].CreatedAt.Before(turns[j].CreatedAt)
	})
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	result := make([]*models.ConversationTurn, len(turns))
	for i := range turns {
		result[i] = &turns[i]
	}
	return result, nil
}

func (s *ConversationStorage) ClearTurns(ctx context.Context, userID, channelID string) error {
	err := s.db.Store().DeleteMatching(&models.ConversationTurn{},
		badgerhold.Where("UserID").Eq(userID).Index("UserID").And("ChannelID").Eq(channelID))
	if err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}
