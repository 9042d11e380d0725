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

// PortfolioStorage implements the PortfolioStorage interface for Badger
type PortfolioStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPortfolioStorage creates a new PortfolioStorage instance
func NewPortfolioStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PortfolioStorage {
	return &PortfolioStorage{db: db, logger: logger}
}

func (s *PortfolioStorage) GetHoldings(ctx context.Context, userID string) ([]*models.Holding, error) {
	var holdings []models.Holding
	err := s.db.Store().Find(&holdings, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}

	result := make([]*models.Holding, len(holdings))
	for i := range holdings {
		result[i] = &holdings[i]
	}
	return result, nil
}

// UpsertHolding replaces the existing (user, symbol) position when one
// exists so a holding is stored once per symbol.
func (s *PortfolioStorage) UpsertHolding(ctx context.Context, holding *models.Holding) error {
	if holding.UserID == "" || holding.Symbol == "" {
		return fmt.Errorf("user ID and symbol are required")
	}
	holding.Symbol = strings.ToUpper(holding.Symbol)

	var existing []models.Holding
	err := s.db.Store().Find(&existing,
		badgerhold.Where("UserID").Eq(holding.UserID).And("Symbol").Eq(holding.Symbol))
	if err != nil {
		return fmt.Errorf("failed to check holdings: %w", err)
	}

	if len(existing) > 0 {
		holding.ID = existing[0].ID
		if holding.AddedAt.IsZero() {
			holding.AddedAt = existing[0].AddedAt
		}
	}
	if holding.ID == "" {
		holding.ID = uuid.NewString()
	}
	if holding.AddedAt.IsZero() {
		holding.AddedAt = time.Now()
	}

	if err := s.db.Store().Upsert(holding.ID, holding); err != nil {
		return fmt.Errorf("failed to save holding: %w", err)
	}
	return nil
}

func (s *PortfolioStorage) RemoveHolding(ctx context.Context, userID, symbol string) (bool, error) {
	symbol = strings.ToUpper(symbol)
	var holdings []models.Holding
	err := s.db.Store().Find(&holdings, badgerhold.Where("UserID").Eq(userID).And("Symbol").Eq(symbol))
	if err != nil {
		return false, fmt.Errorf("failed to find holding: %w", err)
	}
	if len(holdings) == 0 {
		return false, nil
	}

	for i := range holdings {
		if err := s.db.Store().Delete(holdings[i].ID, &models.Holding{}); err != nil {
			return false, fmt.Errorf("failed to remove holding: %w", err)
		}
	}
	return true, nil
}
