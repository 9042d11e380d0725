package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// InsightStorage implements the InsightStorage interface for Badger
type InsightStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewInsightStorage creates a new InsightStorage instance
func NewInsightStorage(db *BadgerDB, logger arbor.ILogger) interfaces.InsightStorage {
	return &InsightStorage{db: db, logger: logger}
}

func (s *InsightStorage) InsertInsight(ctx context.Context, insight *models.ProactiveInsight) error {
	if insight.UserID == "" {
		return fmt.Errorf("user ID is required")
	}

	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	if insight.CreatedAt.IsZero() {
		insight.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(insight.ID, insight); err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

func (s *InsightStorage) ListUndelivered(ctx context.Context) ([]*models.ProactiveInsight, error) {
	var insights []models.ProactiveInsight
	err := s.db.Store().Find(&insights, badgerhold.Where("Delivered").Eq(false).Index("Delivered"))
	if err != nil {
		return nil, fmt.Errorf("failed to list undelivered insights: %w", err)
	}

	result := make([]*models.ProactiveInsight, len(insights))
	for i := range insights {
		result[i] = &insights[i]
	}
	return result, nil
}

func (s *InsightStorage) MarkDelivered(ctx context.Context, insightID string) error {
	var insight models.ProactiveInsight
	if err := s.db.Store().Get(insightID, &insight); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to get insight: %w", err)
	}

	now := time.Now()
	insight.Delivered = true
	insight.DeliveredAt = &now

	if err := s.db.Store().Update(insightID, &insight); err != nil {
		return fmt.Errorf("failed to mark insight delivered: %w", err)
	}
	return nil
}

func (s *InsightStorage) HasInsight(ctx context.Context, userID string, typ models.InsightType, dedupKey string, since time.Time) (bool, error) {
	count, err := s.db.Store().Count(&models.ProactiveInsight{},
		badgerhold.Where("UserID").Eq(userID).Index("UserID").
			And("Type").Eq(typ).
			And("DedupKey").Eq(dedupKey).
			And("CreatedAt").Ge(since))
	if err != nil {
		return false, fmt.Errorf("failed to check insights: %w", err)
	}
	return count > 0, nil
}

func (s *InsightStorage) PurgeDelivered(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.ProactiveInsight
	err := s.db.Store().Find(&stale,
		badgerhold.Where("Delivered").Eq(true).Index("Delivered").And("CreatedAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale insights: %w", err)
	}

	for i := range stale {
		if err := s.db.Store().Delete(stale[i].ID, &models.ProactiveInsight{}); err != nil {
			return i, fmt.Errorf("failed to purge insight: %w", err)
		}
	}
	return len(stale), nil
}
