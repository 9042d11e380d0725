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

// NotificationLogStorage implements the NotificationLogStorage interface
// for Badger. The log seeds the dedup window, so records are written even
// when a dispatch reached no recipients.
type NotificationLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNotificationLogStorage creates a new NotificationLogStorage instance
func NewNotificationLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NotificationLogStorage {
	return &NotificationLogStorage{db: db, logger: logger}
}

func (s *NotificationLogStorage) LogNotification(ctx context.Context, record *models.NotificationRecord) error {
	if record.ContentHash == "" {
		return fmt.Errorf("content hash is required")
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DispatchedAt.IsZero() {
		record.DispatchedAt = time.Now()
	}

	if err := s.db.Store().Insert(record.ID, record); err != nil {
		return fmt.Errorf("failed to log notification: %w", err)
	}
	return nil
}

func (s *NotificationLogStorage) SeenSince(ctx context.Context, contentHash string, since time.Time) (bool, error) {
	count, err := s.db.Store().Count(&models.NotificationRecord{},
		badgerhold.Where("ContentHash").Eq(contentHash).Index("ContentHash").
			And("DispatchedAt").Gt(since))
	if err != nil {
		return false, fmt.Errorf("failed to check notification log: %w", err)
	}
	return count > 0, nil
}

func (s *NotificationLogStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.NotificationRecord
	err := s.db.Store().Find(&stale, badgerhold.Where("DispatchedAt").Lt(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to find stale records: %w", err)
	}

	for i := range stale {
		if err := s.db.Store().Delete(stale[i].ID, &models.NotificationRecord{}); err != nil {
			return i, fmt.Errorf("failed to purge notification record: %w", err)
		}
	}
	return len(stale), nil
}
