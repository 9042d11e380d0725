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

// AlertStorage implements the AlertStorage interface for Badger
type AlertStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAlertStorage creates a new AlertStorage instance
func NewAlertStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AlertStorage {
	return &AlertStorage{db: db, logger: logger}
}

func (s *AlertStorage) GetAlerts(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.Store().Find(&alerts, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get alerts: %w", err)
	}

	result := make([]*models.PriceAlert, len(alerts))
	for i := range alerts {
		result[i] = &alerts[i]
	}
	return result, nil
}

func (s *AlertStorage) ListActiveAlerts(ctx context.Context) ([]*models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.Store().Find(&alerts, badgerhold.Where("Active").Eq(true).Index("Active"))
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	result := make([]*models.PriceAlert, len(alerts))
	for i := range alerts {
		result[i] = &alerts[i]
	}
	return result, nil
}

func (s *AlertStorage) InsertAlert(ctx context.Context, alert *models.PriceAlert) error {
	if alert.UserID == "" || alert.Symbol == "" {
		return fmt.Errorf("user ID and symbol are required")
	}
	alert.Symbol = strings.ToUpper(alert.Symbol)

	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(alert.ID, alert); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

func (s *AlertStorage) UpdateAlert(ctx context.Context, alert *models.PriceAlert) error {
	if err := s.db.Store().Update(alert.ID, alert); err != nil {
		if err == badgerhold.ErrNotFound {
			return interfaces.ErrNotFound
		}
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return nil
}

func (s *AlertStorage) DeleteAlert(ctx context.Context, userID, alertID string) (bool, error) {
	var alert models.PriceAlert
	if err := s.db.Store().Get(alertID, &alert); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get alert: %w", err)
	}
	if alert.UserID != userID {
		return false, nil
	}

	if err := s.db.Store().Delete(alertID, &models.PriceAlert{}); err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}
	return true, nil
}
