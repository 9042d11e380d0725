package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// UserStorage implements the UserStorage interface for Badger
type UserStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(db *BadgerDB, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{db: db, logger: logger}
}

func (s *UserStorage) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := s.db.Store().Get(userID, &user); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (s *UserStorage) UpsertUser(ctx context.Context, user *models.UserProfile) error {
	if user.UserID == "" {
		return fmt.Errorf("user ID is required")
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if err := s.db.Store().Upsert(user.UserID, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *UserStorage) ListUsers(ctx context.Context) ([]*models.UserProfile, error) {
	var users []models.UserProfile
	if err := s.db.Store().Find(&users, badgerhold.Where("UserID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]*models.UserProfile, len(users))
	for i := range users {
		result[i] = &users[i]
	}
	return result, nil
}
