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

// QueryStatStorage implements the QueryStatStorage interface for Badger
type QueryStatStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewQueryStatStorage creates a new QueryStatStorage instance
func NewQueryStatStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QueryStatStorage {
	return &QueryStatStorage{db: db, logger: logger}
}

func (s *QueryStatStorage) RecordQuery(ctx context.Context, userID, symbol string) error {
	if userID == "" || symbol == "" {
		return fmt.Errorf("user ID and symbol are required")
	}

	query := &models.SymbolQuery{
		ID:        uuid.NewString(),
		UserID:    userID,
		Symbol:    strings.ToUpper(symbol),
		QueriedAt: time.Now(),
	}
	if err := s.db.Store().Insert(query.ID, query); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}
	return nil
}

func (s *QueryStatStorage) QueryCounts(ctx context.Context, userID string, since time.Time) (map[string]int, error) {
	var queries []models.SymbolQuery
	err := s.db.Store().Find(&queries,
		badgerhold.Where("UserID").Eq(userID).Index("UserID").And("QueriedAt").Ge(since))
	if err != nil {
		return nil, fmt.Errorf("failed to count queries: %w", err)
	}

	counts := make(map[string]int, len(queries))
	for i := range queries {
		counts[queries[i].Symbol]++
	}
	return counts, nil
}
