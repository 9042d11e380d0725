package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db              *BadgerDB
	user            interfaces.UserStorage
	watchlist       interfaces.WatchlistStorage
	portfolio       interfaces.PortfolioStorage
	alert           interfaces.AlertStorage
	note            interfaces.NoteStorage
	conversation    interfaces.ConversationStorage
	insight         interfaces.InsightStorage
	notificationLog interfaces.NotificationLogStorage
	queryStat       interfaces.QueryStatStorage
	logger          arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:              db,
		user:            NewUserStorage(db, logger),
		watchlist:       NewWatchlistStorage(db, logger),
		portfolio:       NewPortfolioStorage(db, logger),
		alert:           NewAlertStorage(db, logger),
		note:            NewNoteStorage(db, logger),
		conversation:    NewConversationStorage(db, logger),
		insight:         NewInsightStorage(db, logger),
		notificationLog: NewNotificationLogStorage(db, logger),
		queryStat:       NewQueryStatStorage(db, logger),
		logger:          logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

func (m *Manager) UserStorage() interfaces.UserStorage                 { return m.user }
func (m *Manager) WatchlistStorage() interfaces.WatchlistStorage       { return m.watchlist }
func (m *Manager) PortfolioStorage() interfaces.PortfolioStorage       { return m.portfolio }
func (m *Manager) AlertStorage() interfaces.AlertStorage               { return m.alert }
func (m *Manager) NoteStorage() interfaces.NoteStorage                 { return m.note }
func (m *Manager) ConversationStorage() interfaces.ConversationStorage { return m.conversation }
func (m *Manager) InsightStorage() interfaces.InsightStorage           { return m.insight }
func (m *Manager) NotificationLogStorage() interfaces.NotificationLogStorage {
	return m.notificationLog
}
func (m *Manager) QueryStatStorage() interfaces.QueryStatStorage { return m.queryStat }

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
