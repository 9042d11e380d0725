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

// NoteStorage implements the NoteStorage interface for Badger
type NoteStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewNoteStorage creates a new NoteStorage instance
func NewNoteStorage(db *BadgerDB, logger arbor.ILogger) interfaces.NoteStorage {
	return &NoteStorage{db: db, logger: logger}
}

func (s *NoteStorage) GetNotes(ctx context.Context, userID string) ([]*models.Note, error) {
	var notes []models.Note
	err := s.db.Store().Find(&notes, badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}

	result := make([]*models.Note, len(notes))
	for i := range notes {
		result[i] = &notes[i]
	}
	return result, nil
}

func (s *NoteStorage) InsertNote(ctx context.Context, note *models.Note) error {
	if note.UserID == "" || note.Text == "" {
		return fmt.Errorf("user ID and text are required")
	}

	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}

	if err := s.db.Store().Insert(note.ID, note); err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (s *NoteStorage) ResolveNote(ctx context.Context, userID, noteID string) (bool, error) {
	var note models.Note
	if err := s.db.Store().Get(noteID, &note); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, fmt.Errorf("failed to get note: %w", err)
	}
	if note.UserID != userID || note.Resolved {
		return false, nil
	}

	note.Resolved = true
	if err := s.db.Store().Update(noteID, &note); err != nil {
		return false, fmt.Errorf("failed to resolve note: %w", err)
	}
	return true, nil
}
