// Package conversation saves finished voice-session transcripts as structured records.
package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"voicelog/internal/models"
	"voicelog/internal/transcript"
)

// DefaultListLimit caps ListByOwner when the caller passes no limit.
const DefaultListLimit = 50

var (
	ErrNotFound    = errors.New("conversation not found")
	ErrPersistence = errors.New("conversation persistence failed")
)

// Repository is the persistence collaborator. Get reports a missing id as sql.ErrNoRows.
type Repository interface {
	Insert(ctx context.Context, ownerID string, content models.ConversationContent) (*models.Conversation, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Conversation, error)
	Get(ctx context.Context, id string) (*models.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// Store turns transcripts into records and passes every call straight to the repository.
type Store struct {
	repo Repository
	now  func() time.Time
}

// NewStore builds a Store over repo.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Save parses text and inserts the resulting record for ownerID.
// debugLogs is accepted for callers that collect session diagnostics; it is not stored.
func (s *Store) Save(ctx context.Context, ownerID, text string, debugLogs []string) (*models.Conversation, error) {
	content := models.ConversationContent{
		Text:     text,
		Messages: transcript.Parse(text),
		Metadata: models.ConversationMetadata{
			SavedAt:      s.now().UTC(),
			MessageCount: transcript.Count(text),
		},
	}
	rec, err := s.repo.Insert(ctx, ownerID, content)
	if err != nil {
		log.Printf("conversation save: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return rec, nil
}

// ListByOwner returns the owner's records newest first. limit <= 0 means DefaultListLimit.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Conversation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	list, err := s.repo.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		log.Printf("conversation list: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if list == nil {
		list = make([]*models.Conversation, 0)
	}
	return list, nil
}

// GetByID returns one record or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		log.Printf("conversation get: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec, nil
}

// DeleteByID removes one record.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		log.Printf("conversation delete: %v", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}
