package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicelog/internal/models"
)

// ConversationRepository persists conversation records in the conversations table.
// Rows are keyed by owner (user_id) and record id; ids and created_at are assigned here.
type ConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewConversationRepository builds a repository over an opened database.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db, now: time.Now}
}

// Insert stores a new record and returns it with server-assigned fields.
func (r *ConversationRepository) Insert(ctx context.Context, ownerID string, content models.ConversationContent) (*models.Conversation, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode content: %w", err)
	}
	rec := &models.Conversation{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Content:   content,
		CreatedAt: r.now().UTC(),
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, string(payload), rec.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return rec, nil
}

// ListByOwner returns up to limit records for the owner, newest first.
func (r *ConversationRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Conversation, 0)
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one record or sql.ErrNoRows.
func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, created_at FROM conversations WHERE id = ?`, id,
	)
	rec, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return rec, nil
}

// Delete removes the record. A missing id is not an error.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		rec     models.Conversation
		payload string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &payload, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Content); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", rec.ID, err)
	}
	if rec.Content.Messages == nil {
		rec.Content.Messages = make([]models.Message, 0)
	}
	return &rec, nil
}
