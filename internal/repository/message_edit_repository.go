package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MessageEditRepository keeps the previous content of edited messages.
type MessageEditRepository interface {
	Create(ctx context.Context, edit *domain.MessageEdit) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.MessageEdit, error)
}

type messageEditRepository struct {
	db DBTX
}

// NewMessageEditRepository builds repository.
func NewMessageEditRepository(db DBTX) MessageEditRepository {
	return &messageEditRepository{db: db}
}

func (r *messageEditRepository) Create(ctx context.Context, edit *domain.MessageEdit) error {
	const query = `
        INSERT INTO message_edits (message_id, prev_content, edited_at)
        VALUES ($1,$2,$3)
        RETURNING id`
	return r.db.QueryRow(ctx, query, edit.MessageID, edit.PrevContent, edit.EditedAt).Scan(&edit.ID)
}

func (r *messageEditRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.MessageEdit, error) {
	const query = `
        SELECT e.id, e.message_id, e.prev_content, e.edited_at
        FROM message_edits e
        JOIN messages m ON m.id = e.message_id
        WHERE m.session_id=$1
        ORDER BY e.edited_at ASC, e.seq ASC`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MessageEdit
	for rows.Next() {
		var edit domain.MessageEdit
		if err := rows.Scan(&edit.ID, &edit.MessageID, &edit.PrevContent, &edit.EditedAt); err != nil {
			return nil, err
		}
		result = append(result, edit)
	}
	return result, rows.Err()
}
