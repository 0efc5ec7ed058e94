package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MessageRepository manages chat messages. Listings are ordered by creation
// time, then by insertion sequence.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListBySession(ctx context.Context, sessionID string, includeDeleted bool) ([]domain.Message, error)
	// UpdateContent rewrites a message that is not deleted.
	UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (bool, error)
	// SoftDelete flags a message deleted; it reports false when it already was.
	SoftDelete(ctx context.Context, id string, at time.Time) (bool, error)
	SoftDeleteBySession(ctx context.Context, sessionID string, at time.Time) (int64, error)
	MarkRead(ctx context.Context, sessionID, receiverID string) (int64, error)
	// CountUnread counts unread messages addressed to receiverID, optionally in one session.
	CountUnread(ctx context.Context, receiverID string, sessionID *string) (int, error)
}

type messageRepository struct {
	db DBTX
}

// NewMessageRepository builds repository.
func NewMessageRepository(db DBTX) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, session_id, sender_id, receiver_id, content, message_type, is_read, is_deleted,
               payload, created_at, edited_at, deleted_at`

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (session_id, sender_id, receiver_id, content, message_type, payload, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		msg.SessionID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.Type,
		msg.Payload,
		msg.CreatedAt,
	).Scan(&msg.ID)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	var msg domain.Message
	if err := scanMessage(r.db.QueryRow(ctx, query, id), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListBySession(ctx context.Context, sessionID string, includeDeleted bool) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE session_id=$1 AND ($2 OR NOT is_deleted)
        ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, sessionID, includeDeleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (r *messageRepository) UpdateContent(ctx context.Context, id, content string, editedAt time.Time) (bool, error) {
	const query = `
        UPDATE messages SET content=$1, edited_at=$2
        WHERE id=$3 AND NOT is_deleted`
	cmd, err := r.db.Exec(ctx, query, content, editedAt, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `
        UPDATE messages SET is_deleted=TRUE, deleted_at=$1
        WHERE id=$2 AND NOT is_deleted`
	cmd, err := r.db.Exec(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *messageRepository) SoftDeleteBySession(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	const query = `
        UPDATE messages SET is_deleted=TRUE, deleted_at=$1
        WHERE session_id=$2 AND NOT is_deleted`
	cmd, err := r.db.Exec(ctx, query, at, sessionID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) MarkRead(ctx context.Context, sessionID, receiverID string) (int64, error) {
	const query = `
        UPDATE messages SET is_read=TRUE
        WHERE session_id=$1 AND receiver_id=$2 AND NOT is_read AND NOT is_deleted`
	cmd, err := r.db.Exec(ctx, query, sessionID, receiverID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *messageRepository) CountUnread(ctx context.Context, receiverID string, sessionID *string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM messages m
        JOIN chat_sessions s ON s.id = m.session_id
        WHERE m.receiver_id=$1 AND NOT m.is_read AND NOT m.is_deleted
          AND s.status <> 'deleted'
          AND ($2::uuid IS NULL OR m.session_id=$2)`
	var count int
	if err := r.db.QueryRow(ctx, query, receiverID, sessionID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanMessage(row pgx.Row, msg *domain.Message) error {
	return row.Scan(
		&msg.ID,
		&msg.SessionID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.Type,
		&msg.IsRead,
		&msg.IsDeleted,
		&msg.Payload,
		&msg.CreatedAt,
		&msg.EditedAt,
		&msg.DeletedAt,
	)
}
