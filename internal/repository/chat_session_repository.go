package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SessionFilter narrows session listings.
type SessionFilter struct {
	ParticipantID *string
	Type          *domain.ChatSessionType
	TicketID      *string
	Statuses      []domain.ChatSessionStatus
	Limit         int
	Offset        int
}

// ChatSessionRepository persists chat sessions. Storage enforces one
// non-deleted session per key.
type ChatSessionRepository interface {
	// Create returns ErrConflict when a non-deleted session already uses the key.
	Create(ctx context.Context, session *domain.ChatSession) error
	GetByID(ctx context.Context, id string) (*domain.ChatSession, error)
	// FindByKey returns the non-deleted session for key.
	FindByKey(ctx context.Context, key domain.SessionKey) (*domain.ChatSession, error)
	List(ctx context.Context, filter SessionFilter) ([]domain.ChatSession, error)
	// UpdateStatus is a compare-and-set on the session status.
	UpdateStatus(ctx context.Context, id string, from []domain.ChatSessionStatus, to domain.ChatSessionStatus) (bool, error)
	// Touch advances last_message_at; it never moves it backwards.
	Touch(ctx context.Context, id string, at time.Time) error
	// ListIdle returns active sessions with no message since before.
	ListIdle(ctx context.Context, before time.Time, limit int) ([]domain.ChatSession, error)
}

type chatSessionRepository struct {
	db DBTX
}

// NewChatSessionRepository builds repository.
func NewChatSessionRepository(db DBTX) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

const sessionColumns = `id, user_id, technician_id, ticket_id, session_type, status, last_message_at, created_at, updated_at`

func (r *chatSessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	const query = `
        INSERT INTO chat_sessions (user_id, technician_id, ticket_id, session_type, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		session.UserID,
		session.TechnicianID,
		session.TicketID,
		session.Type,
		session.Status,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	return mapWriteError(err)
}

func (r *chatSessionRepository) GetByID(ctx context.Context, id string) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id=$1`
	var session domain.ChatSession
	if err := scanSession(r.db.QueryRow(ctx, query, id), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepository) FindByKey(ctx context.Context, key domain.SessionKey) (*domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
        WHERE user_id=$1
          AND technician_id IS NOT DISTINCT FROM $2
          AND ticket_id IS NOT DISTINCT FROM $3
          AND session_type=$4
          AND status <> 'deleted'`
	var session domain.ChatSession
	if err := scanSession(r.db.QueryRow(ctx, query, key.UserID, key.TechnicianID, key.TicketID, key.Type), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *chatSessionRepository) List(ctx context.Context, filter SessionFilter) ([]domain.ChatSession, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ParticipantID != nil {
		args = append(args, *filter.ParticipantID)
		clauses = append(clauses, fmt.Sprintf("(user_id=$%d OR technician_id=$%d)", len(args), len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		clauses = append(clauses, fmt.Sprintf("session_type=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM chat_sessions WHERE %s
        ORDER BY COALESCE(last_message_at, created_at) DESC, id LIMIT %d OFFSET %d`,
		sessionColumns, strings.Join(clauses, " AND "), limit, offset)
	return r.query(ctx, query, args...)
}

func (r *chatSessionRepository) UpdateStatus(ctx context.Context, id string, from []domain.ChatSessionStatus, to domain.ChatSessionStatus) (bool, error) {
	const query = `
        UPDATE chat_sessions SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status = ANY($3)`
	cmd, err := r.db.Exec(ctx, query, string(to), id, toStrings(from))
	if err != nil {
		return false, mapWriteError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *chatSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE chat_sessions
        SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2), updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *chatSessionRepository) ListIdle(ctx context.Context, before time.Time, limit int) ([]domain.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions
        WHERE status='active' AND COALESCE(last_message_at, created_at) < $1
        ORDER BY COALESCE(last_message_at, created_at) ASC LIMIT $2`
	limit, _ = pageBounds(limit, 0)
	return r.query(ctx, query, before, limit)
}

func (r *chatSessionRepository) query(ctx context.Context, query string, args ...any) ([]domain.ChatSession, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatSession
	for rows.Next() {
		var session domain.ChatSession
		if err := scanSession(rows, &session); err != nil {
			return nil, err
		}
		result = append(result, session)
	}
	return result, rows.Err()
}

func scanSession(row pgx.Row, session *domain.ChatSession) error {
	return row.Scan(
		&session.ID,
		&session.UserID,
		&session.TechnicianID,
		&session.TicketID,
		&session.Type,
		&session.Status,
		&session.LastMessageAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
}
