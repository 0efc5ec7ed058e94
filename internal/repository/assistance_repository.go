package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AssistanceFilter narrows assistance request listings.
type AssistanceFilter struct {
	UserID       *string
	TechnicianID *string
	TicketID     *string
	Statuses     []domain.AssistanceRequestStatus
	Limit        int
	Offset       int
}

// AssistanceRequestRepository persists assistance requests. Storage allows at
// most one pending or accepted request per (ticket, technician).
type AssistanceRequestRepository interface {
	// Create returns ErrConflict when an active request already binds the pair.
	Create(ctx context.Context, req *domain.AssistanceRequest) error
	GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error)
	List(ctx context.Context, filter AssistanceFilter) ([]domain.AssistanceRequest, error)
	// UpdateStatus is a compare-and-set on the request status.
	UpdateStatus(ctx context.Context, id string, from, to domain.AssistanceRequestStatus) (bool, error)
	// RejectPendingSiblings rejects every other pending request for the ticket.
	RejectPendingSiblings(ctx context.Context, ticketID, exceptID string) (int64, error)
	// CompleteAccepted marks the accepted request binding ticket and technician completed.
	CompleteAccepted(ctx context.Context, ticketID, technicianID string) (int64, error)
}

type assistanceRequestRepository struct {
	db DBTX
}

// NewAssistanceRequestRepository builds repository.
func NewAssistanceRequestRepository(db DBTX) AssistanceRequestRepository {
	return &assistanceRequestRepository{db: db}
}

const assistanceColumns = `id, user_id, technician_id, ticket_id, title, description, priority, status, created_at, updated_at`

func (r *assistanceRequestRepository) Create(ctx context.Context, req *domain.AssistanceRequest) error {
	const query = `
        INSERT INTO assistance_requests (user_id, technician_id, ticket_id, title, description, priority, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		req.UserID,
		req.TechnicianID,
		req.TicketID,
		req.Title,
		req.Description,
		req.Priority,
		req.Status,
	).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	return mapWriteError(err)
}

func (r *assistanceRequestRepository) GetByID(ctx context.Context, id string) (*domain.AssistanceRequest, error) {
	query := `SELECT ` + assistanceColumns + ` FROM assistance_requests WHERE id=$1`
	var req domain.AssistanceRequest
	if err := scanAssistance(r.db.QueryRow(ctx, query, id), &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *assistanceRequestRepository) List(ctx context.Context, filter AssistanceFilter) ([]domain.AssistanceRequest, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		clauses = append(clauses, fmt.Sprintf("ticket_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM assistance_requests WHERE %s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		assistanceColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssistanceRequest
	for rows.Next() {
		var req domain.AssistanceRequest
		if err := scanAssistance(rows, &req); err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, rows.Err()
}

func (r *assistanceRequestRepository) UpdateStatus(ctx context.Context, id string, from, to domain.AssistanceRequestStatus) (bool, error) {
	const query = `
        UPDATE assistance_requests SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3`
	cmd, err := r.db.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, mapWriteError(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *assistanceRequestRepository) RejectPendingSiblings(ctx context.Context, ticketID, exceptID string) (int64, error) {
	const query = `
        UPDATE assistance_requests SET status='rejected', updated_at=NOW()
        WHERE ticket_id=$1 AND id<>$2 AND status='pending'`
	cmd, err := r.db.Exec(ctx, query, ticketID, exceptID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *assistanceRequestRepository) CompleteAccepted(ctx context.Context, ticketID, technicianID string) (int64, error) {
	const query = `
        UPDATE assistance_requests SET status='completed', updated_at=NOW()
        WHERE ticket_id=$1 AND technician_id=$2 AND status='accepted'`
	cmd, err := r.db.Exec(ctx, query, ticketID, technicianID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanAssistance(row pgx.Row, req *domain.AssistanceRequest) error {
	return row.Scan(
		&req.ID,
		&req.UserID,
		&req.TechnicianID,
		&req.TicketID,
		&req.Title,
		&req.Description,
		&req.Priority,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
}
