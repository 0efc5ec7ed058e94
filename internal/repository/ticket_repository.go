package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	OwnerID      *string
	TechnicianID *string
	// ParticipantID matches tickets owned by or bound to the id.
	ParticipantID *string
	Statuses      []domain.TicketStatus
	Categories    []domain.TicketCategory
	Priorities    []domain.TicketPriority
	SearchTerm    *string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence. Status changes go through
// the conditional methods so concurrent writers cannot skip a state.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// GetForUpdate reads the ticket and holds its row lock until the enclosing
	// transaction ends. Review and reopen both take it first.
	GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// UpdateStatus moves the ticket to `to` only if its status is one of `from`.
	UpdateStatus(ctx context.Context, id string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error)
	// Reopen moves a resolved ticket back to open only if it carries no review.
	Reopen(ctx context.Context, id string) (bool, error)
	// BindTechnician assigns the technician when the ticket is unbound or already
	// bound to the same technician and its status is one of `from`.
	BindTechnician(ctx context.Context, id, technicianID string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, owner_id, technician_id, category, priority, status, title, description,
               created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (owner_id, technician_id, category, priority, status, title, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.OwnerID,
		ticket.TechnicianID,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.Title,
		ticket.Description,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	var ticket domain.Ticket
	if err := scanTicket(r.db.QueryRow(ctx, query, id), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if filter.ParticipantID != nil {
		args = append(args, *filter.ParticipantID)
		clauses = append(clauses, fmt.Sprintf("(owner_id=$%d OR technician_id=$%d)", len(args), len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}
	if len(filter.Categories) > 0 {
		clauses = append(clauses, inClause("category", filter.Categories, &args))
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, inClause("priority", filter.Priorities, &args))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC, id LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error) {
	const query = `
        UPDATE tickets
        SET status=$1,
            resolved_at = CASE WHEN $1 = 'resolved' THEN NOW() WHEN $1 = 'open' THEN NULL ELSE resolved_at END,
            updated_at=NOW()
        WHERE id=$2 AND status = ANY($3)`
	cmd, err := r.db.Exec(ctx, query, string(to), id, toStrings(from))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) Reopen(ctx context.Context, id string) (bool, error) {
	const query = `
        UPDATE tickets t
        SET status='open', resolved_at=NULL, updated_at=NOW()
        WHERE t.id=$1 AND t.status='resolved'
          AND NOT EXISTS (SELECT 1 FROM reviews rv WHERE rv.ticket_id = t.id)`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *ticketRepository) BindTechnician(ctx context.Context, id, technicianID string, from []domain.TicketStatus, to domain.TicketStatus) (bool, error) {
	const query = `
        UPDATE tickets
        SET technician_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3 AND (technician_id IS NULL OR technician_id=$1) AND status = ANY($4)`
	cmd, err := r.db.Exec(ctx, query, technicianID, string(to), id, toStrings(from))
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.TechnicianID,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.Title,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}
