package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketHistoryRepository stores the append-only audit trail of a ticket.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	// ListByTicket returns entries oldest first. An empty types slice means
	// every change type.
	ListByTicket(ctx context.Context, ticketID string, types []domain.TicketChangeType) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

const historyColumns = `id, ticket_id, changed_by_id, change_type, old_value, new_value, created_at`

func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_history (ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ChangedByID,
		entry.ChangeType,
		entry.OldValue,
		entry.NewValue,
	).Scan(&entry.ID, &entry.CreatedAt)
	return mapWriteError(err)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, types []domain.TicketChangeType) ([]domain.TicketHistory, error) {
	args := []any{ticketID}
	query := `SELECT ` + historyColumns + ` FROM ticket_history WHERE ticket_id=$1`
	if len(types) > 0 {
		query += ` AND ` + inClause("change_type", toStrings(types), &args)
	}
	query += ` ORDER BY created_at ASC, seq ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TicketHistory, error) {
		var entry domain.TicketHistory
		err := row.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ChangedByID,
			&entry.ChangeType,
			&entry.OldValue,
			&entry.NewValue,
			&entry.CreatedAt,
		)
		return entry, err
	})
}
