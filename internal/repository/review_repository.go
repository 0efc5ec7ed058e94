package repository

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ReviewRepository persists ticket reviews. A ticket has at most one review.
type ReviewRepository interface {
	// Create returns ErrConflict when the ticket already has a review.
	Create(ctx context.Context, review *domain.Review) error
	GetByTicket(ctx context.Context, ticketID string) (*domain.Review, error)
	ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.Review, error)
}

type reviewRepository struct {
	db DBTX
}

// NewReviewRepository builds repository.
func NewReviewRepository(db DBTX) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *domain.Review) error {
	const query = `
        INSERT INTO reviews (ticket_id, technician_id, user_id, rating, comment)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	err := r.db.QueryRow(ctx, query,
		review.TicketID,
		review.TechnicianID,
		review.UserID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	return mapWriteError(err)
}

func (r *reviewRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.Review, error) {
	const query = `
        SELECT id, ticket_id, technician_id, user_id, rating, comment, created_at
        FROM reviews WHERE ticket_id=$1`
	var review domain.Review
	if err := r.db.QueryRow(ctx, query, ticketID).Scan(
		&review.ID,
		&review.TicketID,
		&review.TechnicianID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListByTechnician(ctx context.Context, technicianID string, limit, offset int) ([]domain.Review, error) {
	const query = `
        SELECT id, ticket_id, technician_id, user_id, rating, comment, created_at
        FROM reviews WHERE technician_id=$1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	limit, offset = pageBounds(limit, offset)
	rows, err := r.db.Query(ctx, query, technicianID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Review
	for rows.Next() {
		var review domain.Review
		if err := rows.Scan(
			&review.ID,
			&review.TicketID,
			&review.TechnicianID,
			&review.UserID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, review)
	}
	return result, rows.Err()
}
