package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TechnicianRepository handles persistence for technician records.
type TechnicianRepository interface {
	// Ensure creates an empty technician record for the profile if none exists.
	Ensure(ctx context.Context, userID string) error
	GetByUserID(ctx context.Context, userID string) (*domain.Technician, error)
	Update(ctx context.Context, tech *domain.Technician) error
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	SetAvailability(ctx context.Context, userID string, available bool) error
	// RecordRating folds one rating into the running average atomically.
	RecordRating(ctx context.Context, userID string, rating int) error
	IncrementCompleted(ctx context.Context, userID string) error
}

// TechnicianFilter defines query params for the technician directory.
type TechnicianFilter struct {
	AvailableOnly bool
	Specialty     *string
	SearchTerm    *string
	Limit         int
	Offset        int
}

type technicianRepository struct {
	db DBTX
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(db DBTX) TechnicianRepository {
	return &technicianRepository{db: db}
}

const technicianColumns = `t.user_id, p.username, p.full_name, t.bio, t.specialties, t.is_available,
               t.average_rating, t.review_count, t.completed_tickets, t.experience_years,
               t.created_at, t.updated_at`

func (r *technicianRepository) Ensure(ctx context.Context, userID string) error {
	const query = `INSERT INTO technicians (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	_, err := r.db.Exec(ctx, query, userID)
	return err
}

func (r *technicianRepository) GetByUserID(ctx context.Context, userID string) (*domain.Technician, error) {
	query := `SELECT ` + technicianColumns + `
        FROM technicians t JOIN profiles p ON p.id = t.user_id
        WHERE t.user_id=$1 AND p.is_technician`
	var tech domain.Technician
	if err := scanTechnician(r.db.QueryRow(ctx, query, userID), &tech); err != nil {
		return nil, err
	}
	return &tech, nil
}

func (r *technicianRepository) Update(ctx context.Context, tech *domain.Technician) error {
	const query = `
        UPDATE technicians
        SET bio=$1, specialties=$2, experience_years=$3, is_available=$4, updated_at=NOW()
        WHERE user_id=$5`

	cmd, err := r.db.Exec(ctx, query,
		tech.Bio,
		tech.Specialties,
		tech.ExperienceYears,
		tech.IsAvailable,
		tech.UserID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	clauses := []string{"p.is_technician"}
	args := []any{}

	if filter.AvailableOnly {
		clauses = append(clauses, "t.is_available")
	}
	if filter.Specialty != nil && strings.TrimSpace(*filter.Specialty) != "" {
		args = append(args, strings.ToLower(strings.TrimSpace(*filter.Specialty)))
		clauses = append(clauses, fmt.Sprintf("$%d = ANY(t.specialties)", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.SearchTerm))+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(p.full_name) LIKE %s OR LOWER(p.username) LIKE %s OR LOWER(t.bio) LIKE %s)", p, p, p))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM technicians t JOIN profiles p ON p.id = t.user_id
        WHERE %s
        ORDER BY t.is_available DESC, t.average_rating DESC, p.username ASC
        LIMIT %d OFFSET %d`, technicianColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := scanTechnician(rows, &tech); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) SetAvailability(ctx context.Context, userID string, available bool) error {
	const query = `UPDATE technicians SET is_available=$1, updated_at=NOW() WHERE user_id=$2`
	cmd, err := r.db.Exec(ctx, query, available, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *technicianRepository) RecordRating(ctx context.Context, userID string, rating int) error {
	const query = `
        UPDATE technicians
        SET average_rating = (average_rating * review_count + $1) / (review_count + 1),
            review_count = review_count + 1,
            updated_at = NOW()
        WHERE user_id=$2`
	cmd, err := r.db.Exec(ctx, query, float64(rating), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *technicianRepository) IncrementCompleted(ctx context.Context, userID string) error {
	const query = `UPDATE technicians SET completed_tickets = completed_tickets + 1, updated_at=NOW() WHERE user_id=$1`
	cmd, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTechnician(row pgx.Row, tech *domain.Technician) error {
	return row.Scan(
		&tech.UserID,
		&tech.Username,
		&tech.FullName,
		&tech.Bio,
		&tech.Specialties,
		&tech.IsAvailable,
		&tech.AverageRating,
		&tech.ReviewCount,
		&tech.CompletedTickets,
		&tech.ExperienceYears,
		&tech.CreatedAt,
		&tech.UpdatedAt,
	)
}
