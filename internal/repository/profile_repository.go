package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// ProfileRepository defines persistence access for user profiles.
type ProfileRepository interface {
	// Create keeps a preset ID (the identity provider's subject) and returns
	// ErrConflict on a duplicate id, username or email.
	Create(ctx context.Context, profile *domain.Profile) error
	Update(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	SetTechnicianFlag(ctx context.Context, id string, isTechnician bool) error
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

const profileColumns = `id, username, email, full_name, is_technician, is_admin, created_at, updated_at`

func (r *profileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, username, email, full_name, is_technician, is_admin)
        VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		profile.ID,
		profile.Username,
		profile.Email,
		profile.FullName,
		profile.IsTechnician,
		profile.IsAdmin,
	).Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	return mapWriteError(err)
}

func (r *profileRepository) Update(ctx context.Context, profile *domain.Profile) error {
	const query = `
        UPDATE profiles SET username=$1, email=$2, full_name=$3, updated_at=NOW()
        WHERE id=$4`

	cmd, err := r.db.Exec(ctx, query,
		profile.Username,
		profile.Email,
		profile.FullName,
		profile.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *profileRepository) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *profileRepository) SetTechnicianFlag(ctx context.Context, id string, isTechnician bool) error {
	const query = `UPDATE profiles SET is_technician=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, isTechnician, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Profile, error) {
	var profile domain.Profile
	if err := scanProfile(r.db.QueryRow(ctx, query, arg), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func scanProfile(row pgx.Row, profile *domain.Profile) error {
	return row.Scan(
		&profile.ID,
		&profile.Username,
		&profile.Email,
		&profile.FullName,
		&profile.IsTechnician,
		&profile.IsAdmin,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
}
