package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no row. It is pgx.ErrNoRows so
// errorutil.ToDomainError maps both storage backends the same way.
var ErrNotFound = pgx.ErrNoRows

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("repository: unique constraint violated")

const uniqueViolation = "23505"

const defaultListLimit = 20

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to the same connection or transaction.
type Repositories struct {
	Tickets      TicketRepository
	History      TicketHistoryRepository
	Reviews      ReviewRepository
	Assistance   AssistanceRequestRepository
	Sessions     ChatSessionRepository
	Messages     MessageRepository
	MessageEdits MessageEditRepository
	FAQ          FAQRepository
	Profiles     ProfileRepository
	Technicians  TechnicianRepository
}

// TxManager runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// NewRepositories binds every postgres repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets:      NewTicketRepository(db),
		History:      NewTicketHistoryRepository(db),
		Reviews:      NewReviewRepository(db),
		Assistance:   NewAssistanceRequestRepository(db),
		Sessions:     NewChatSessionRepository(db),
		Messages:     NewMessageRepository(db),
		MessageEdits: NewMessageEditRepository(db),
		FAQ:          NewFAQRepository(db),
		Profiles:     NewProfileRepository(db),
		Technicians:  NewTechnicianRepository(db),
	}
}

type pgTxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager returns a TxManager backed by pool.
func NewTxManager(pool *pgxpool.Pool) TxManager {
	return &pgTxManager{pool: pool}
}

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// mapWriteError turns unique violations into ErrConflict.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

// inClause appends values to args and returns "col IN ($n,...)".
func inClause[T any](column string, values []T, args *[]any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// toStrings converts a slice of string-kinded values for ANY($n) arguments.
func toStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
