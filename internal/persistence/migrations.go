package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/migrations"
)

// MigrationStatus describes one migration as reported by `migrate status`.
type MigrationStatus struct {
	Version int64
	Source  string
	Applied bool
}

// RunMigrations applies every pending migration embedded in the binary.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := provider.Up(ctx)
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) && partial.Failed != nil {
			return fmt.Errorf("apply migration %s: %w", partial.Failed.Source.Path, partial.Err)
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	for _, res := range results {
		logger.Info("applied migration",
			zap.Int64("version", res.Source.Version),
			zap.String("file", res.Source.Path),
			zap.Duration("duration", res.Duration),
		)
	}
	logger.Info("migrations applied", zap.Int("count", len(results)))
	return nil
}

// MigrationsStatus lists every known migration and whether it is applied.
func MigrationsStatus(ctx context.Context, pool *pgxpool.Pool) ([]MigrationStatus, error) {
	if pool == nil {
		return nil, errors.New("postgres pool not configured")
	}

	provider, closeDB, err := newProvider(pool)
	if err != nil {
		return nil, err
	}
	defer closeDB()

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}

	out := make([]MigrationStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, MigrationStatus{
			Version: st.Source.Version,
			Source:  st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return out, nil
}

func newProvider(pool *pgxpool.Pool) (*goose.Provider, func(), error) {
	db := stdlib.OpenDBFromPool(pool)
	closeDB := func() { _ = db.Close() }

	var fsys fs.FS = migrations.FS
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("init migrations: %w", err)
	}
	return provider, closeDB, nil
}
