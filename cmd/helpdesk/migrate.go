package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func openPostgres(cmd *cobra.Command) (*persistence.Postgres, *zap.Logger, error) {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return nil, nil, err
	}
	pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	if pg.PoolHandle() == nil {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	}
	return pg, logger, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	pg, logger, err := openPostgres(cmd)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	cmd.Println("migrate up: ok")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	pg, _, err := openPostgres(cmd)
	if err != nil {
		return err
	}
	defer pg.Close()

	statuses, err := persistence.MigrationsStatus(cmd.Context(), pg.PoolHandle())
	if err != nil {
		return fmt.Errorf("migrate status: %w", err)
	}
	for _, st := range statuses {
		state := "pending"
		if st.Applied {
			state = "applied"
		}
		cmd.Printf("%05d  %-8s %s\n", st.Version, state, st.Source)
	}
	return nil
}
