package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/leadcrawler/internal/storage/postgres"
)

// migrateFunc applies or rolls back the schema. Swapped in tests.
var migrateFunc = postgres.Migrate

// newMigrateCmd creates the 'migrate' subcommand.
func newMigrateCmd() *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Applies the embedded Postgres schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), down)
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back every migration instead of applying them")
	return cmd
}

func runMigrate(ctx context.Context, down bool) error {
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return err
	}
	dsn := rt.cfg.Storage.Postgres.DSN
	if dsn == "" {
		return errors.New("storage.postgres.dsn (or DATABASE_URL) is required")
	}
	if err := migrateFunc(dsn, down); err != nil {
		return err
	}
	direction := "up"
	if down {
		direction = "down"
	}
	rt.logger.Info("migrations applied", zap.String("direction", direction))
	return nil
}
