package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/accounts/internal/auth/app"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending migrations to the configured database and exit.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	logger := app.NewLogger(cfg)

	cmd.Println("Connecting to database...")
	db, err := app.OpenStore(cmd.Context(), cfg, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("driver", cfg.DatabaseDriver).Wrap(err)
	}
	defer func() { _ = db.Close() }()

	cmd.Println("Running migrations...")
	if err := db.ApplyMigrations(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
