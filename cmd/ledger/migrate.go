package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/backend"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Create or upgrade the transactions schema for the configured
DATA_BACKEND and exit. Running it again is a no-op.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	l := logger.With(log.FieldOperation, log.OpMigrate, log.FieldBackend, cfg.DataBackend)

	switch backend.BackendType(cfg.DataBackend) {
	case backend.SQLiteBackend:
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
		l.Info("Migrations applied", "db_path", cfg.SQLiteDBPath)
	case backend.PostgresBackend:
		if err := storage.RunPostgresMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		l.Info("Migrations applied")
	case backend.MemoryBackend:
		l.Info("Memory backend has no schema to migrate")
	default:
		return fmt.Errorf("unsupported backend: %s", cfg.DataBackend)
	}
	return nil
}
