package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"casa/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Create or update the SQLite schema to the latest version.

The server and worker migrate on startup as well; this command lets a
deploy run migrations ahead of rolling the processes.`,
		Args: cobra.NoArgs,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	slog.Info("Starting database migration", "database", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	status, err := storage.RunMigrations(dbPath)
	if err != nil {
		return err
	}
	if status.Dirty {
		return fmt.Errorf("database %s is dirty at version %d, fix it manually", dbPath, status.Version)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s at schema version %d\n", dbPath, status.Version)
	return nil
}
