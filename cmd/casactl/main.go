// Command casactl is the operator CLI: schema migrations, bulk imports and
// ledger reports against the SQLite store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"casa/internal/cli"
	"casa/internal/config"
	applog "casa/internal/log"
)

var (
	dbPath   string
	logLevel string
	appCfg   *config.Config
	logger   *applog.Logger

	rootCmd = &cobra.Command{
		Use:               "casactl",
		Short:             "Manage the casa expense store",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: $SQLITE_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads .env and the environment config; flags win over both.
// Logs go to stderr so report output stays clean.
func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	appCfg = config.Load()
	if dbPath == "" {
		dbPath = appCfg.SQLiteDBPath
	}
	if logLevel == "" {
		logLevel = appCfg.LogLevel
	}

	logger = applog.New(applog.Config{
		Level:     applog.ParseLevel(logLevel),
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	return nil
}
