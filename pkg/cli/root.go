// Package cli implements the retailmetrics command-line interface.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"retailmetrics/internal/app"
	"retailmetrics/internal/config"
	internaldb "retailmetrics/internal/db"
	"retailmetrics/internal/engine"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// env holds the databases and wired application a subcommand runs against.
type env struct {
	app     *app.App
	duckDB  *sql.DB
	writeDB *sql.DB
	readDB  *sql.DB
	cfg     *config.Config
}

func (e *env) close() {
	_ = e.readDB.Close()
	_ = e.writeDB.Close()
	_ = e.duckDB.Close()
}

// openEnv opens the metastore and warehouse the same way the server does.
func openEnv(ctx context.Context) (*env, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}

	duckDB, err := engine.Open(cfg.WarehousePath)
	if err != nil {
		return nil, err
	}
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		_ = duckDB.Close()
		return nil, err
	}
	if err := internaldb.RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		_ = duckDB.Close()
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		DuckDB:  duckDB,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		_ = duckDB.Close()
		return nil, err
	}

	return &env{app: application, duckDB: duckDB, writeDB: writeDB, readDB: readDB, cfg: cfg}, nil
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "retailmetrics",
		Short:         "Retail metrics reporting CLI",
		Long:          "Command-line interface for compiling and running metric report plans.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newExplainCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newTokenCmd())

	return rootCmd
}
