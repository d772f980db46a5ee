// Package app provides application-level wiring and dependency injection
// for the reporting service following hexagonal architecture.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"retailmetrics/internal/compiler"
	"retailmetrics/internal/config"
	"retailmetrics/internal/db/repository"
	"retailmetrics/internal/engine"
	"retailmetrics/internal/registry"
	"retailmetrics/internal/service/reporting"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the DuckDB warehouse connection.
type Deps struct {
	Cfg     *config.Config
	DuckDB  *sql.DB
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Registry  *registry.Service
	Reporting *reporting.Service
	Compiler  *compiler.Compiler
}

// New wires all repositories and services from the provided deps. It also
// creates the warehouse reporting tables and loads seed definitions when a
// seed file is configured.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	metricRepo := repository.NewMetricDefinitionRepo(deps.WriteDB)
	dimensionRepo := repository.NewDimensionDefinitionRepo(deps.WriteDB)
	historyRepo := repository.NewReportHistoryRepo(deps.WriteDB)

	registrySvc := registry.NewService(metricRepo, dimensionRepo)
	comp := compiler.New(registrySvc)
	executor := engine.NewDuckDBExecutor(deps.DuckDB)
	reportingSvc := reporting.NewService(comp, executor, historyRepo, deps.Logger)
	if cfg.MaxDateRangeDays > 0 {
		reportingSvc.SetMaxDateRangeDays(cfg.MaxDateRangeDays)
	}

	if err := engine.EnsureReportingTables(ctx, deps.DuckDB); err != nil {
		return nil, fmt.Errorf("ensure reporting tables: %w", err)
	}

	if cfg.SeedFile != "" {
		if err := SeedDefinitions(ctx, registrySvc, cfg.SeedFile); err != nil {
			deps.Logger.Warn("seed definitions failed", "file", cfg.SeedFile, "error", err)
		}
	}

	return &App{
		Registry:  registrySvc,
		Reporting: reportingSvc,
		Compiler:  comp,
	}, nil
}
