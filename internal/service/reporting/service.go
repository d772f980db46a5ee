// Package reporting ties the query compiler to the warehouse executor and
// records execution history.
package reporting

import (
	"context"
	"log/slog"
	"time"

	"retailmetrics/internal/compiler"
	"retailmetrics/internal/domain"
	"retailmetrics/internal/engine"
)

// Service compiles and runs report query plans.
type Service struct {
	compiler         *compiler.Compiler
	executor         engine.Executor
	history          domain.ReportHistoryRepository
	logger           *slog.Logger
	maxDateRangeDays int
}

// NewService creates a new reporting Service. history may be nil; execution
// records are then skipped.
func NewService(c *compiler.Compiler, exec engine.Executor, history domain.ReportHistoryRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{compiler: c, executor: exec, history: history, logger: logger.With("component", "reporting")}
}

// SetMaxDateRangeDays configures a deployment-wide override of the
// date-range guardrail, applied when the caller does not supply one.
func (s *Service) SetMaxDateRangeDays(days int) {
	s.maxDateRangeDays = days
}

func (s *Service) applyDefaults(in domain.CompilerInput) domain.CompilerInput {
	if in.MaxDateRangeDays == 0 {
		in.MaxDateRangeDays = s.maxDateRangeDays
	}
	return in
}

// ReportResult is the full outcome of a report run: the compiled query, its
// result set, and any compile-time warnings.
type ReportResult struct {
	SQL        string
	Params     []interface{}
	Columns    []string
	Rows       [][]interface{}
	RowCount   int
	Warnings   []string
	DurationMs int64
}

// Explain compiles a plan without executing it.
func (s *Service) Explain(ctx context.Context, in domain.CompilerInput) (*domain.CompiledQuery, error) {
	return s.compiler.Compile(ctx, s.applyDefaults(in))
}

// Run compiles a plan, executes it against the warehouse, and records the
// outcome in the tenant's query history. History writes are best-effort;
// a failed insert never fails the report.
func (s *Service) Run(ctx context.Context, in domain.CompilerInput) (*ReportResult, error) {
	in = s.applyDefaults(in)
	compiled, err := s.compiler.Compile(ctx, in)
	if err != nil {
		s.record(ctx, in, "", err, 0, nil, 0)
		return nil, err
	}

	start := time.Now()
	res, err := s.executor.Execute(ctx, compiled.SQL, compiled.Params)
	durationMs := time.Since(start).Milliseconds()
	if err != nil {
		s.record(ctx, in, compiled.SQL, err, durationMs, nil, len(compiled.Warnings))
		return nil, err
	}

	rowCount := int64(res.RowCount)
	s.record(ctx, in, compiled.SQL, nil, durationMs, &rowCount, len(compiled.Warnings))

	return &ReportResult{
		SQL:        compiled.SQL,
		Params:     compiled.Params,
		Columns:    res.Columns,
		Rows:       res.Rows,
		RowCount:   res.RowCount,
		Warnings:   compiled.Warnings,
		DurationMs: durationMs,
	}, nil
}

// History returns a page of the tenant's past report executions.
func (s *Service) History(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.ReportQueryRecord, int64, error) {
	if s.history == nil {
		return nil, 0, nil
	}
	return s.history.ListByTenant(ctx, tenantID, page)
}

func (s *Service) record(ctx context.Context, in domain.CompilerInput, sqlText string, runErr error, durationMs int64, rowCount *int64, warningCount int) {
	if s.history == nil {
		return
	}

	rec := &domain.ReportQueryRecord{
		TenantID:     in.TenantID,
		SQL:          sqlText,
		Status:       "OK",
		WarningCount: warningCount,
	}
	if tc, ok := domain.TenantFromContext(ctx); ok {
		rec.PrincipalID = tc.PrincipalID
	}
	if durationMs > 0 {
		rec.DurationMs = &durationMs
	}
	rec.RowCount = rowCount
	if runErr != nil {
		rec.Status = "ERROR"
		msg := runErr.Error()
		rec.ErrorMessage = &msg
	}

	if err := s.history.Insert(ctx, rec); err != nil {
		s.logger.Warn("record report history", "tenant_id", in.TenantID, "error", err)
	}
}
