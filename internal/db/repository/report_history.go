package repository

import (
	"context"
	"database/sql"
	"time"

	"retailmetrics/internal/domain"
)

// Compile-time check.
var _ domain.ReportHistoryRepository = (*ReportHistoryRepo)(nil)

// ReportHistoryRepo implements ReportHistoryRepository using SQLite.
type ReportHistoryRepo struct {
	db *sql.DB
}

// NewReportHistoryRepo creates a new ReportHistoryRepo.
func NewReportHistoryRepo(db *sql.DB) *ReportHistoryRepo {
	return &ReportHistoryRepo{db: db}
}

// Insert records one report query execution.
func (r *ReportHistoryRepo) Insert(ctx context.Context, rec *domain.ReportQueryRecord) error {
	if rec.ID == "" {
		rec.ID = domain.NewID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO report_query_history
			(id, tenant_id, principal_id, sql_text, status, error_message, row_count, duration_ms, warning_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.TenantID, rec.PrincipalID, rec.SQL, rec.Status,
		rec.ErrorMessage, rec.RowCount, rec.DurationMs, rec.WarningCount)
	return mapDBError(err)
}

// ListByTenant returns a page of history records, newest first.
func (r *ReportHistoryRepo) ListByTenant(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.ReportQueryRecord, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_query_history WHERE tenant_id = ?`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tenant_id, principal_id, sql_text, status, error_message, row_count, duration_ms, warning_count, created_at
		 FROM report_query_history
		 WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		tenantID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var records []domain.ReportQueryRecord
	for rows.Next() {
		var rec domain.ReportQueryRecord
		var createdAt time.Time
		if err := rows.Scan(&rec.ID, &rec.TenantID, &rec.PrincipalID, &rec.SQL, &rec.Status,
			&rec.ErrorMessage, &rec.RowCount, &rec.DurationMs, &rec.WarningCount, &createdAt); err != nil {
			return nil, 0, err
		}
		rec.CreatedAt = createdAt
		records = append(records, rec)
	}
	return records, total, rows.Err()
}
