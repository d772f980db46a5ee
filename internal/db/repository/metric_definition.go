package repository

import (
	"context"
	"database/sql"
	"time"

	"retailmetrics/internal/domain"
)

// Compile-time check.
var _ domain.MetricDefinitionRepository = (*MetricDefinitionRepo)(nil)

// MetricDefinitionRepo implements MetricDefinitionRepository using SQLite.
type MetricDefinitionRepo struct {
	db *sql.DB
}

// NewMetricDefinitionRepo creates a new MetricDefinitionRepo.
func NewMetricDefinitionRepo(db *sql.DB) *MetricDefinitionRepo {
	return &MetricDefinitionRepo{db: db}
}

const metricColumns = `id, tenant_id, slug, name, sql_expression, sql_table, sql_filter,
	data_type, format_pattern, unit, is_active, created_by, created_at, updated_at`

// Create inserts a new metric definition.
func (r *MetricDefinitionRepo) Create(ctx context.Context, m *domain.MetricDefinition) (*domain.MetricDefinition, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO metric_definitions
			(id, tenant_id, slug, name, sql_expression, sql_table, sql_filter,
			 data_type, format_pattern, unit, is_active, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.TenantID, m.Slug, m.Name, m.SQLExpression, m.SQLTable, m.SQLFilter,
		m.DataType, m.FormatPattern, m.Unit, boolToInt(m.IsActive), m.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.getByID(ctx, id)
}

// GetBySlug returns a metric definition by tenant and slug.
func (r *MetricDefinitionRepo) GetBySlug(ctx context.Context, tenantID, slug string) (*domain.MetricDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM metric_definitions WHERE tenant_id = ? AND slug = ?`,
		tenantID, slug)
	return scanMetricDefinition(row)
}

// ListByTenant returns a page of metric definitions ordered by slug.
func (r *MetricDefinitionRepo) ListByTenant(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.MetricDefinition, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM metric_definitions WHERE tenant_id = ?`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM metric_definitions
		 WHERE tenant_id = ? ORDER BY slug LIMIT ? OFFSET ?`,
		tenantID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var metrics []domain.MetricDefinition
	for rows.Next() {
		m, err := scanMetricDefinition(rows)
		if err != nil {
			return nil, 0, err
		}
		metrics = append(metrics, *m)
	}
	return metrics, total, rows.Err()
}

// ListBySlugs returns definitions for the given slugs in storage order.
// Missing slugs are simply absent from the result; the registry decides
// whether that is an error.
func (r *MetricDefinitionRepo) ListBySlugs(ctx context.Context, tenantID string, slugs []string) ([]domain.MetricDefinition, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(slugs)+1)
	args = append(args, tenantID)
	for _, s := range slugs {
		args = append(args, s)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+metricColumns+` FROM metric_definitions
		 WHERE tenant_id = ? AND slug IN (`+sqlPlaceholders(len(slugs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var metrics []domain.MetricDefinition
	for rows.Next() {
		m, err := scanMetricDefinition(rows)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, *m)
	}
	return metrics, rows.Err()
}

// Update applies partial updates using read-modify-write.
func (r *MetricDefinitionRepo) Update(ctx context.Context, tenantID, slug string, req domain.UpdateMetricDefinitionRequest) (*domain.MetricDefinition, error) {
	current, err := r.GetBySlug(ctx, tenantID, slug)
	if err != nil {
		return nil, err
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	sqlExpression := current.SQLExpression
	if req.SQLExpression != nil {
		sqlExpression = *req.SQLExpression
	}
	sqlTable := current.SQLTable
	if req.SQLTable != nil {
		sqlTable = *req.SQLTable
	}
	sqlFilter := current.SQLFilter
	if req.SQLFilter != nil {
		sqlFilter = *req.SQLFilter
	}
	dataType := current.DataType
	if req.DataType != nil {
		dataType = *req.DataType
	}
	formatPattern := current.FormatPattern
	if req.FormatPattern != nil {
		formatPattern = *req.FormatPattern
	}
	unit := current.Unit
	if req.Unit != nil {
		unit = *req.Unit
	}
	isActive := current.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE metric_definitions
		 SET name = ?, sql_expression = ?, sql_table = ?, sql_filter = ?,
		     data_type = ?, format_pattern = ?, unit = ?, is_active = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND slug = ?`,
		name, sqlExpression, sqlTable, sqlFilter,
		dataType, formatPattern, unit, boolToInt(isActive),
		tenantID, slug)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetBySlug(ctx, tenantID, slug)
}

// Delete removes a metric definition.
func (r *MetricDefinitionRepo) Delete(ctx context.Context, tenantID, slug string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM metric_definitions WHERE tenant_id = ? AND slug = ?`, tenantID, slug)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("metric definition %q not found", slug)
	}
	return nil
}

func (r *MetricDefinitionRepo) getByID(ctx context.Context, id string) (*domain.MetricDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM metric_definitions WHERE id = ?`, id)
	return scanMetricDefinition(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMetricDefinition(row rowScanner) (*domain.MetricDefinition, error) {
	var m domain.MetricDefinition
	var isActive int64
	var createdAt, updatedAt time.Time
	err := row.Scan(&m.ID, &m.TenantID, &m.Slug, &m.Name, &m.SQLExpression, &m.SQLTable, &m.SQLFilter,
		&m.DataType, &m.FormatPattern, &m.Unit, &isActive, &m.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	m.IsActive = isActive != 0
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	return &m, nil
}
