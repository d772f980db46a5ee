package repository

import (
	"context"
	"database/sql"
	"time"

	"retailmetrics/internal/domain"
)

// Compile-time check.
var _ domain.DimensionDefinitionRepository = (*DimensionDefinitionRepo)(nil)

// DimensionDefinitionRepo implements DimensionDefinitionRepository using SQLite.
type DimensionDefinitionRepo struct {
	db *sql.DB
}

// NewDimensionDefinitionRepo creates a new DimensionDefinitionRepo.
func NewDimensionDefinitionRepo(db *sql.DB) *DimensionDefinitionRepo {
	return &DimensionDefinitionRepo{db: db}
}

const dimensionColumns = `id, tenant_id, slug, name, sql_expression, sql_table, sql_data_type,
	is_time_dimension, time_granularities, is_active, created_by, created_at, updated_at`

// Create inserts a new dimension definition.
func (r *DimensionDefinitionRepo) Create(ctx context.Context, d *domain.DimensionDefinition) (*domain.DimensionDefinition, error) {
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dimension_definitions
			(id, tenant_id, slug, name, sql_expression, sql_table, sql_data_type,
			 is_time_dimension, time_granularities, is_active, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, d.TenantID, d.Slug, d.Name, d.SQLExpression, d.SQLTable, d.SQLDataType,
		boolToInt(d.IsTimeDimension), encodeGranularities(d.TimeGranularities),
		boolToInt(d.IsActive), d.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.getByID(ctx, id)
}

// GetBySlug returns a dimension definition by tenant and slug.
func (r *DimensionDefinitionRepo) GetBySlug(ctx context.Context, tenantID, slug string) (*domain.DimensionDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dimensionColumns+` FROM dimension_definitions WHERE tenant_id = ? AND slug = ?`,
		tenantID, slug)
	return scanDimensionDefinition(row)
}

// ListByTenant returns a page of dimension definitions ordered by slug.
func (r *DimensionDefinitionRepo) ListByTenant(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.DimensionDefinition, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dimension_definitions WHERE tenant_id = ?`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dimensionColumns+` FROM dimension_definitions
		 WHERE tenant_id = ? ORDER BY slug LIMIT ? OFFSET ?`,
		tenantID, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var dims []domain.DimensionDefinition
	for rows.Next() {
		d, err := scanDimensionDefinition(rows)
		if err != nil {
			return nil, 0, err
		}
		dims = append(dims, *d)
	}
	return dims, total, rows.Err()
}

// ListBySlugs returns definitions for the given slugs in storage order.
func (r *DimensionDefinitionRepo) ListBySlugs(ctx context.Context, tenantID string, slugs []string) ([]domain.DimensionDefinition, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	args := make([]interface{}, 0, len(slugs)+1)
	args = append(args, tenantID)
	for _, s := range slugs {
		args = append(args, s)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+dimensionColumns+` FROM dimension_definitions
		 WHERE tenant_id = ? AND slug IN (`+sqlPlaceholders(len(slugs))+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var dims []domain.DimensionDefinition
	for rows.Next() {
		d, err := scanDimensionDefinition(rows)
		if err != nil {
			return nil, err
		}
		dims = append(dims, *d)
	}
	return dims, rows.Err()
}

// Update applies partial updates using read-modify-write.
func (r *DimensionDefinitionRepo) Update(ctx context.Context, tenantID, slug string, req domain.UpdateDimensionDefinitionRequest) (*domain.DimensionDefinition, error) {
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
	sqlDataType := current.SQLDataType
	if req.SQLDataType != nil {
		sqlDataType = *req.SQLDataType
	}
	isTimeDimension := current.IsTimeDimension
	if req.IsTimeDimension != nil {
		isTimeDimension = *req.IsTimeDimension
	}
	granularities := current.TimeGranularities
	if req.TimeGranularities != nil {
		granularities = req.TimeGranularities
	}
	isActive := current.IsActive
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE dimension_definitions
		 SET name = ?, sql_expression = ?, sql_table = ?, sql_data_type = ?,
		     is_time_dimension = ?, time_granularities = ?, is_active = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE tenant_id = ? AND slug = ?`,
		name, sqlExpression, sqlTable, sqlDataType,
		boolToInt(isTimeDimension), encodeGranularities(granularities), boolToInt(isActive),
		tenantID, slug)
	if err != nil {
		return nil, mapDBError(err)
	}
	return r.GetBySlug(ctx, tenantID, slug)
}

// Delete removes a dimension definition.
func (r *DimensionDefinitionRepo) Delete(ctx context.Context, tenantID, slug string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM dimension_definitions WHERE tenant_id = ? AND slug = ?`, tenantID, slug)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dimension definition %q not found", slug)
	}
	return nil
}

func (r *DimensionDefinitionRepo) getByID(ctx context.Context, id string) (*domain.DimensionDefinition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+dimensionColumns+` FROM dimension_definitions WHERE id = ?`, id)
	return scanDimensionDefinition(row)
}

func scanDimensionDefinition(row rowScanner) (*domain.DimensionDefinition, error) {
	var d domain.DimensionDefinition
	var isTime, isActive int64
	var granularities string
	var createdAt, updatedAt time.Time
	err := row.Scan(&d.ID, &d.TenantID, &d.Slug, &d.Name, &d.SQLExpression, &d.SQLTable, &d.SQLDataType,
		&isTime, &granularities, &isActive, &d.CreatedBy, &createdAt, &updatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}
	d.IsTimeDimension = isTime != 0
	d.TimeGranularities = decodeGranularities(granularities)
	d.IsActive = isActive != 0
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt
	return &d, nil
}
