package domain

import "context"

// MetricDefinitionRepository persists metric definitions per tenant.
type MetricDefinitionRepository interface {
	Create(ctx context.Context, m *MetricDefinition) (*MetricDefinition, error)
	GetBySlug(ctx context.Context, tenantID, slug string) (*MetricDefinition, error)
	ListByTenant(ctx context.Context, tenantID string, page PageRequest) ([]MetricDefinition, int64, error)
	ListBySlugs(ctx context.Context, tenantID string, slugs []string) ([]MetricDefinition, error)
	Update(ctx context.Context, tenantID, slug string, req UpdateMetricDefinitionRequest) (*MetricDefinition, error)
	Delete(ctx context.Context, tenantID, slug string) error
}

// DimensionDefinitionRepository persists dimension definitions per tenant.
type DimensionDefinitionRepository interface {
	Create(ctx context.Context, d *DimensionDefinition) (*DimensionDefinition, error)
	GetBySlug(ctx context.Context, tenantID, slug string) (*DimensionDefinition, error)
	ListByTenant(ctx context.Context, tenantID string, page PageRequest) ([]DimensionDefinition, int64, error)
	ListBySlugs(ctx context.Context, tenantID string, slugs []string) ([]DimensionDefinition, error)
	Update(ctx context.Context, tenantID, slug string, req UpdateDimensionDefinitionRequest) (*DimensionDefinition, error)
	Delete(ctx context.Context, tenantID, slug string) error
}

// ReportHistoryRepository records compiled report executions per tenant.
type ReportHistoryRepository interface {
	Insert(ctx context.Context, rec *ReportQueryRecord) error
	ListByTenant(ctx context.Context, tenantID string, page PageRequest) ([]ReportQueryRecord, int64, error)
}

// PlanValidator is the registry seam the compiler depends on. The compiler
// never reaches into definition storage directly; a test double returning
// fixed definitions keeps it unit-testable in isolation.
type PlanValidator interface {
	ValidatePlan(ctx context.Context, tenantID string, plan QueryPlan) (*PlanValidation, error)
}
