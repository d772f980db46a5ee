// Package registry manages metric and dimension definitions and validates
// query plans against them.
package registry

import (
	"context"
	"fmt"

	"retailmetrics/internal/domain"
)

// Service provides business logic for definition management and plan
// validation.
type Service struct {
	metrics    domain.MetricDefinitionRepository
	dimensions domain.DimensionDefinitionRepository
}

// NewService creates a new registry Service.
func NewService(metrics domain.MetricDefinitionRepository, dimensions domain.DimensionDefinitionRepository) *Service {
	return &Service{metrics: metrics, dimensions: dimensions}
}

var _ domain.PlanValidator = (*Service)(nil)

// ValidatePlan resolves every slug in the plan against the tenant's
// definitions. Unknown or inactive slugs and unsupported granularities
// accumulate into Errors rather than failing fast, so a caller sees every
// problem with the plan at once. Resolved definitions come back in plan
// order.
func (s *Service) ValidatePlan(ctx context.Context, tenantID string, plan domain.QueryPlan) (*domain.PlanValidation, error) {
	out := &domain.PlanValidation{}

	metricsBySlug, err := s.metricIndex(ctx, tenantID, plan.Metrics)
	if err != nil {
		return nil, fmt.Errorf("resolve metrics: %w", err)
	}
	for _, slug := range plan.Metrics {
		m, ok := metricsBySlug[slug]
		switch {
		case !ok:
			out.Errors = append(out.Errors, fmt.Sprintf("unknown metric %q", slug))
		case !m.IsActive:
			out.Errors = append(out.Errors, fmt.Sprintf("metric %q is inactive", slug))
		default:
			out.Metrics = append(out.Metrics, m)
		}
	}

	dimsBySlug, err := s.dimensionIndex(ctx, tenantID, plan.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("resolve dimensions: %w", err)
	}
	for _, slug := range plan.Dimensions {
		d, ok := dimsBySlug[slug]
		switch {
		case !ok:
			out.Errors = append(out.Errors, fmt.Sprintf("unknown dimension %q", slug))
		case !d.IsActive:
			out.Errors = append(out.Errors, fmt.Sprintf("dimension %q is inactive", slug))
		default:
			out.Dimensions = append(out.Dimensions, d)
		}
	}

	if g := plan.TimeGranularity; g != "" {
		if g != domain.GranularityDay && g != domain.GranularityWeek && g != domain.GranularityMonth {
			out.Errors = append(out.Errors, fmt.Sprintf("unsupported time granularity %q", g))
		} else {
			for _, d := range out.Dimensions {
				if d.IsTimeDimension && !d.SupportsGranularity(g) {
					out.Errors = append(out.Errors, fmt.Sprintf("dimension %q does not support granularity %q", d.Slug, g))
				}
			}
		}
	}

	out.Valid = len(out.Errors) == 0
	return out, nil
}

func (s *Service) metricIndex(ctx context.Context, tenantID string, slugs []string) (map[string]domain.MetricDefinition, error) {
	defs, err := s.metrics.ListBySlugs(ctx, tenantID, slugs)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.MetricDefinition, len(defs))
	for _, d := range defs {
		index[d.Slug] = d
	}
	return index, nil
}

func (s *Service) dimensionIndex(ctx context.Context, tenantID string, slugs []string) (map[string]domain.DimensionDefinition, error) {
	defs, err := s.dimensions.ListBySlugs(ctx, tenantID, slugs)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.DimensionDefinition, len(defs))
	for _, d := range defs {
		index[d.Slug] = d
	}
	return index, nil
}

// CreateMetric registers a metric definition.
func (s *Service) CreateMetric(ctx context.Context, principal string, req domain.CreateMetricDefinitionRequest) (*domain.MetricDefinition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return s.metrics.Create(ctx, &domain.MetricDefinition{
		TenantID:      req.TenantID,
		Slug:          req.Slug,
		Name:          req.Name,
		SQLExpression: req.SQLExpression,
		SQLTable:      req.SQLTable,
		SQLFilter:     req.SQLFilter,
		DataType:      req.DataType,
		FormatPattern: req.FormatPattern,
		Unit:          req.Unit,
		IsActive:      active,
		CreatedBy:     principal,
	})
}

// GetMetric retrieves a metric definition by slug.
func (s *Service) GetMetric(ctx context.Context, tenantID, slug string) (*domain.MetricDefinition, error) {
	return s.metrics.GetBySlug(ctx, tenantID, slug)
}

// ListMetrics lists a tenant's metric definitions.
func (s *Service) ListMetrics(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.MetricDefinition, int64, error) {
	return s.metrics.ListByTenant(ctx, tenantID, page)
}

// UpdateMetric updates an existing metric definition by slug.
func (s *Service) UpdateMetric(ctx context.Context, tenantID, slug string, req domain.UpdateMetricDefinitionRequest) (*domain.MetricDefinition, error) {
	return s.metrics.Update(ctx, tenantID, slug, req)
}

// DeleteMetric deletes an existing metric definition by slug.
func (s *Service) DeleteMetric(ctx context.Context, tenantID, slug string) error {
	return s.metrics.Delete(ctx, tenantID, slug)
}

// CreateDimension registers a dimension definition.
func (s *Service) CreateDimension(ctx context.Context, principal string, req domain.CreateDimensionDefinitionRequest) (*domain.DimensionDefinition, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return s.dimensions.Create(ctx, &domain.DimensionDefinition{
		TenantID:          req.TenantID,
		Slug:              req.Slug,
		Name:              req.Name,
		SQLExpression:     req.SQLExpression,
		SQLTable:          req.SQLTable,
		SQLDataType:       req.SQLDataType,
		IsTimeDimension:   req.IsTimeDimension,
		TimeGranularities: req.TimeGranularities,
		IsActive:          active,
		CreatedBy:         principal,
	})
}

// GetDimension retrieves a dimension definition by slug.
func (s *Service) GetDimension(ctx context.Context, tenantID, slug string) (*domain.DimensionDefinition, error) {
	return s.dimensions.GetBySlug(ctx, tenantID, slug)
}

// ListDimensions lists a tenant's dimension definitions.
func (s *Service) ListDimensions(ctx context.Context, tenantID string, page domain.PageRequest) ([]domain.DimensionDefinition, int64, error) {
	return s.dimensions.ListByTenant(ctx, tenantID, page)
}

// UpdateDimension updates an existing dimension definition by slug.
func (s *Service) UpdateDimension(ctx context.Context, tenantID, slug string, req domain.UpdateDimensionDefinitionRequest) (*domain.DimensionDefinition, error) {
	return s.dimensions.Update(ctx, tenantID, slug, req)
}

// DeleteDimension deletes an existing dimension definition by slug.
func (s *Service) DeleteDimension(ctx context.Context, tenantID, slug string) error {
	return s.dimensions.Delete(ctx, tenantID, slug)
}
