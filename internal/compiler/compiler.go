// Package compiler turns declarative metric query plans into a single
// parameterized aggregate SQL statement over the pre-aggregated reporting
// tables. All identifiers come from the registry; caller-supplied values
// only ever appear as bound parameters.
package compiler

import (
	"context"
	"fmt"
	"strings"

	"retailmetrics/internal/domain"
)

const (
	// DefaultMaxDateRangeDays caps the inclusive span of a date range
	// unless the caller overrides it.
	DefaultMaxDateRangeDays = 365

	// DefaultRowLimit applies when a plan specifies no limit.
	DefaultRowLimit = 10000

	// MaxRowLimit is the absolute row cap; larger caller limits are
	// clamped down, not rejected.
	MaxRowLimit = 50000

	// Fixed columns shared by every reporting table.
	tenantColumn      = "tenant_id"
	locationColumn    = "location_id"
	defaultTimeColumn = "business_date"
)

// Compiler compiles metric query plans. It holds no mutable state; each
// Compile call is an independent computation around one registry lookup.
type Compiler struct {
	registry domain.PlanValidator
}

// New creates a Compiler backed by the given registry.
func New(registry domain.PlanValidator) *Compiler {
	return &Compiler{registry: registry}
}

// Compile validates the plan against the registry and builds the SQL text
// and parameter list in a single pass, so placeholder numbering can never
// drift from parameter order.
func (c *Compiler) Compile(ctx context.Context, in domain.CompilerInput) (*domain.CompiledQuery, error) {
	if strings.TrimSpace(in.TenantID) == "" {
		return nil, domain.ErrCompile(domain.CompileCodePlanValidation, "tenant id is required")
	}
	if len(in.Plan.Metrics) == 0 {
		return nil, domain.ErrCompile(domain.CompileCodeNoMetrics, "at least one metric is required")
	}

	validation, err := c.registry.ValidatePlan(ctx, in.TenantID, in.Plan)
	if err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	if !validation.Valid {
		return nil, domain.ErrCompile(domain.CompileCodePlanValidation, "%s", strings.Join(validation.Errors, "; "))
	}

	metrics := validation.Metrics
	dimensions := validation.Dimensions

	out := &domain.CompiledQuery{
		Metrics:      metrics,
		Dimensions:   dimensions,
		PrimaryTable: metrics[0].SQLTable,
	}

	// Cross-table references are surfaced, never joined.
	seenTables := map[string]bool{out.PrimaryTable: true}
	for _, m := range metrics {
		if m.SQLTable == out.PrimaryTable {
			continue
		}
		if !seenTables[m.SQLTable] {
			seenTables[m.SQLTable] = true
			out.JoinTables = append(out.JoinTables, m.SQLTable)
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("Cross-table metric %q references %s", m.Slug, m.SQLTable))
	}
	for _, d := range dimensions {
		if d.SQLTable == out.PrimaryTable {
			continue
		}
		if !seenTables[d.SQLTable] {
			seenTables[d.SQLTable] = true
			out.JoinTables = append(out.JoinTables, d.SQLTable)
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf("Cross-table dimension %q references %s", d.Slug, d.SQLTable))
	}

	b := newQueryBuilder()

	dimExprs := make([]string, len(dimensions))
	for i, d := range dimensions {
		dimExprs[i] = dimensionExpression(d, in.Plan.TimeGranularity)
	}

	b.writeSelect(metrics, dimensions, dimExprs)
	b.raw(" FROM " + out.PrimaryTable)

	if err := b.writeWhere(in, metrics, dimensions, out); err != nil {
		return nil, err
	}

	if len(dimensions) > 0 {
		b.raw(" GROUP BY " + strings.Join(dimExprs, ", "))
	}

	if err := b.writeOrderBy(in.Plan, metrics, dimensions); err != nil {
		return nil, err
	}

	b.raw(" LIMIT " + b.bind(effectiveLimit(in.Plan.Limit)))

	out.SQL = b.String()
	out.Params = b.params
	return out, nil
}

// dimensionExpression returns the SELECT/GROUP BY expression for a
// dimension, wrapping time dimensions in DATE_TRUNC for week and month
// buckets. Day is the identity bucket and is never wrapped.
func dimensionExpression(d domain.DimensionDefinition, granularity string) string {
	if granularity == "" || granularity == domain.GranularityDay || !d.IsTimeDimension {
		return d.SQLExpression
	}
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", granularity, d.SQLExpression)
}

// effectiveLimit clamps the caller's limit to the absolute ceiling and
// falls back to the default cap when absent or non-positive.
func effectiveLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return DefaultRowLimit
	}
	if *limit > MaxRowLimit {
		return MaxRowLimit
	}
	return *limit
}
