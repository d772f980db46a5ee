package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailmetrics/internal/domain"
)

// stubRegistry resolves plans against a fixed set of definitions, the way
// the real registry does, and records whether it was contacted.
type stubRegistry struct {
	metrics    map[string]domain.MetricDefinition
	dimensions map[string]domain.DimensionDefinition
	called     bool
}

func (s *stubRegistry) ValidatePlan(_ context.Context, _ string, plan domain.QueryPlan) (*domain.PlanValidation, error) {
	s.called = true
	v := &domain.PlanValidation{Valid: true}
	for _, slug := range plan.Metrics {
		m, ok := s.metrics[slug]
		if !ok {
			v.Valid = false
			v.Errors = append(v.Errors, "unknown metric "+slug)
			continue
		}
		v.Metrics = append(v.Metrics, m)
	}
	for _, slug := range plan.Dimensions {
		d, ok := s.dimensions[slug]
		if !ok {
			v.Valid = false
			v.Errors = append(v.Errors, "unknown dimension "+slug)
			continue
		}
		v.Dimensions = append(v.Dimensions, d)
	}
	return v, nil
}

func testRegistry() *stubRegistry {
	return &stubRegistry{
		metrics: map[string]domain.MetricDefinition{
			"net_sales": {
				Slug: "net_sales", SQLExpression: "SUM(net_sales)", SQLTable: "rm_daily_sales", IsActive: true,
			},
			"order_count": {
				Slug: "order_count", SQLExpression: "SUM(order_count)", SQLTable: "rm_daily_sales",
				SQLFilter: "voided = FALSE", IsActive: true,
			},
			"item_qty": {
				Slug: "item_qty", SQLExpression: "SUM(quantity)", SQLTable: "rm_item_sales", IsActive: true,
			},
		},
		dimensions: map[string]domain.DimensionDefinition{
			"date": {
				Slug: "date", SQLExpression: "business_date", SQLTable: "rm_daily_sales",
				IsTimeDimension: true, TimeGranularities: []string{"day", "week", "month"}, IsActive: true,
			},
			"channel": {
				Slug: "channel", SQLExpression: "channel", SQLTable: "rm_daily_sales", IsActive: true,
			},
			"item": {
				Slug: "item", SQLExpression: "item_name", SQLTable: "rm_item_sales", IsActive: true,
			},
		},
	}
}

func compile(t *testing.T, in domain.CompilerInput) *domain.CompiledQuery {
	t.Helper()
	out, err := New(testRegistry()).Compile(context.Background(), in)
	require.NoError(t, err)
	return out
}

func compileErr(t *testing.T, in domain.CompilerInput) *domain.CompilerError {
	t.Helper()
	_, err := New(testRegistry()).Compile(context.Background(), in)
	require.Error(t, err)
	var ce *domain.CompilerError
	require.True(t, errors.As(err, &ce), "expected CompilerError, got %T: %v", err, err)
	return ce
}

func TestCompile_TimeSeriesShape(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "tenant_abc",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"date"},
			DateRange:  &domain.DateRange{Start: "2026-01-01", End: "2026-01-31"},
		},
	})

	assert.Equal(t,
		`SELECT SUM(net_sales) AS "net_sales", business_date AS "date"`+
			` FROM rm_daily_sales`+
			` WHERE tenant_id = $1 AND business_date BETWEEN $2 AND $3`+
			` GROUP BY business_date`+
			` ORDER BY "date" ASC`+
			` LIMIT $4`,
		out.SQL)
	assert.Equal(t, []interface{}{"tenant_abc", "2026-01-01", "2026-01-31", DefaultRowLimit}, out.Params)
	assert.Equal(t, "rm_daily_sales", out.PrimaryTable)
	assert.Empty(t, out.JoinTables)
	assert.Empty(t, out.Warnings)
}

func TestCompile_NoMetricsSkipsRegistry(t *testing.T) {
	reg := testRegistry()
	_, err := New(reg).Compile(context.Background(), domain.CompilerInput{
		TenantID: "tenant_abc",
		Plan:     domain.QueryPlan{Metrics: []string{}},
	})
	require.Error(t, err)
	var ce *domain.CompilerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, domain.CompileCodeNoMetrics, ce.Code)
	assert.False(t, reg.called, "registry must not be contacted for an empty metrics list")
}

func TestCompile_RegistryErrorsConcatenated(t *testing.T) {
	ce := compileErr(t, domain.CompilerInput{
		TenantID: "tenant_abc",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales", "bogus"}, Dimensions: []string{"nope"}},
	})
	assert.Equal(t, domain.CompileCodePlanValidation, ce.Code)
	assert.Contains(t, ce.Message, "unknown metric bogus")
	assert.Contains(t, ce.Message, "unknown dimension nope")
}

func TestCompile_FilterOperators(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"channel"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "channel", Operator: domain.FilterOpEq, Value: "dine_in"},
			},
		},
	})
	assert.Contains(t, out.SQL, "channel = $2")
	assert.Equal(t, "dine_in", out.Params[1])

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"channel"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "channel", Operator: domain.FilterOpIn, Values: []interface{}{"dine_in", "takeout"}},
			},
		},
	})
	assert.Contains(t, out.SQL, "channel IN ($2, $3)")
	assert.Equal(t, []interface{}{"t1", "dine_in", "takeout", DefaultRowLimit}, out.Params)

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"date"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "date", Operator: domain.FilterOpBetween, RangeStart: "2026-01-01", RangeEnd: "2026-02-01"},
			},
		},
	})
	assert.Contains(t, out.SQL, "business_date BETWEEN $2 AND $3")
	assert.Equal(t, "2026-01-01", out.Params[1])
	assert.Equal(t, "2026-02-01", out.Params[2])

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"channel"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "channel", Operator: domain.FilterOpLike, Value: "deliv"},
			},
		},
	})
	assert.Contains(t, out.SQL, "LOWER(channel) LIKE LOWER($2)")
	assert.Equal(t, "%deliv%", out.Params[1], "compiler adds the wildcards, not the caller")
}

func TestCompile_EmptyInListFails(t *testing.T) {
	ce := compileErr(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"channel"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "channel", Operator: domain.FilterOpIn, Values: []interface{}{}},
			},
		},
	})
	assert.Equal(t, domain.CompileCodeFilterEmptyValues, ce.Code)
}

func TestCompile_UnselectedDimensionFilterDropped(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"date"},
			Filters: []domain.FilterClause{
				{DimensionSlug: "channel", Operator: domain.FilterOpEq, Value: "dine_in"},
			},
		},
	})
	assert.NotContains(t, out.SQL, "channel")
	require.Len(t, out.Warnings, 2) // dropped filter + missing date range
	assert.Contains(t, out.Warnings[0], `"channel"`)
	assert.NotContains(t, out.Params, "dine_in")
}

func TestCompile_TimeGranularity(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:         []string{"net_sales"},
			Dimensions:      []string{"date"},
			TimeGranularity: domain.GranularityMonth,
		},
	})
	assert.Contains(t, out.SQL, `DATE_TRUNC('month', business_date) AS "date"`)
	assert.Contains(t, out.SQL, "GROUP BY DATE_TRUNC('month', business_date)")

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:         []string{"net_sales"},
			Dimensions:      []string{"date"},
			TimeGranularity: domain.GranularityDay,
		},
	})
	assert.NotContains(t, out.SQL, "DATE_TRUNC", "day is the identity bucket")

	// Non-time dimensions are never wrapped regardless of granularity.
	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:         []string{"net_sales"},
			Dimensions:      []string{"channel"},
			TimeGranularity: domain.GranularityMonth,
		},
	})
	assert.Contains(t, out.SQL, `channel AS "channel"`)
	assert.NotContains(t, out.SQL, "DATE_TRUNC")
}

func TestCompile_DefaultSort(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}, Dimensions: []string{"channel", "date"}},
	})
	assert.Contains(t, out.SQL, `ORDER BY "date" ASC`, "time dimension wins the default sort")

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}, Dimensions: []string{"channel"}},
	})
	assert.Contains(t, out.SQL, `ORDER BY "net_sales" DESC`, "leaderboard default without a time dimension")
}

func TestCompile_ExplicitSort(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales", "order_count"},
			Dimensions: []string{"channel"},
			Sort:       []domain.SortClause{{MetricSlug: "order_count", Direction: "desc"}},
		},
	})
	assert.Contains(t, out.SQL, `ORDER BY "order_count" DESC`)

	ce := compileErr(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics: []string{"net_sales"},
			Sort:    []domain.SortClause{{MetricSlug: "net_sales", Direction: "sideways"}},
		},
	})
	assert.Equal(t, domain.CompileCodePlanValidation, ce.Code)
}

func TestCompile_LimitClamping(t *testing.T) {
	limit := func(n int) *int { return &n }

	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}, Limit: limit(999999)},
	})
	assert.Equal(t, MaxRowLimit, out.Params[len(out.Params)-1])

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}},
	})
	assert.Equal(t, DefaultRowLimit, out.Params[len(out.Params)-1])

	out = compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}, Limit: limit(100)},
	})
	assert.Equal(t, 100, out.Params[len(out.Params)-1])
}

func TestCompile_CrossTableWarnings(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:    []string{"net_sales"},
			Dimensions: []string{"item"},
		},
	})
	assert.Equal(t, []string{"rm_item_sales"}, out.JoinTables)

	crossWarnings := 0
	for _, w := range out.Warnings {
		if w == `Cross-table dimension "item" references rm_item_sales` {
			crossWarnings++
		}
	}
	assert.Equal(t, 1, crossWarnings)
	assert.NotContains(t, out.SQL, "JOIN", "no join is ever synthesized")
}

func TestCompile_MetricFilterInlined(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"order_count"}},
	})
	assert.Contains(t, out.SQL, "(voided = FALSE)")
	// The fragment is registry text, never a bound parameter.
	assert.NotContains(t, out.Params, "voided = FALSE")
}

func TestCompile_LocationPredicate(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID:   "t1",
		LocationID: "loc_9",
		Plan:       domain.QueryPlan{Metrics: []string{"net_sales"}},
	})
	assert.Contains(t, out.SQL, "tenant_id = $1 AND location_id = $2")
	assert.Equal(t, "t1", out.Params[0])
	assert.Equal(t, "loc_9", out.Params[1])
}

func TestCompile_TenantRequired(t *testing.T) {
	ce := compileErr(t, domain.CompilerInput{
		Plan: domain.QueryPlan{Metrics: []string{"net_sales"}},
	})
	assert.Equal(t, domain.CompileCodePlanValidation, ce.Code)
}

func TestCompile_RegistryTransportErrorPassesThrough(t *testing.T) {
	c := New(failingRegistry{})
	_, err := c.Compile(context.Background(), domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}},
	})
	require.Error(t, err)
	var ce *domain.CompilerError
	assert.False(t, errors.As(err, &ce), "infrastructure failures are not compiler errors")
}

type failingRegistry struct{}

func (failingRegistry) ValidatePlan(context.Context, string, domain.QueryPlan) (*domain.PlanValidation, error) {
	return nil, errors.New("registry unavailable")
}
