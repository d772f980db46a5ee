package domain

import (
	"time"
	"unicode/utf8"
)

const (
	MaxSlugLength = 255

	// Filter operators accepted in a QueryPlan.
	FilterOpEq      = "eq"
	FilterOpIn      = "in"
	FilterOpGte     = "gte"
	FilterOpLte     = "lte"
	FilterOpBetween = "between"
	FilterOpLike    = "like"

	// Time bucket sizes supported by time dimensions.
	GranularityDay   = "day"
	GranularityWeek  = "week"
	GranularityMonth = "month"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// MetricDefinition describes a pre-aggregated business measure backed by a
// SQL aggregate expression over a fixed reporting table. Definitions are
// owned by the registry and immutable for the duration of a compile call.
type MetricDefinition struct {
	ID            string
	TenantID      string
	Slug          string
	Name          string
	SQLExpression string
	SQLTable      string
	SQLFilter     string // optional boolean fragment ANDed into WHERE when selected
	DataType      string
	FormatPattern string
	Unit          string
	IsActive      bool
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DimensionDefinition describes a grouping/filtering attribute backed by a
// SQL column or expression on a reporting table.
type DimensionDefinition struct {
	ID                string
	TenantID          string
	Slug              string
	Name              string
	SQLExpression     string
	SQLTable          string
	SQLDataType       string
	IsTimeDimension   bool
	TimeGranularities []string // ordered bucket sizes, empty unless IsTimeDimension
	IsActive          bool
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SupportsGranularity reports whether the dimension can be bucketed at the
// given granularity.
func (d *DimensionDefinition) SupportsGranularity(granularity string) bool {
	for _, g := range d.TimeGranularities {
		if g == granularity {
			return true
		}
	}
	return false
}

// FilterClause is one untrusted filter condition from a caller's plan.
// Exactly one of Value, Values, or RangeStart+RangeEnd is set, matched to
// the operator.
type FilterClause struct {
	DimensionSlug string
	Operator      string
	Value         interface{}
	Values        []interface{}
	RangeStart    interface{}
	RangeEnd      interface{}
}

// DateRange holds ISO calendar date bounds (inclusive).
type DateRange struct {
	Start string
	End   string
}

// SortClause orders results by a selected metric's alias.
type SortClause struct {
	MetricSlug string
	Direction  string
}

// QueryPlan is the untrusted declarative metric request supplied by a
// caller. Slugs are resolved through the registry; no identifier in the
// plan ever reaches SQL text directly.
type QueryPlan struct {
	Metrics         []string
	Dimensions      []string
	Filters         []FilterClause
	DateRange       *DateRange
	TimeGranularity string
	Sort            []SortClause
	Limit           *int
}

// CompilerInput wraps a QueryPlan with execution context. TenantID is
// required; every compiled query carries a tenant equality predicate.
type CompilerInput struct {
	Plan             QueryPlan
	TenantID         string
	LocationID       string // optional; adds a location predicate when set
	MaxDateRangeDays int    // optional override of the date-range guardrail
}

// CompiledQuery is the compiler's immutable output: parameterized SQL with
// positional placeholders and bound values in appearance order.
type CompiledQuery struct {
	SQL          string
	Params       []interface{}
	Metrics      []MetricDefinition    // resolved, selection order
	Dimensions   []DimensionDefinition // resolved, selection order
	PrimaryTable string
	JoinTables   []string // tables referenced outside PrimaryTable; no JOIN is synthesized
	Warnings     []string
}

// PlanValidation is the registry's verdict on a plan: either a set of
// resolved definitions, or the reasons the plan cannot compile.
type PlanValidation struct {
	Valid      bool
	Errors     []string
	Metrics    []MetricDefinition
	Dimensions []DimensionDefinition
}

// CreateMetricDefinitionRequest holds parameters for registering a metric.
type CreateMetricDefinitionRequest struct {
	TenantID      string
	Slug          string
	Name          string
	SQLExpression string
	SQLTable      string
	SQLFilter     string
	DataType      string
	FormatPattern string
	Unit          string
	IsActive      *bool // nil defaults to active
}

// Validate checks that the request is well-formed.
func (r *CreateMetricDefinitionRequest) Validate() error {
	if r.TenantID == "" {
		return ErrValidation("tenant_id is required")
	}
	if r.Slug == "" {
		return ErrValidation("slug is required")
	}
	if utf8.RuneCountInString(r.Slug) > MaxSlugLength {
		return ErrValidation("slug must be <= %d characters", MaxSlugLength)
	}
	if r.SQLExpression == "" {
		return ErrValidation("sql_expression is required")
	}
	if r.SQLTable == "" {
		return ErrValidation("sql_table is required")
	}
	return nil
}

// UpdateMetricDefinitionRequest holds partial-update parameters.
type UpdateMetricDefinitionRequest struct {
	Name          *string
	SQLExpression *string
	SQLTable      *string
	SQLFilter     *string
	DataType      *string
	FormatPattern *string
	Unit          *string
	IsActive      *bool
}

// CreateDimensionDefinitionRequest holds parameters for registering a dimension.
type CreateDimensionDefinitionRequest struct {
	TenantID          string
	Slug              string
	Name              string
	SQLExpression     string
	SQLTable          string
	SQLDataType       string
	IsTimeDimension   bool
	TimeGranularities []string
	IsActive          *bool
}

// Validate checks that the request is well-formed.
func (r *CreateDimensionDefinitionRequest) Validate() error {
	if r.TenantID == "" {
		return ErrValidation("tenant_id is required")
	}
	if r.Slug == "" {
		return ErrValidation("slug is required")
	}
	if utf8.RuneCountInString(r.Slug) > MaxSlugLength {
		return ErrValidation("slug must be <= %d characters", MaxSlugLength)
	}
	if r.SQLExpression == "" {
		return ErrValidation("sql_expression is required")
	}
	if r.SQLTable == "" {
		return ErrValidation("sql_table is required")
	}
	if !r.IsTimeDimension && len(r.TimeGranularities) > 0 {
		return ErrValidation("time_granularities requires is_time_dimension")
	}
	for _, g := range r.TimeGranularities {
		if g != GranularityDay && g != GranularityWeek && g != GranularityMonth {
			return ErrValidation("time granularity must be day, week, or month")
		}
	}
	return nil
}

// UpdateDimensionDefinitionRequest holds partial-update parameters.
type UpdateDimensionDefinitionRequest struct {
	Name              *string
	SQLExpression     *string
	SQLTable          *string
	SQLDataType       *string
	IsTimeDimension   *bool
	TimeGranularities []string // nil = no change, empty = clear
	IsActive          *bool
}

// ReportQueryRecord is one execution record in the per-tenant report
// query history.
type ReportQueryRecord struct {
	ID           string
	TenantID     string
	PrincipalID  string
	SQL          string
	Status       string // "OK" or "ERROR"
	ErrorMessage *string
	RowCount     *int64
	DurationMs   *int64
	WarningCount int
	CreatedAt    time.Time
}
