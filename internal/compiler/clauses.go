package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"retailmetrics/internal/domain"
)

// queryBuilder accumulates SQL text and bound parameters together. Every
// value enters the query through bind, which hands back the positional
// placeholder for the text side.
type queryBuilder struct {
	sb     strings.Builder
	params []interface{}
}

func newQueryBuilder() *queryBuilder {
	return &queryBuilder{}
}

func (b *queryBuilder) raw(s string) {
	b.sb.WriteString(s)
}

// bind appends a parameter and returns its positional placeholder.
func (b *queryBuilder) bind(v interface{}) string {
	b.params = append(b.params, v)
	return "$" + strconv.Itoa(len(b.params))
}

func (b *queryBuilder) String() string {
	return b.sb.String()
}

// writeSelect emits metric expressions then dimension expressions, each
// aliased to its slug. dimExprs carries the already-computed dimension
// expressions so GROUP BY stays textually identical.
func (b *queryBuilder) writeSelect(metrics []domain.MetricDefinition, dimensions []domain.DimensionDefinition, dimExprs []string) {
	parts := make([]string, 0, len(metrics)+len(dimensions))
	for _, m := range metrics {
		parts = append(parts, fmt.Sprintf("%s AS %q", m.SQLExpression, m.Slug))
	}
	for i, d := range dimensions {
		parts = append(parts, fmt.Sprintf("%s AS %q", dimExprs[i], d.Slug))
	}
	b.raw("SELECT " + strings.Join(parts, ", "))
}

// writeWhere emits the tenant predicate, optional location predicate,
// registry-controlled metric filter fragments, retained caller filters,
// and the date-range predicate, in that order.
func (b *queryBuilder) writeWhere(in domain.CompilerInput, metrics []domain.MetricDefinition, dimensions []domain.DimensionDefinition, out *domain.CompiledQuery) error {
	predicates := []string{
		fmt.Sprintf("%s = %s", tenantColumn, b.bind(in.TenantID)),
	}
	if in.LocationID != "" {
		predicates = append(predicates, fmt.Sprintf("%s = %s", locationColumn, b.bind(in.LocationID)))
	}

	// Metric-level filters are registry-controlled SQL fragments, never
	// caller text, so they are inlined rather than parameterized. Widening
	// this to caller-supplied fragments would break the trust boundary.
	for _, m := range metrics {
		if f := strings.TrimSpace(m.SQLFilter); f != "" {
			predicates = append(predicates, "("+f+")")
		}
	}

	for _, f := range in.Plan.Filters {
		pred, ok, err := b.compileFilter(f, dimensions, out)
		if err != nil {
			return err
		}
		if ok {
			predicates = append(predicates, pred)
		}
	}

	datePred, err := b.writeDateRange(in, dimensions, out)
	if err != nil {
		return err
	}
	if datePred != "" {
		predicates = append(predicates, datePred)
	}

	b.raw(" WHERE " + strings.Join(predicates, " AND "))
	return nil
}

// compileFilter translates one filter clause into a bound predicate. A
// clause referencing a dimension outside the plan's selection is dropped
// with a warning: its column is not in scope for this query shape.
func (b *queryBuilder) compileFilter(f domain.FilterClause, dimensions []domain.DimensionDefinition, out *domain.CompiledQuery) (string, bool, error) {
	expr := ""
	for _, d := range dimensions {
		if d.Slug == f.DimensionSlug {
			// Filter on the raw expression, not the DATE_TRUNC-wrapped
			// one, so bucketing never narrows a filter's meaning.
			expr = d.SQLExpression
			break
		}
	}
	if expr == "" {
		out.Warnings = append(out.Warnings, fmt.Sprintf("Filter on dimension %q dropped: not among selected dimensions", f.DimensionSlug))
		return "", false, nil
	}

	switch f.Operator {
	case domain.FilterOpEq:
		return fmt.Sprintf("%s = %s", expr, b.bind(f.Value)), true, nil
	case domain.FilterOpGte:
		return fmt.Sprintf("%s >= %s", expr, b.bind(f.Value)), true, nil
	case domain.FilterOpLte:
		return fmt.Sprintf("%s <= %s", expr, b.bind(f.Value)), true, nil
	case domain.FilterOpIn:
		if len(f.Values) == 0 {
			return "", false, domain.ErrCompile(domain.CompileCodeFilterEmptyValues, "filter on dimension %q has an empty values list", f.DimensionSlug)
		}
		placeholders := make([]string, len(f.Values))
		for i, v := range f.Values {
			placeholders[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", expr, strings.Join(placeholders, ", ")), true, nil
	case domain.FilterOpBetween:
		return fmt.Sprintf("%s BETWEEN %s AND %s", expr, b.bind(f.RangeStart), b.bind(f.RangeEnd)), true, nil
	case domain.FilterOpLike:
		// The caller supplies only the substring; the compiler adds the
		// wildcards so patterns stay bound values end to end.
		pattern := "%" + fmt.Sprintf("%v", f.Value) + "%"
		return fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", expr, b.bind(pattern)), true, nil
	default:
		return "", false, domain.ErrCompile(domain.CompileCodePlanValidation, "unsupported filter operator %q on dimension %q", f.Operator, f.DimensionSlug)
	}
}

// writeOrderBy honors an explicit sort list, otherwise defaults to
// ascending on the first time dimension (time series read left to right)
// or descending on the first metric (leaderboard shape).
func (b *queryBuilder) writeOrderBy(plan domain.QueryPlan, metrics []domain.MetricDefinition, dimensions []domain.DimensionDefinition) error {
	if len(plan.Sort) > 0 {
		parts := make([]string, 0, len(plan.Sort))
		for _, s := range plan.Sort {
			dir := ""
			switch strings.ToLower(s.Direction) {
			case domain.SortAsc:
				dir = "ASC"
			case domain.SortDesc:
				dir = "DESC"
			default:
				return domain.ErrCompile(domain.CompileCodePlanValidation, "sort direction must be asc or desc, got %q", s.Direction)
			}
			parts = append(parts, fmt.Sprintf("%q %s", s.MetricSlug, dir))
		}
		b.raw(" ORDER BY " + strings.Join(parts, ", "))
		return nil
	}

	for _, d := range dimensions {
		if d.IsTimeDimension {
			b.raw(fmt.Sprintf(" ORDER BY %q ASC", d.Slug))
			return nil
		}
	}
	b.raw(fmt.Sprintf(" ORDER BY %q DESC", metrics[0].Slug))
	return nil
}
