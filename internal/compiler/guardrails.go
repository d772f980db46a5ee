package compiler

import (
	"fmt"
	"time"

	"retailmetrics/internal/domain"
)

const dateLayout = "2006-01-02"

// writeDateRange validates the plan's date range against the span
// guardrail and returns the BETWEEN predicate with both bounds bound.
// An absent range is legal but worth flagging: unbounded scans over the
// reporting tables are a caller responsibility to avoid.
func (b *queryBuilder) writeDateRange(in domain.CompilerInput, dimensions []domain.DimensionDefinition, out *domain.CompiledQuery) (string, error) {
	if in.Plan.DateRange == nil {
		out.Warnings = append(out.Warnings, "No date range supplied; the query may scan the full reporting table")
		return "", nil
	}

	start, err := time.Parse(dateLayout, in.Plan.DateRange.Start)
	if err != nil {
		return "", domain.ErrCompile(domain.CompileCodeInvalidDateRange, "invalid date range start %q: expected YYYY-MM-DD", in.Plan.DateRange.Start)
	}
	end, err := time.Parse(dateLayout, in.Plan.DateRange.End)
	if err != nil {
		return "", domain.ErrCompile(domain.CompileCodeInvalidDateRange, "invalid date range end %q: expected YYYY-MM-DD", in.Plan.DateRange.End)
	}
	if end.Before(start) {
		return "", domain.ErrCompile(domain.CompileCodeInvalidDateRange, "date range end %s is before start %s", in.Plan.DateRange.End, in.Plan.DateRange.Start)
	}

	maxDays := in.MaxDateRangeDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDateRangeDays
	}
	spanDays := int(end.Sub(start).Hours()/24) + 1
	if spanDays > maxDays {
		return "", domain.ErrCompile(domain.CompileCodeDateRangeTooLarge, "date range spans %d days, exceeding the maximum of %d days", spanDays, maxDays)
	}

	return fmt.Sprintf("%s BETWEEN %s AND %s",
		timeColumn(dimensions),
		b.bind(in.Plan.DateRange.Start),
		b.bind(in.Plan.DateRange.End),
	), nil
}

// timeColumn picks the column the date range constrains: the first
// selected time dimension's raw expression, or the reporting tables'
// shared business_date column when no time dimension is in the plan.
func timeColumn(dimensions []domain.DimensionDefinition) string {
	for _, d := range dimensions {
		if d.IsTimeDimension {
			return d.SQLExpression
		}
	}
	return defaultTimeColumn
}
