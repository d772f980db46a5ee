package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailmetrics/internal/domain"
)

func TestDateRange_MissingWarnsButCompiles(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan:     domain.QueryPlan{Metrics: []string{"net_sales"}, Dimensions: []string{"date"}},
	})
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "No date range")
	assert.NotContains(t, out.SQL, "BETWEEN")
}

func TestDateRange_InvalidBounds(t *testing.T) {
	cases := []struct {
		name  string
		start string
		end   string
	}{
		{"unparsable start", "not-a-date", "2026-01-31"},
		{"unparsable end", "2026-01-01", "31/01/2026"},
		{"end before start", "2026-02-01", "2026-01-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ce := compileErr(t, domain.CompilerInput{
				TenantID: "t1",
				Plan: domain.QueryPlan{
					Metrics:   []string{"net_sales"},
					DateRange: &domain.DateRange{Start: tc.start, End: tc.end},
				},
			})
			assert.Equal(t, domain.CompileCodeInvalidDateRange, ce.Code)
		})
	}
}

func TestDateRange_SpanGuardrail(t *testing.T) {
	// 31 inclusive days against a 31-day cap: exactly at the boundary.
	out := compile(t, domain.CompilerInput{
		TenantID:         "t1",
		MaxDateRangeDays: 31,
		Plan: domain.QueryPlan{
			Metrics:   []string{"net_sales"},
			DateRange: &domain.DateRange{Start: "2026-01-01", End: "2026-01-31"},
		},
	})
	assert.Contains(t, out.SQL, "BETWEEN")

	ce := compileErr(t, domain.CompilerInput{
		TenantID:         "t1",
		MaxDateRangeDays: 30,
		Plan: domain.QueryPlan{
			Metrics:   []string{"net_sales"},
			DateRange: &domain.DateRange{Start: "2026-01-01", End: "2026-01-31"},
		},
	})
	assert.Equal(t, domain.CompileCodeDateRangeTooLarge, ce.Code)
}

func TestDateRange_DefaultGuardrail(t *testing.T) {
	// 366 inclusive days exceeds the built-in 365-day default.
	ce := compileErr(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:   []string{"net_sales"},
			DateRange: &domain.DateRange{Start: "2025-01-01", End: "2026-01-01"},
		},
	})
	assert.Equal(t, domain.CompileCodeDateRangeTooLarge, ce.Code)

	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:   []string{"net_sales"},
			DateRange: &domain.DateRange{Start: "2025-01-02", End: "2026-01-01"},
		},
	})
	assert.Contains(t, out.SQL, "BETWEEN")
}

func TestDateRange_SingleDay(t *testing.T) {
	out := compile(t, domain.CompilerInput{
		TenantID: "t1",
		Plan: domain.QueryPlan{
			Metrics:   []string{"net_sales"},
			DateRange: &domain.DateRange{Start: "2026-03-15", End: "2026-03-15"},
		},
	})
	assert.Contains(t, out.SQL, "business_date BETWEEN $2 AND $3")
	assert.Equal(t, "2026-03-15", out.Params[1])
	assert.Equal(t, "2026-03-15", out.Params[2])
}
