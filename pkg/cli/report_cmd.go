package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"retailmetrics/internal/app"
	"retailmetrics/internal/domain"
)

// planFile is the JSON shape accepted by explain/run, matching the HTTP
// request body.
type planFile struct {
	Metrics    []string `json:"metrics"`
	Dimensions []string `json:"dimensions"`
	Filters    []struct {
		Dimension  string        `json:"dimension"`
		Operator   string        `json:"operator"`
		Value      interface{}   `json:"value"`
		Values     []interface{} `json:"values"`
		RangeStart interface{}   `json:"range_start"`
		RangeEnd   interface{}   `json:"range_end"`
	} `json:"filters"`
	DateRange *struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"date_range"`
	TimeGranularity string `json:"time_granularity"`
	Sort            []struct {
		Metric    string `json:"metric"`
		Direction string `json:"direction"`
	} `json:"sort"`
	Limit *int `json:"limit"`
}

func readPlan(path string) (domain.QueryPlan, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path) //nolint:gosec // path is caller-controlled
	}
	if err != nil {
		return domain.QueryPlan{}, fmt.Errorf("read plan: %w", err)
	}

	var pf planFile
	if err := json.Unmarshal(raw, &pf); err != nil {
		return domain.QueryPlan{}, fmt.Errorf("parse plan: %w", err)
	}

	plan := domain.QueryPlan{
		Metrics:         pf.Metrics,
		Dimensions:      pf.Dimensions,
		TimeGranularity: pf.TimeGranularity,
		Limit:           pf.Limit,
	}
	for _, f := range pf.Filters {
		plan.Filters = append(plan.Filters, domain.FilterClause{
			DimensionSlug: f.Dimension,
			Operator:      f.Operator,
			Value:         f.Value,
			Values:        f.Values,
			RangeStart:    f.RangeStart,
			RangeEnd:      f.RangeEnd,
		})
	}
	if pf.DateRange != nil {
		plan.DateRange = &domain.DateRange{Start: pf.DateRange.Start, End: pf.DateRange.End}
	}
	for _, s := range pf.Sort {
		plan.Sort = append(plan.Sort, domain.SortClause{MetricSlug: s.Metric, Direction: s.Direction})
	}
	return plan, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newExplainCmd() *cobra.Command {
	var tenantID, locationID, planPath string

	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Compile a plan and print the SQL without executing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := readPlan(planPath)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			compiled, err := e.app.Reporting.Explain(cmd.Context(), domain.CompilerInput{
				Plan:       plan,
				TenantID:   tenantID,
				LocationID: locationID,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"sql":           compiled.SQL,
				"params":        compiled.Params,
				"primary_table": compiled.PrimaryTable,
				"join_tables":   compiled.JoinTables,
				"warnings":      compiled.Warnings,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID to compile for (required)")
	cmd.Flags().StringVar(&locationID, "location", "", "optional location ID")
	cmd.Flags().StringVarP(&planPath, "file", "f", "-", "plan JSON file (- for stdin)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newRunCmd() *cobra.Command {
	var tenantID, locationID, planPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile and execute a plan against the warehouse",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := readPlan(planPath)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			res, err := e.app.Reporting.Run(cmd.Context(), domain.CompilerInput{
				Plan:       plan,
				TenantID:   tenantID,
				LocationID: locationID,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"columns":     res.Columns,
				"rows":        res.Rows,
				"row_count":   res.RowCount,
				"warnings":    res.Warnings,
				"duration_ms": res.DurationMs,
			})
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID to run for (required)")
	cmd.Flags().StringVar(&locationID, "location", "", "optional location ID")
	cmd.Flags().StringVarP(&planPath, "file", "f", "-", "plan JSON file (- for stdin)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newSeedCmd() *cobra.Command {
	var seedPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load metric and dimension definitions from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if err := app.SeedDefinitions(cmd.Context(), e.app.Registry, seedPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "definitions loaded")
			return nil
		},
	}

	cmd.Flags().StringVarP(&seedPath, "file", "f", "definitions.yaml", "definitions YAML file")

	return cmd
}
