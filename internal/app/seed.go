package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"retailmetrics/internal/domain"
	"retailmetrics/internal/registry"
)

// seedFile is the YAML shape for bootstrapping definitions.
type seedFile struct {
	Tenants []struct {
		TenantID string `yaml:"tenant_id"`
		Metrics  []struct {
			Slug          string `yaml:"slug"`
			Name          string `yaml:"name"`
			SQLExpression string `yaml:"sql_expression"`
			SQLTable      string `yaml:"sql_table"`
			SQLFilter     string `yaml:"sql_filter"`
			DataType      string `yaml:"data_type"`
			FormatPattern string `yaml:"format_pattern"`
			Unit          string `yaml:"unit"`
		} `yaml:"metrics"`
		Dimensions []struct {
			Slug              string   `yaml:"slug"`
			Name              string   `yaml:"name"`
			SQLExpression     string   `yaml:"sql_expression"`
			SQLTable          string   `yaml:"sql_table"`
			SQLDataType       string   `yaml:"sql_data_type"`
			IsTimeDimension   bool     `yaml:"is_time_dimension"`
			TimeGranularities []string `yaml:"time_granularities"`
		} `yaml:"dimensions"`
	} `yaml:"tenants"`
}

// SeedDefinitions loads metric and dimension definitions from a YAML file
// into the registry. Idempotent — definitions that already exist are left
// untouched.
func SeedDefinitions(ctx context.Context, svc *registry.Service, path string) error {
	raw, err := os.ReadFile(path) //nolint:gosec // path comes from config
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	for _, tenant := range seed.Tenants {
		if tenant.TenantID == "" {
			return fmt.Errorf("seed file: tenant with empty tenant_id")
		}
		for _, m := range tenant.Metrics {
			_, err := svc.CreateMetric(ctx, "seed", domain.CreateMetricDefinitionRequest{
				TenantID:      tenant.TenantID,
				Slug:          m.Slug,
				Name:          m.Name,
				SQLExpression: m.SQLExpression,
				SQLTable:      m.SQLTable,
				SQLFilter:     m.SQLFilter,
				DataType:      m.DataType,
				FormatPattern: m.FormatPattern,
				Unit:          m.Unit,
			})
			if err != nil && !isConflict(err) {
				return fmt.Errorf("seed metric %s/%s: %w", tenant.TenantID, m.Slug, err)
			}
		}
		for _, d := range tenant.Dimensions {
			_, err := svc.CreateDimension(ctx, "seed", domain.CreateDimensionDefinitionRequest{
				TenantID:          tenant.TenantID,
				Slug:              d.Slug,
				Name:              d.Name,
				SQLExpression:     d.SQLExpression,
				SQLTable:          d.SQLTable,
				SQLDataType:       d.SQLDataType,
				IsTimeDimension:   d.IsTimeDimension,
				TimeGranularities: d.TimeGranularities,
			})
			if err != nil && !isConflict(err) {
				return fmt.Errorf("seed dimension %s/%s: %w", tenant.TenantID, d.Slug, err)
			}
		}
	}
	return nil
}

func isConflict(err error) bool {
	var conflict *domain.ConflictError
	return errors.As(err, &conflict)
}
