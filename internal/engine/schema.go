package engine

import (
	"context"
	"database/sql"
	"fmt"
)

// reportingTables is the warehouse DDL for the pre-aggregated reporting
// tables. Rollup jobs own the real tables in production; creating them
// here keeps a fresh database queryable.
var reportingTables = []string{
	`CREATE TABLE IF NOT EXISTS rm_daily_sales (
		tenant_id     VARCHAR NOT NULL,
		location_id   VARCHAR NOT NULL,
		business_date DATE    NOT NULL,
		channel       VARCHAR NOT NULL,
		net_sales     DECIMAL(18,2) NOT NULL DEFAULT 0,
		gross_sales   DECIMAL(18,2) NOT NULL DEFAULT 0,
		tax_total     DECIMAL(18,2) NOT NULL DEFAULT 0,
		discount_total DECIMAL(18,2) NOT NULL DEFAULT 0,
		order_count   BIGINT NOT NULL DEFAULT 0,
		guest_count   BIGINT NOT NULL DEFAULT 0,
		voided        BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS rm_item_sales (
		tenant_id     VARCHAR NOT NULL,
		location_id   VARCHAR NOT NULL,
		business_date DATE    NOT NULL,
		channel       VARCHAR NOT NULL,
		item_id       VARCHAR NOT NULL,
		item_name     VARCHAR NOT NULL,
		category_name VARCHAR,
		quantity      BIGINT NOT NULL DEFAULT 0,
		net_sales     DECIMAL(18,2) NOT NULL DEFAULT 0,
		voided        BOOLEAN NOT NULL DEFAULT FALSE
	)`,
}

// EnsureReportingTables creates the reporting tables if they do not exist.
func EnsureReportingTables(ctx context.Context, db *sql.DB) error {
	for _, ddl := range reportingTables {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create reporting table: %w", err)
		}
	}
	return nil
}
