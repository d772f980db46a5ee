package repository

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internaldb "retailmetrics/internal/db"
	"retailmetrics/internal/domain"
)

func setupRegistryRepos(t *testing.T) (*MetricDefinitionRepo, *DimensionDefinitionRepo, *ReportHistoryRepo) {
	t.Helper()
	writeDB, _ := internaldb.OpenTestSQLite(t)
	return NewMetricDefinitionRepo(writeDB), NewDimensionDefinitionRepo(writeDB), NewReportHistoryRepo(writeDB)
}

func TestRegistryRepos_EndToEndCRUD(t *testing.T) {
	metricRepo, dimRepo, _ := setupRegistryRepos(t)
	ctx := context.Background()

	created, err := metricRepo.Create(ctx, &domain.MetricDefinition{
		TenantID:      "tenant-1",
		Slug:          "net_sales",
		Name:          "Net Sales",
		SQLExpression: "SUM(net_sales)",
		SQLTable:      "rm_daily_sales",
		DataType:      "currency",
		Unit:          "USD",
		IsActive:      true,
		CreatedBy:     "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "SUM(net_sales)", created.SQLExpression)
	assert.True(t, created.IsActive)

	t.Run("duplicate slug conflicts", func(t *testing.T) {
		_, err := metricRepo.Create(ctx, &domain.MetricDefinition{
			TenantID:      "tenant-1",
			Slug:          "net_sales",
			Name:          "Net Sales Again",
			SQLExpression: "SUM(net_sales)",
			SQLTable:      "rm_daily_sales",
			CreatedBy:     "admin",
		})
		var conflict *domain.ConflictError
		require.ErrorAs(t, err, &conflict)
	})

	t.Run("same slug under another tenant is fine", func(t *testing.T) {
		other, err := metricRepo.Create(ctx, &domain.MetricDefinition{
			TenantID:      "tenant-2",
			Slug:          "net_sales",
			Name:          "Net Sales",
			SQLExpression: "SUM(net_sales)",
			SQLTable:      "rm_daily_sales",
			IsActive:      true,
			CreatedBy:     "admin",
		})
		require.NoError(t, err)
		assert.NotEqual(t, created.ID, other.ID)
	})

	t.Run("metric update", func(t *testing.T) {
		name := "Net Sales (ex tax)"
		inactive := false
		updated, err := metricRepo.Update(ctx, "tenant-1", "net_sales", domain.UpdateMetricDefinitionRequest{
			Name:     &name,
			IsActive: &inactive,
		})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Name)
		assert.False(t, updated.IsActive)
		assert.Equal(t, created.SQLExpression, updated.SQLExpression)
	})

	t.Run("metric get and list", func(t *testing.T) {
		got, err := metricRepo.GetBySlug(ctx, "tenant-1", "net_sales")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)

		metrics, total, err := metricRepo.ListByTenant(ctx, "tenant-1", domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, metrics, 1)
	})

	t.Run("metric delete", func(t *testing.T) {
		require.NoError(t, metricRepo.Delete(ctx, "tenant-1", "net_sales"))

		var notFound *domain.NotFoundError
		_, err := metricRepo.GetBySlug(ctx, "tenant-1", "net_sales")
		require.ErrorAs(t, err, &notFound)

		err = metricRepo.Delete(ctx, "tenant-1", "net_sales")
		require.ErrorAs(t, err, &notFound)
	})

	createdDim, err := dimRepo.Create(ctx, &domain.DimensionDefinition{
		TenantID:          "tenant-1",
		Slug:              "date",
		Name:              "Business Date",
		SQLExpression:     "business_date",
		SQLTable:          "rm_daily_sales",
		SQLDataType:       "DATE",
		IsTimeDimension:   true,
		TimeGranularities: []string{"day", "week", "month"},
		IsActive:          true,
		CreatedBy:         "admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, createdDim.ID)
	assert.Equal(t, []string{"day", "week", "month"}, createdDim.TimeGranularities)

	t.Run("dimension roundtrips granularities", func(t *testing.T) {
		got, err := dimRepo.GetBySlug(ctx, "tenant-1", "date")
		require.NoError(t, err)
		assert.True(t, got.IsTimeDimension)
		assert.Equal(t, []string{"day", "week", "month"}, got.TimeGranularities)
	})

	t.Run("dimension update", func(t *testing.T) {
		grans := []string{"day", "month"}
		updated, err := dimRepo.Update(ctx, "tenant-1", "date", domain.UpdateDimensionDefinitionRequest{
			TimeGranularities: grans,
		})
		require.NoError(t, err)
		assert.Equal(t, grans, updated.TimeGranularities)
	})
}

func TestMetricDefinitionRepo_ListBySlugs(t *testing.T) {
	metricRepo, _, _ := setupRegistryRepos(t)
	ctx := context.Background()

	for _, slug := range []string{"net_sales", "order_count", "avg_ticket"} {
		_, err := metricRepo.Create(ctx, &domain.MetricDefinition{
			TenantID:      "tenant-1",
			Slug:          slug,
			Name:          slug,
			SQLExpression: "SUM(x)",
			SQLTable:      "rm_daily_sales",
			IsActive:      true,
			CreatedBy:     "admin",
		})
		require.NoError(t, err)
	}

	metrics, err := metricRepo.ListBySlugs(ctx, "tenant-1", []string{"order_count", "net_sales", "unknown"})
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	metrics, err = metricRepo.ListBySlugs(ctx, "tenant-2", []string{"net_sales"})
	require.NoError(t, err)
	assert.Empty(t, metrics)

	metrics, err = metricRepo.ListBySlugs(ctx, "tenant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestReportHistoryRepo_InsertAndList(t *testing.T) {
	_, _, historyRepo := setupRegistryRepos(t)
	ctx := context.Background()

	rowCount := int64(42)
	duration := int64(17)
	require.NoError(t, historyRepo.Insert(ctx, &domain.ReportQueryRecord{
		TenantID:     "tenant-1",
		PrincipalID:  "user-1",
		SQL:          "SELECT 1",
		Status:       "OK",
		RowCount:     &rowCount,
		DurationMs:   &duration,
		WarningCount: 1,
	}))

	errMsg := "date range spans 400 days"
	require.NoError(t, historyRepo.Insert(ctx, &domain.ReportQueryRecord{
		TenantID:     "tenant-1",
		PrincipalID:  "user-1",
		SQL:          "",
		Status:       "ERROR",
		ErrorMessage: &errMsg,
	}))

	records, total, err := historyRepo.ListByTenant(ctx, "tenant-1", domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "tenant-1", rec.TenantID)
	}

	records, total, err = historyRepo.ListByTenant(ctx, "tenant-other", domain.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, records)
}
