// Package api provides the JSON HTTP handlers for the reporting service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"retailmetrics/internal/domain"
	"retailmetrics/internal/registry"
	"retailmetrics/internal/service/reporting"
)

// Handler serves the report query and definition registry endpoints.
type Handler struct {
	reporting *reporting.Service
	registry  *registry.Service
	logger    *slog.Logger
}

// NewHandler creates a new API Handler.
func NewHandler(reportingSvc *reporting.Service, registrySvc *registry.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reporting: reportingSvc, registry: registrySvc, logger: logger.With("component", "api")}
}

// Routes registers the authenticated API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/reports/query", h.runReport)
	r.Post("/reports/explain", h.explainReport)
	r.Get("/reports/history", h.listHistory)

	r.Route("/registry/metrics", func(r chi.Router) {
		r.Post("/", h.createMetric)
		r.Get("/", h.listMetrics)
		r.Get("/{slug}", h.getMetric)
		r.Patch("/{slug}", h.updateMetric)
		r.Delete("/{slug}", h.deleteMetric)
	})
	r.Route("/registry/dimensions", func(r chi.Router) {
		r.Post("/", h.createDimension)
		r.Get("/", h.listDimensions)
		r.Get("/{slug}", h.getDimension)
		r.Patch("/{slug}", h.updateDimension)
		r.Delete("/{slug}", h.deleteDimension)
	})
}

// Healthz is the unauthenticated liveness endpoint.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- report endpoints ---

type filterJSON struct {
	Dimension  string        `json:"dimension"`
	Operator   string        `json:"operator"`
	Value      interface{}   `json:"value,omitempty"`
	Values     []interface{} `json:"values,omitempty"`
	RangeStart interface{}   `json:"range_start,omitempty"`
	RangeEnd   interface{}   `json:"range_end,omitempty"`
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type sortJSON struct {
	Metric    string `json:"metric"`
	Direction string `json:"direction"`
}

type queryPlanJSON struct {
	Metrics         []string       `json:"metrics"`
	Dimensions      []string       `json:"dimensions,omitempty"`
	Filters         []filterJSON   `json:"filters,omitempty"`
	DateRange       *dateRangeJSON `json:"date_range,omitempty"`
	TimeGranularity string         `json:"time_granularity,omitempty"`
	Sort            []sortJSON     `json:"sort,omitempty"`
	Limit           *int           `json:"limit,omitempty"`
}

func (p queryPlanJSON) toDomain() domain.QueryPlan {
	plan := domain.QueryPlan{
		Metrics:         p.Metrics,
		Dimensions:      p.Dimensions,
		TimeGranularity: p.TimeGranularity,
		Limit:           p.Limit,
	}
	for _, f := range p.Filters {
		plan.Filters = append(plan.Filters, domain.FilterClause{
			DimensionSlug: f.Dimension,
			Operator:      f.Operator,
			Value:         f.Value,
			Values:        f.Values,
			RangeStart:    f.RangeStart,
			RangeEnd:      f.RangeEnd,
		})
	}
	if p.DateRange != nil {
		plan.DateRange = &domain.DateRange{Start: p.DateRange.Start, End: p.DateRange.End}
	}
	for _, s := range p.Sort {
		plan.Sort = append(plan.Sort, domain.SortClause{MetricSlug: s.Metric, Direction: s.Direction})
	}
	return plan
}

func (h *Handler) compilerInput(r *http.Request, plan queryPlanJSON) (domain.CompilerInput, bool) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		return domain.CompilerInput{}, false
	}
	return domain.CompilerInput{
		Plan:       plan.toDomain(),
		TenantID:   tc.TenantID,
		LocationID: tc.LocationID,
	}, true
}

func (h *Handler) runReport(w http.ResponseWriter, r *http.Request) {
	var plan queryPlanJSON
	if !h.decode(w, r, &plan) {
		return
	}
	in, ok := h.compilerInput(r, plan)
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}

	res, err := h.reporting.Run(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns":     res.Columns,
		"rows":        res.Rows,
		"row_count":   res.RowCount,
		"warnings":    res.Warnings,
		"duration_ms": res.DurationMs,
	})
}

func (h *Handler) explainReport(w http.ResponseWriter, r *http.Request) {
	var plan queryPlanJSON
	if !h.decode(w, r, &plan) {
		return
	}
	in, ok := h.compilerInput(r, plan)
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}

	compiled, err := h.reporting.Explain(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sql":           compiled.SQL,
		"params":        compiled.Params,
		"primary_table": compiled.PrimaryTable,
		"join_tables":   compiled.JoinTables,
		"warnings":      compiled.Warnings,
	})
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	page := pageFromQuery(r)

	records, total, err := h.reporting.History(r.Context(), tc.TenantID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		items = append(items, map[string]interface{}{
			"id":            rec.ID,
			"principal_id":  rec.PrincipalID,
			"sql":           rec.SQL,
			"status":        rec.Status,
			"error_message": rec.ErrorMessage,
			"row_count":     rec.RowCount,
			"duration_ms":   rec.DurationMs,
			"warning_count": rec.WarningCount,
			"created_at":    rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history":         items,
		"total":           total,
		"next_page_token": domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

// --- metric registry endpoints ---

type metricJSON struct {
	Slug          string `json:"slug"`
	Name          string `json:"name"`
	SQLExpression string `json:"sql_expression"`
	SQLTable      string `json:"sql_table"`
	SQLFilter     string `json:"sql_filter,omitempty"`
	DataType      string `json:"data_type,omitempty"`
	FormatPattern string `json:"format_pattern,omitempty"`
	Unit          string `json:"unit,omitempty"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

func metricToJSON(m *domain.MetricDefinition) map[string]interface{} {
	return map[string]interface{}{
		"slug":           m.Slug,
		"name":           m.Name,
		"sql_expression": m.SQLExpression,
		"sql_table":      m.SQLTable,
		"sql_filter":     m.SQLFilter,
		"data_type":      m.DataType,
		"format_pattern": m.FormatPattern,
		"unit":           m.Unit,
		"is_active":      m.IsActive,
		"created_by":     m.CreatedBy,
		"created_at":     m.CreatedAt,
		"updated_at":     m.UpdatedAt,
	}
}

func (h *Handler) createMetric(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	var body metricJSON
	if !h.decode(w, r, &body) {
		return
	}

	created, err := h.registry.CreateMetric(r.Context(), tc.PrincipalID, domain.CreateMetricDefinitionRequest{
		TenantID:      tc.TenantID,
		Slug:          body.Slug,
		Name:          body.Name,
		SQLExpression: body.SQLExpression,
		SQLTable:      body.SQLTable,
		SQLFilter:     body.SQLFilter,
		DataType:      body.DataType,
		FormatPattern: body.FormatPattern,
		Unit:          body.Unit,
		IsActive:      body.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, metricToJSON(created))
}

func (h *Handler) listMetrics(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	page := pageFromQuery(r)

	metrics, total, err := h.registry.ListMetrics(r.Context(), tc.TenantID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(metrics))
	for i := range metrics {
		items = append(items, metricToJSON(&metrics[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":         items,
		"total":           total,
		"next_page_token": domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) getMetric(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}

	m, err := h.registry.GetMetric(r.Context(), tc.TenantID, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metricToJSON(m))
}

func (h *Handler) updateMetric(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	var body struct {
		Name          *string `json:"name"`
		SQLExpression *string `json:"sql_expression"`
		SQLTable      *string `json:"sql_table"`
		SQLFilter     *string `json:"sql_filter"`
		DataType      *string `json:"data_type"`
		FormatPattern *string `json:"format_pattern"`
		Unit          *string `json:"unit"`
		IsActive      *bool   `json:"is_active"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	updated, err := h.registry.UpdateMetric(r.Context(), tc.TenantID, chi.URLParam(r, "slug"), domain.UpdateMetricDefinitionRequest{
		Name:          body.Name,
		SQLExpression: body.SQLExpression,
		SQLTable:      body.SQLTable,
		SQLFilter:     body.SQLFilter,
		DataType:      body.DataType,
		FormatPattern: body.FormatPattern,
		Unit:          body.Unit,
		IsActive:      body.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metricToJSON(updated))
}

func (h *Handler) deleteMetric(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	if err := h.registry.DeleteMetric(r.Context(), tc.TenantID, chi.URLParam(r, "slug")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- dimension registry endpoints ---

type dimensionJSON struct {
	Slug              string   `json:"slug"`
	Name              string   `json:"name"`
	SQLExpression     string   `json:"sql_expression"`
	SQLTable          string   `json:"sql_table"`
	SQLDataType       string   `json:"sql_data_type,omitempty"`
	IsTimeDimension   bool     `json:"is_time_dimension,omitempty"`
	TimeGranularities []string `json:"time_granularities,omitempty"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

func dimensionToJSON(d *domain.DimensionDefinition) map[string]interface{} {
	return map[string]interface{}{
		"slug":               d.Slug,
		"name":               d.Name,
		"sql_expression":     d.SQLExpression,
		"sql_table":          d.SQLTable,
		"sql_data_type":      d.SQLDataType,
		"is_time_dimension":  d.IsTimeDimension,
		"time_granularities": d.TimeGranularities,
		"is_active":          d.IsActive,
		"created_by":         d.CreatedBy,
		"created_at":         d.CreatedAt,
		"updated_at":         d.UpdatedAt,
	}
}

func (h *Handler) createDimension(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	var body dimensionJSON
	if !h.decode(w, r, &body) {
		return
	}

	created, err := h.registry.CreateDimension(r.Context(), tc.PrincipalID, domain.CreateDimensionDefinitionRequest{
		TenantID:          tc.TenantID,
		Slug:              body.Slug,
		Name:              body.Name,
		SQLExpression:     body.SQLExpression,
		SQLTable:          body.SQLTable,
		SQLDataType:       body.SQLDataType,
		IsTimeDimension:   body.IsTimeDimension,
		TimeGranularities: body.TimeGranularities,
		IsActive:          body.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dimensionToJSON(created))
}

func (h *Handler) listDimensions(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	page := pageFromQuery(r)

	dims, total, err := h.registry.ListDimensions(r.Context(), tc.TenantID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]map[string]interface{}, 0, len(dims))
	for i := range dims {
		items = append(items, dimensionToJSON(&dims[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dimensions":      items,
		"total":           total,
		"next_page_token": domain.NextPageToken(page.Offset(), page.Limit(), total),
	})
}

func (h *Handler) getDimension(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}

	d, err := h.registry.GetDimension(r.Context(), tc.TenantID, chi.URLParam(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dimensionToJSON(d))
}

func (h *Handler) updateDimension(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	var body struct {
		Name              *string  `json:"name"`
		SQLExpression     *string  `json:"sql_expression"`
		SQLTable          *string  `json:"sql_table"`
		SQLDataType       *string  `json:"sql_data_type"`
		IsTimeDimension   *bool    `json:"is_time_dimension"`
		TimeGranularities []string `json:"time_granularities"`
		IsActive          *bool    `json:"is_active"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	updated, err := h.registry.UpdateDimension(r.Context(), tc.TenantID, chi.URLParam(r, "slug"), domain.UpdateDimensionDefinitionRequest{
		Name:              body.Name,
		SQLExpression:     body.SQLExpression,
		SQLTable:          body.SQLTable,
		SQLDataType:       body.SQLDataType,
		IsTimeDimension:   body.IsTimeDimension,
		TimeGranularities: body.TimeGranularities,
		IsActive:          body.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dimensionToJSON(updated))
}

func (h *Handler) deleteDimension(w http.ResponseWriter, r *http.Request) {
	tc, ok := domain.TenantFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrAccessDenied("no tenant in request context"))
		return
	}
	if err := h.registry.DeleteDimension(r.Context(), tc.TenantID, chi.URLParam(r, "slug")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func pageFromQuery(r *http.Request) domain.PageRequest {
	p := domain.PageRequest{PageToken: r.URL.Query().Get("page_token")}
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.MaxResults = n
		}
	}
	return p
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, r, domain.ErrValidation("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]interface{}{
		"code":    errorCodeFromError(err),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
