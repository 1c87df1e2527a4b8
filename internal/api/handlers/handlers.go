// Package handlers implements the dashboard's HTTP API. Fetch failures never
// take the page down: the response stays HTTP 200 and carries an error banner
// plus an empty render, so the user sees the failure instead of old numbers.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/budget"
	"github.com/dvloznov/finance-dashboard/internal/charts"
	"github.com/dvloznov/finance-dashboard/internal/dataset"
	"github.com/dvloznov/finance-dashboard/internal/export"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/sheets"
)

// FetchError is the banner payload describing a failed sheet fetch.
type FetchError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// fetchErrorFrom maps the data source error taxonomy to a banner.
func fetchErrorFrom(err error) *FetchError {
	if err == nil {
		return nil
	}

	kind := "unknown"
	switch {
	case errors.Is(err, sheets.ErrSheetNotFound):
		kind = "sheet_not_found"
	case errors.Is(err, sheets.ErrAccessDenied):
		kind = "access_denied"
	case errors.Is(err, sheets.ErrAuthRejected):
		kind = "auth_rejected"
	case errors.Is(err, sheets.ErrTransientNetwork):
		kind = "transient_network"
	case errors.Is(err, sheets.ErrSchemaMismatch):
		kind = "schema_mismatch"
	}
	return &FetchError{Kind: kind, Message: err.Error()}
}

// DashboardHandler serves the dashboard, records, settings and export
// endpoints.
type DashboardHandler struct {
	cache *Cache
	store budget.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(cache *Cache, store budget.Store, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{cache: cache, store: store, log: log, now: time.Now}
}

// recordPayload is the JSON shape of one expense row.
type recordPayload struct {
	Date        string            `json:"date"`
	Class       string            `json:"class"`
	Value       float64           `json:"value"`
	Description string            `json:"description,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
	Malformed   bool              `json:"malformed,omitempty"`
	RawValue    string            `json:"raw_value,omitempty"`
}

func recordsPayload(ds *dataset.Dataset) []recordPayload {
	result := make([]recordPayload, 0, ds.Len())
	for _, rec := range ds.Records() {
		p := recordPayload{
			Date:        rec.Date.String(),
			Class:       rec.Category,
			Value:       rec.Amount.InexactFloat64(),
			Description: rec.Description,
			Extra:       rec.Extra,
			Malformed:   rec.Malformed,
		}
		if rec.Malformed {
			p.RawValue = rec.RawAmount
		}
		result = append(result, p)
	}
	return result
}

// currentSummary builds the month's summary. Live data wins; persisted
// snapshots fill in when no fetch has happened yet. After a failed fetch the
// summary is zeroed so the page renders an error state, not old numbers.
func (h *DashboardHandler) currentSummary(r *http.Request, current *dataset.Dataset, month string, fetchFailed bool) (budget.MonthlySummary, error) {
	settings, err := h.store.Settings(r.Context())
	if err != nil {
		return budget.MonthlySummary{}, fmt.Errorf("loading settings: %w", err)
	}

	if current != nil {
		return summaryFromDataset(settings, current, month), nil
	}
	if fetchFailed {
		return budget.Summarize(settings, nil, month), nil
	}

	snapshots, err := h.store.ListSnapshots(r.Context(), month)
	if err != nil {
		return budget.MonthlySummary{}, fmt.Errorf("listing snapshots: %w", err)
	}
	return budget.Summarize(settings, snapshots, month), nil
}

// parseDateParam parses an optional YYYY-MM-DD query value; empty means
// unbounded.
func parseDateParam(raw string) (civil.Date, error) {
	if raw == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(raw)
}

func summaryFromDataset(settings budget.Settings, ds *dataset.Dataset, month string) budget.MonthlySummary {
	summary := budget.MonthlySummary{
		Month:           month,
		TotalAmount:     ds.Total(),
		TotalByClass:    make(map[string]decimal.Decimal),
		DaysRecorded:    len(ds.DailyTotals()),
		ExpectedAmounts: budget.ExpectedAmounts(settings),
		ExpectedRevenue: settings.MonthlyExpectedRevenue,
	}
	for _, class := range settings.Classes() {
		summary.TotalByClass[class] = decimal.Zero
	}
	for class, total := range ds.TotalByCategory() {
		summary.TotalByClass[class] = total
	}
	return summary
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	month := now.Format("2006-01")

	state := h.cache.State()

	var current *dataset.Dataset
	if state.Dataset != nil {
		current = state.Dataset.CurrentMonth(now)
	}

	summary, err := h.currentSummary(r, current, month, state.Err != nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	var daily []dataset.DailyTotal
	recordCount, malformedCount := 0, 0
	if current != nil {
		daily = current.DailyTotals()
		recordCount = current.Len()
		malformedCount = current.MalformedCount()
	}

	payload := map[string]interface{}{
		"month":           month,
		"record_count":    recordCount,
		"malformed_count": malformedCount,
		"summary":         summary,
		"figures": map[string]charts.Figure{
			"overview":   charts.BudgetOverview(summary),
			"pie":        charts.ExpensePie(summary),
			"comparison": charts.ClassComparison(summary),
			"daily":      charts.DailyTrend(daily),
		},
	}
	if !state.RefreshedAt.IsZero() {
		payload["refreshed_at"] = state.RefreshedAt.Format(time.RFC3339)
	}
	if banner := fetchErrorFrom(state.Err); banner != nil {
		payload["fetch_error"] = banner
	}

	middleware.WriteJSON(w, http.StatusOK, payload)
}

// ListRecords handles GET /api/records
func (h *DashboardHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	state := h.cache.State()
	if state.Dataset == nil {
		payload := map[string]interface{}{
			"records": []recordPayload{},
			"count":   0,
		}
		if banner := fetchErrorFrom(state.Err); banner != nil {
			payload["fetch_error"] = banner
		}
		middleware.WriteJSON(w, http.StatusOK, payload)
		return
	}

	q := r.URL.Query()

	// An explicit date range overrides the current-month default.
	current := state.Dataset.CurrentMonth(now)
	if q.Get("start_date") != "" || q.Get("end_date") != "" {
		start, err := parseDateParam(q.Get("start_date"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
			return
		}
		end, err := parseDateParam(q.Get("end_date"))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
			return
		}
		current = state.Dataset.FilterDateRange(start, end)
	}
	if category := q.Get("category"); category != "" {
		current = current.FilterCategory(category)
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records":         recordsPayload(current),
		"count":           current.Len(),
		"malformed_count": current.MalformedCount(),
	})
}

// GetSummary handles GET /api/summary
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")

	if month == "" {
		// Default to the current month, served from live data.
		h.serveCurrentMonthSummary(w, r)
		return
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	settings, err := h.store.Settings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	snapshots, err := h.store.ListSnapshots(r.Context(), month)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list snapshots")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, budget.Summarize(settings, snapshots, month))
}

func (h *DashboardHandler) serveCurrentMonthSummary(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	month := now.Format("2006-01")

	state := h.cache.State()
	var current *dataset.Dataset
	if state.Dataset != nil {
		current = state.Dataset.CurrentMonth(now)
	}

	summary, err := h.currentSummary(r, current, month, state.Err != nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// GetSettings handles GET /api/settings
func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /api/settings
func (h *DashboardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MonthlyExpectedRevenue float64            `json:"monthly_expected_revenue"`
		ClassPercentages       map[string]float64 `json:"expense_class_percentages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MonthlyExpectedRevenue <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "monthly_expected_revenue must be positive")
		return
	}

	revenue := decimal.NewFromFloat(req.MonthlyExpectedRevenue)
	if err := h.store.UpdateSettings(r.Context(), revenue, req.ClassPercentages); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.store.Settings(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reload settings")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reload settings")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, settings)
}

// Export handles GET /api/export
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	month := now.Format("2006-01")

	state := h.cache.State()
	current := dataset.New(nil, nil)
	if state.Dataset != nil {
		current = state.Dataset.CurrentMonth(now)
	}

	summary, err := h.currentSummary(r, current, month, state.Err != nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	// Build the whole workbook before committing the response, so a build
	// failure becomes a 500 instead of a truncated download.
	var buf bytes.Buffer
	if err := export.Workbook(&buf, current, summary); err != nil {
		h.log.Error().Err(err).Msg("Failed to build workbook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build workbook")
		return
	}

	filename := fmt.Sprintf("expenses-%s.xlsx", month)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if _, err := w.Write(buf.Bytes()); err != nil {
		h.log.Error().Err(err).Msg("Failed to write workbook")
	}
}

// RefreshHandler enqueues manual refreshes.
type RefreshHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewRefreshHandler creates a refresh handler.
func NewRefreshHandler(publisher jobs.Publisher, log zerolog.Logger) *RefreshHandler {
	return &RefreshHandler{publisher: publisher, log: log}
}

// EnqueueRefresh handles POST /api/refresh
func (h *RefreshHandler) EnqueueRefresh(w http.ResponseWriter, r *http.Request) {
	job := &jobs.RefreshJob{Trigger: jobs.TriggerManual}
	if err := h.publisher.PublishRefresh(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue refresh")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue refresh")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// JobsHandler serves job status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		Trigger: jobs.Trigger(r.URL.Query().Get("trigger")),
		Status:  jobs.JobStatus(r.URL.Query().Get("status")),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/:jobId
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
