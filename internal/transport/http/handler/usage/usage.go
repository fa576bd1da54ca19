// Package usage serves the request log and usage statistics endpoints.
package usage

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/storage"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/shared"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500

	// defaultUsageDays is the window reported when no start date is given
	defaultUsageDays = 30
)

// Handlers holds the dependencies for usage HTTP handlers.
type Handlers struct {
	Storage storage.Storage
}

// New creates a new instance of usage handlers.
func New(store storage.Storage) *Handlers {
	return &Handlers{Storage: store}
}

// GetRequestLogs handles GET /api/logs.
func (h *Handlers) GetRequestLogs(w http.ResponseWriter, r *http.Request) {
	filter := parseLogFilter(r)

	logs, err := h.Storage.GetRequestLogs(filter)
	if err != nil {
		shared.WriteJSONError(w, "Failed to get request logs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []*storage.RequestLog{}
	}

	shared.WriteJSON(w, map[string]any{
		"logs":   logs,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	}, http.StatusOK)
}

// DeleteRequestLogs handles DELETE /api/logs?older_than=YYYY-MM-DD.
func (h *Handlers) DeleteRequestLogs(w http.ResponseWriter, r *http.Request) {
	olderThan := r.URL.Query().Get("older_than")
	if olderThan == "" {
		shared.WriteJSONError(w, "older_than query parameter is required (format: YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	deleted, err := h.Storage.DeleteRequestLogs(olderThan)
	if errors.Is(err, storage.ErrInvalidInput) {
		shared.WriteJSONError(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if err != nil {
		shared.WriteJSONError(w, "Failed to delete logs: "+err.Error(), http.StatusInternalServerError)
		return
	}

	shared.WriteJSON(w, map[string]any{
		"deleted_count": deleted,
		"older_than":    olderThan,
	}, http.StatusOK)
}

// GetUsage handles GET /api/usage?start=&end=&model=. It returns totals with
// a per-model breakdown and the daily rows for the same window.
func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	end := time.Now().UTC()
	if v := q.Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			shared.WriteJSONError(w, "Invalid end date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end = t
	}
	start := end.AddDate(0, 0, -defaultUsageDays)
	if v := q.Get("start"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			shared.WriteJSONError(w, "Invalid start date. Use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		start = t
	}
	if start.After(end) {
		shared.WriteJSONError(w, "start must not be after end", http.StatusBadRequest)
		return
	}

	stats, err := h.Storage.GetUsageStats(storage.StatsFilter{
		Model:     q.Get("model"),
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		shared.WriteJSONError(w, "Failed to get usage stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	startDate, endDate := start.Format(time.DateOnly), end.Format(time.DateOnly)
	daily, err := h.Storage.GetDailyUsage(startDate, endDate)
	if err != nil {
		shared.WriteJSONError(w, "Failed to get daily usage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if daily == nil {
		daily = []*storage.DailyUsage{}
	}

	shared.WriteJSON(w, map[string]any{
		"stats":      stats,
		"daily":      daily,
		"start_date": startDate,
		"end_date":   endDate,
	}, http.StatusOK)
}

// parseLogFilter creates a LogFilter from query parameters.
// Unparseable values fall back to defaults.
func parseLogFilter(r *http.Request) storage.LogFilter {
	q := r.URL.Query()
	filter := storage.LogFilter{
		Model:    q.Get("model"),
		Provider: q.Get("provider"),
		Limit:    defaultLogLimit,
	}

	if v := q.Get("status_code"); v != "" {
		if code, err := strconv.Atoi(v); err == nil {
			filter.StatusCode = &code
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = min(limit, maxLogLimit)
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if v := q.Get("start"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("end"); v != "" {
		if t, err := time.Parse(time.DateOnly, v); err == nil {
			// Inclusive of the whole end day
			t = t.Add(24*time.Hour - time.Nanosecond)
			filter.EndDate = &t
		}
	}

	return filter
}
