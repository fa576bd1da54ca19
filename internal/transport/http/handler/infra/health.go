package infra

import (
	"net/http"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/shared"
	"github.com/JustDoIt8888/chatbot-ui/internal/version"
)

// RootStatus returns JSON status and version information at /.
func (h *Handlers) RootStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		shared.WriteJSONError(w, "Not found", http.StatusNotFound)
		return
	}
	shared.WriteJSON(w, map[string]any{
		"name":     "chatrelay",
		"version":  version.Version,
		"status":   "running",
		"provider": h.Provider,
		"api":      "/api/chat",
	}, http.StatusOK)
}

// HealthCheck handler returns the application health status.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, map[string]any{
		"status":         "active",
		"app":            "chatrelay",
		"uptime_seconds": int64(time.Since(h.StartTime).Seconds()),
	}, http.StatusOK)
}
