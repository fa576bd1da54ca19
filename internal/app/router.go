package app

import (
	"log/slog"
	"net/http"

	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/middleware"
)

// RouterOptions configures the HTTP router behavior.
type RouterOptions struct {
	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router with all application routes.
// Returns an http.Handler with middleware applied.
func NewRouter(repo *handler.Repo, opts *RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", repo.Infra.HealthCheck)
	mux.HandleFunc("POST /api/chat", repo.Chat.Chat)

	// Request log routes exist only with storage enabled
	if repo.Usage != nil {
		mux.HandleFunc("GET /api/logs", repo.Usage.GetRequestLogs)
		mux.HandleFunc("DELETE /api/logs", repo.Usage.DeleteRequestLogs)
		mux.HandleFunc("GET /api/usage", repo.Usage.GetUsage)
	}

	mux.HandleFunc("GET /", repo.Infra.RootStatus)

	// Apply middleware chain (order: outer to inner)
	var h http.Handler = mux

	if opts != nil && opts.Logger != nil {
		h = middleware.RequestLogger(opts.Logger)(h)
	}

	// CORS answers preflight itself, so it sits inside RequestID
	h = middleware.CORS(h)

	// Request ID is outermost so every response carries it
	h = middleware.RequestID(h)

	return h
}
