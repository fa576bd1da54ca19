// Package handler composes the HTTP handlers of the relay service.
package handler

import (
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/chat"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/infra"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/handler/usage"
)

// Repo composes all domain-specific handlers.
type Repo struct {
	Chat  *chat.Handlers
	Infra *infra.Handlers

	// Usage is nil when request logging is disabled
	Usage *usage.Handlers
}

// NewRepo creates a new instance of the composed handler repository.
// The usage handlers are only created when chat has a store to read from.
func NewRepo(chatHandlers *chat.Handlers, provider string) *Repo {
	repo := &Repo{
		Chat:  chatHandlers,
		Infra: infra.New(time.Now(), provider),
	}
	if chatHandlers.Storage != nil {
		repo.Usage = usage.New(chatHandlers.Storage)
	}
	return repo
}
