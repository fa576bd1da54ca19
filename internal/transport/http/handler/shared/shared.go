// Package shared holds JSON response helpers used by the HTTP handlers.
package shared

import (
	"encoding/json"
	"net/http"

	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteJSONError writes an error in the same envelope the chat endpoint uses.
func WriteJSONError(w http.ResponseWriter, message string, status int) {
	errType := types.ErrorTypeServer
	if status < http.StatusInternalServerError {
		errType = types.ErrorTypeInvalidRequest
	}
	types.WriteError(w, status, types.NewAPIError(message, errType))
}
