// Package types provides OpenAI-compatible type definitions for chat completions.
package types

// Role constants for message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged entry of a conversation transcript.
// Transcripts are ordered oldest first.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Model identifies the target model. Only ID is sent upstream.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// NewTextMessage creates a simple text message.
func NewTextMessage(role, content string) Message {
	return Message{
		Role:    role,
		Content: content,
	}
}
