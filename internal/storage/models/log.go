package models

import "time"

// RequestLog records one relay invocation
type RequestLog struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`        // openai or azure
	KeyFingerprint   string    `json:"key_fingerprint"` // never the key itself
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	StatusCode       int       `json:"status_code"`
	FinishReason     string    `json:"finish_reason,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	MidStreamError   bool      `json:"mid_stream_error"` // true when the stream had already opened
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasError reports whether the invocation failed before or during streaming.
func (l *RequestLog) HasError() bool {
	return l.StatusCode >= 400 || l.MidStreamError
}

// LogFilter contains parameters for filtering request logs
type LogFilter struct {
	Model      string
	Provider   string
	StatusCode *int
	StartDate  *time.Time
	EndDate    *time.Time
	Limit      int
	Offset     int
}
