package types

// MaxTokens is the completion budget sent with every upstream request.
const MaxTokens = 1000

// ChatCompletionRequest is the upstream streaming chat completion body.
// Model is omitted for deployments that encode the model in the URL.
type ChatCompletionRequest struct {
	Model       string    `json:"model,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// ChatBody is the JSON body the browser posts to /api/chat.
type ChatBody struct {
	Model       Model     `json:"model"`
	Messages    []Message `json:"messages"`
	Key         string    `json:"key"`
	Prompt      string    `json:"prompt"`
	Temperature *float64  `json:"temperature,omitempty"` // nil means use the configured default
}
