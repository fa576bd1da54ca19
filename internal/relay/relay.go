// Package relay turns an upstream chat completion event stream into a plain
// text byte stream.
//
// A Relay makes exactly one upstream call per Stream invocation. Rejections
// by the provider are returned as errors before any stream exists; once a
// Stream is returned it carries only the concatenated text deltas.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// errorPrefix starts the message of every OpaqueError.
const errorPrefix = "OpenAI API returned an error: "

// Params are the inputs of one relay invocation.
type Params struct {
	Model        types.Model
	SystemPrompt string
	Temperature  float64
	APIKey       string
	Messages     []types.Message

	// RequestID is attached to log records only
	RequestID string
}

// Relay issues upstream calls and opens output streams.
type Relay struct {
	builder *Builder
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Relay) {
		r.client = client
	}
}

// WithLogger sets the logger used for upstream diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// New creates a Relay for the given provider.
func New(provider config.ProviderConfig, opts ...Option) *Relay {
	r := &Relay{
		builder: NewBuilder(provider),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		// Compressed event streams cannot be decoded incrementally.
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.DisableCompression = true
		r.client = &http.Client{Transport: transport}
	}
	return r
}

// Builder returns the request builder used by the relay.
func (r *Relay) Builder() *Builder {
	return r.builder
}

// Stream performs the upstream call. On a 200 response it returns an open
// Stream; the caller must Close it. Any other status yields an *UpstreamError
// or *OpaqueError and no stream.
func (r *Relay) Stream(ctx context.Context, p Params) (*Stream, error) {
	start := time.Now()
	logger := r.logger.With("request_id", p.RequestID, "model", p.Model.ID)

	req, err := r.builder.Build(p.Model, p.SystemPrompt, p.Temperature, p.APIKey, p.Messages)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	logger.Debug("upstream responded",
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer resp.Body.Close()
		rejection := rejectionError(resp)
		logger.Warn("upstream rejected request", "status", resp.StatusCode, "error", rejection)
		return nil, rejection
	}

	return newStream(resp.Body, cancel, start, logger), nil
}

// errorEnvelope accepts string or numeric param/code values.
type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Param   any    `json:"param"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// rejectionError reads a non-200 response body into a typed error.
func rejectionError(resp *http.Response) error {
	statusText := http.StatusText(resp.StatusCode)
	if statusText == "" {
		statusText = resp.Status
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &OpaqueError{StatusCode: resp.StatusCode, Message: errorPrefix + statusText}
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		message := env.Error.Message
		if message == "" {
			message = statusText
		}
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Type:       env.Error.Type,
			Param:      stringify(env.Error.Param),
			Code:       stringify(env.Error.Code),
		}
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		raw = statusText
	}
	return &OpaqueError{StatusCode: resp.StatusCode, Message: errorPrefix + raw}
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
