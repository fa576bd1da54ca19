package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// Header names set on upstream requests.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "api-key"
	HeaderOrganization  = "OpenAI-Organization"
)

// Request describes an upstream chat completion call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// HTTPRequest converts the descriptor into an *http.Request bound to ctx.
func (r *Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, err
	}
	req.Header = r.Header.Clone()
	return req, nil
}

// Builder assembles upstream requests for one provider configuration.
// It performs no I/O.
type Builder struct {
	provider config.ProviderConfig
}

// NewBuilder creates a Builder for the given provider. Trailing slashes on
// the host are dropped.
func NewBuilder(provider config.ProviderConfig) *Builder {
	provider.Host = strings.TrimRight(provider.Host, "/")
	return &Builder{provider: provider}
}

// Build returns the request for a streaming completion. The system prompt is
// always sent first, ahead of messages. An empty apiKey falls back to the
// provider's default key.
func (b *Builder) Build(model types.Model, systemPrompt string, temperature float64, apiKey string, messages []types.Message) (*Request, error) {
	if apiKey == "" {
		apiKey = b.provider.APIKey
	}
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	body := types.ChatCompletionRequest{
		Messages:    make([]types.Message, 0, len(messages)+1),
		MaxTokens:   types.MaxTokens,
		Temperature: temperature,
		Stream:      true,
	}
	body.Messages = append(body.Messages, types.NewTextMessage(types.RoleSystem, systemPrompt))
	body.Messages = append(body.Messages, messages...)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	var target string
	if b.provider.IsAzure() {
		// The deployment fixes the model, so it stays out of the body.
		target = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			b.provider.Host, url.PathEscape(b.provider.DeploymentID), url.QueryEscape(b.provider.APIVersion))
		header.Set(HeaderAPIKey, apiKey)
	} else {
		target = b.provider.Host + "/v1/chat/completions"
		body.Model = model.ID
		header.Set(HeaderAuthorization, "Bearer "+apiKey)
		if b.provider.Organization != "" {
			header.Set(HeaderOrganization, b.provider.Organization)
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	return &Request{
		Method: http.MethodPost,
		URL:    target,
		Header: header,
		Body:   payload,
	}, nil
}
