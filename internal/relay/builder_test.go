package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

var (
	openAIProvider = config.ProviderConfig{
		Type:         config.ProviderOpenAI,
		Host:         "https://api.openai.com",
		Organization: "org-123",
		APIKey:       "sk-default",
	}
	azureProvider = config.ProviderConfig{
		Type:         config.ProviderAzure,
		Host:         "https://res.openai.azure.com",
		DeploymentID: "gpt-35-turbo",
		APIVersion:   "2023-03-15-preview",
		Organization: "org-ignored",
		APIKey:       "azure-default",
	}
	testModel = types.Model{ID: "gpt-3.5-turbo", Name: "GPT-3.5"}
)

// decodeBody returns the request body as a generic map.
func decodeBody(t *testing.T, req *Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	return body
}

func TestBuilder_OpenAI(t *testing.T) {
	b := NewBuilder(openAIProvider)
	messages := []types.Message{
		{Role: types.RoleUser, Content: "hi"},
		{Role: types.RoleAssistant, Content: "hello"},
		{Role: types.RoleUser, Content: "how are you?"},
	}

	req, err := b.Build(testModel, "be brief", 0.7, "sk-user", messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Errorf("Method = %q, want POST", req.Method)
	}
	if req.URL != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("URL = %q", req.URL)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer sk-user" {
		t.Errorf("Authorization = %q", got)
	}
	if got := req.Header.Get(HeaderOrganization); got != "org-123" {
		t.Errorf("OpenAI-Organization = %q", got)
	}
	if got := req.Header.Get(HeaderAPIKey); got != "" {
		t.Errorf("api-key must not be set, got %q", got)
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	var body types.ChatCompletionRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", body.Model)
	}
	if body.MaxTokens != 1000 || body.Temperature != 0.7 || !body.Stream {
		t.Errorf("unexpected sampling fields: %+v", body)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(body.Messages))
	}
	if body.Messages[0] != (types.Message{Role: types.RoleSystem, Content: "be brief"}) {
		t.Errorf("first message = %+v", body.Messages[0])
	}
	for i, m := range messages {
		if body.Messages[i+1] != m {
			t.Errorf("message %d = %+v, want %+v", i+1, body.Messages[i+1], m)
		}
	}
}

func TestBuilder_OpenAIWithoutOrganization(t *testing.T) {
	provider := openAIProvider
	provider.Organization = ""

	req, err := NewBuilder(provider).Build(testModel, "", 1, "sk", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := req.Header[http.CanonicalHeaderKey(HeaderOrganization)]; ok {
		t.Error("organization header should be absent")
	}
}

func TestBuilder_Azure(t *testing.T) {
	req, err := NewBuilder(azureProvider).Build(testModel, "sys", 0.5, "az-user", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "https://res.openai.azure.com/openai/deployments/gpt-35-turbo/chat/completions?api-version=2023-03-15-preview"
	if req.URL != want {
		t.Errorf("URL = %q, want %q", req.URL, want)
	}
	if got := req.Header.Get(HeaderAPIKey); got != "az-user" {
		t.Errorf("api-key = %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization must not be set, got %q", got)
	}
	if got := req.Header.Get(HeaderOrganization); got != "" {
		t.Errorf("organization must not be set for azure, got %q", got)
	}

	body := decodeBody(t, req)
	if _, ok := body["model"]; ok {
		t.Error("azure body must not carry a model field")
	}
}

func TestBuilder_ModelAndDeploymentExclusive(t *testing.T) {
	for _, provider := range []config.ProviderConfig{openAIProvider, azureProvider} {
		t.Run(provider.Type, func(t *testing.T) {
			req, err := NewBuilder(provider).Build(testModel, "sys", 1, "", nil)
			if err != nil {
				t.Fatal(err)
			}
			_, hasModel := decodeBody(t, req)["model"]
			hasDeployment := strings.Contains(req.URL, "/deployments/")
			if hasModel == hasDeployment {
				t.Errorf("model in body = %v, deployment in URL = %v; want exactly one", hasModel, hasDeployment)
			}
		})
	}
}

func TestBuilder_CredentialHeader(t *testing.T) {
	tests := []struct {
		name     string
		provider config.ProviderConfig
		apiKey   string
		header   string
		want     string
	}{
		{"openai user key", openAIProvider, "sk-abc", "Authorization", "Bearer sk-abc"},
		{"openai default key", openAIProvider, "", "Authorization", "Bearer sk-default"},
		{"azure user key", azureProvider, "key-xyz", HeaderAPIKey, "key-xyz"},
		{"azure default key", azureProvider, "", HeaderAPIKey, "azure-default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewBuilder(tt.provider).Build(testModel, "", 1, tt.apiKey, nil)
			if err != nil {
				t.Fatal(err)
			}
			if got := req.Header.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestBuilder_NoKey(t *testing.T) {
	provider := openAIProvider
	provider.APIKey = ""

	_, err := NewBuilder(provider).Build(testModel, "", 1, "", nil)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestBuilder_EmptyTranscript(t *testing.T) {
	req, err := NewBuilder(openAIProvider).Build(testModel, "You are helpful.", 1, "", []types.Message{})
	if err != nil {
		t.Fatal(err)
	}

	var body struct {
		Messages []map[string]string `json:"messages"`
	}
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(body.Messages))
	}
	want := map[string]string{"role": "system", "content": "You are helpful."}
	if len(body.Messages[0]) != len(want) || body.Messages[0]["role"] != want["role"] || body.Messages[0]["content"] != want["content"] {
		t.Errorf("messages[0] = %v, want %v", body.Messages[0], want)
	}
}

func TestBuilder_SystemPromptNotDeduplicated(t *testing.T) {
	messages := []types.Message{{Role: types.RoleSystem, Content: "sys"}}

	req, err := NewBuilder(openAIProvider).Build(testModel, "sys", 1, "", messages)
	if err != nil {
		t.Fatal(err)
	}

	var body types.ChatCompletionRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Messages) != 2 {
		t.Errorf("got %d messages, want 2", len(body.Messages))
	}
}

func TestRequest_HTTPRequest(t *testing.T) {
	req, err := NewBuilder(azureProvider).Build(testModel, "", 1, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	httpReq, err := req.HTTPRequest(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if httpReq.URL.Query().Get("api-version") != "2023-03-15-preview" {
		t.Errorf("api-version = %q", httpReq.URL.Query().Get("api-version"))
	}
	if httpReq.Header.Get(HeaderAPIKey) != "azure-default" {
		t.Error("headers not copied")
	}

	// Mutating the http.Request must not leak into the descriptor.
	httpReq.Header.Set(HeaderAPIKey, "changed")
	if req.Header.Get(HeaderAPIKey) != "azure-default" {
		t.Error("descriptor header was mutated")
	}
}

func TestBuilder_TrimsTrailingSlashOnHost(t *testing.T) {
	tests := []struct {
		name     string
		provider config.ProviderConfig
		want     string
	}{
		{
			name:     "openai",
			provider: config.ProviderConfig{Type: config.ProviderOpenAI, Host: "https://api.openai.com/", APIKey: "sk"},
			want:     "https://api.openai.com/v1/chat/completions",
		},
		{
			name: "azure",
			provider: config.ProviderConfig{
				Type:         config.ProviderAzure,
				Host:         "https://res.openai.azure.com//",
				DeploymentID: "dep",
				APIVersion:   "2023-03-15-preview",
				APIKey:       "az",
			},
			want: "https://res.openai.azure.com/openai/deployments/dep/chat/completions?api-version=2023-03-15-preview",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewBuilder(tt.provider).Build(testModel, "sys", 1, "", nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.URL != tt.want {
				t.Errorf("URL = %q, want %q", req.URL, tt.want)
			}
		})
	}
}
