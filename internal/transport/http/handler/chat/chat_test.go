package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JustDoIt8888/chatbot-ui/internal/config"
	"github.com/JustDoIt8888/chatbot-ui/internal/relay"
	"github.com/JustDoIt8888/chatbot-ui/internal/storage"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

func deltaEvent(content string) string {
	b, _ := json.Marshal(content)
	return fmt.Sprintf("data: {\"model\":\"gpt-3.5-turbo-0301\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%s},\"finish_reason\":null}]}\n\n", b)
}

const finishEvent = "data: {\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"

// upstream is a fake provider that records the last request body.
type upstream struct {
	*httptest.Server

	mu   sync.Mutex
	body types.ChatCompletionRequest
}

func (u *upstream) lastBody() types.ChatCompletionRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.body
}

func newUpstream(t *testing.T, status int, frames ...string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&u.body)
		u.mu.Unlock()

		w.WriteHeader(status)
		flusher := w.(http.Flusher)
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
			flusher.Flush()
		}
	}))
	t.Cleanup(u.Close)
	return u
}

// wordTokenizer counts whitespace-separated words.
type wordTokenizer struct{}

func (wordTokenizer) CountTokens(text, model string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (wordTokenizer) CountMessages(messages []types.Message, model string) (int, error) {
	return len(messages), nil
}

var testDefaults = Defaults{SystemPrompt: "default prompt", Temperature: 0.7}

func newTestHandlers(u *upstream, defaultKey string, store storage.Storage) *Handlers {
	r := relay.New(config.ProviderConfig{
		Type:   config.ProviderOpenAI,
		Host:   u.URL,
		APIKey: defaultKey,
	}, relay.WithHTTPClient(u.Client()))

	h := New(r, testDefaults, store, wordTokenizer{}, nil)
	h.Provider = config.ProviderOpenAI
	h.DefaultAPIKey = defaultKey
	return h
}

func postChat(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Chat(rec, req)
	return rec
}

const chatBody = `{"model":{"id":"gpt-3.5-turbo","name":"GPT-3.5"},"messages":[{"role":"user","content":"hi"}],"key":"sk-client","prompt":"","temperature":null}`

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *types.ErrorDetail {
	t.Helper()
	var apiErr types.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if apiErr.Error == nil {
		t.Fatal("expected error object in body")
	}
	return apiErr.Error
}

func TestChat_StreamsText(t *testing.T) {
	u := newUpstream(t, http.StatusOK, deltaEvent("Hel"), deltaEvent("lo"), finishEvent)
	h := newTestHandlers(u, "", nil)

	rec := postChat(t, h, chatBody)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	if got := rec.Body.String(); got != "Hello" {
		t.Errorf("expected body %q, got %q", "Hello", got)
	}
	if !rec.Flushed {
		t.Error("expected response to be flushed")
	}
}

func TestChat_AppliesDefaults(t *testing.T) {
	tests := []struct {
		name            string
		body            string
		wantPrompt      string
		wantTemperature float64
	}{
		{
			name:            "empty prompt and null temperature use defaults",
			body:            chatBody,
			wantPrompt:      testDefaults.SystemPrompt,
			wantTemperature: testDefaults.Temperature,
		},
		{
			name:            "missing temperature uses default",
			body:            `{"model":{"id":"gpt-4"},"messages":[],"key":"k","prompt":"be terse"}`,
			wantPrompt:      "be terse",
			wantTemperature: testDefaults.Temperature,
		},
		{
			name:            "zero temperature is kept",
			body:            `{"model":{"id":"gpt-4"},"messages":[],"key":"k","prompt":"p","temperature":0}`,
			wantPrompt:      "p",
			wantTemperature: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, http.StatusOK, finishEvent)
			h := newTestHandlers(u, "", nil)

			rec := postChat(t, h, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}

			sent := u.lastBody()
			if len(sent.Messages) == 0 || sent.Messages[0].Role != types.RoleSystem {
				t.Fatalf("expected leading system message, got %+v", sent.Messages)
			}
			if sent.Messages[0].Content != tt.wantPrompt {
				t.Errorf("expected system prompt %q, got %q", tt.wantPrompt, sent.Messages[0].Content)
			}
			if sent.Temperature != tt.wantTemperature {
				t.Errorf("expected temperature %v, got %v", tt.wantTemperature, sent.Temperature)
			}
		})
	}
}

func TestChat_PreStreamErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		frames      []string
		defaultKey  string
		body        string
		wantStatus  int
		wantMessage string
		wantType    string
		wantCode    string
	}{
		{
			name:        "upstream error object",
			status:      http.StatusUnauthorized,
			frames:      []string{`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","param":null,"code":"invalid_api_key"}}`},
			body:        chatBody,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Incorrect API key provided",
			wantType:    "invalid_request_error",
			wantCode:    "invalid_api_key",
		},
		{
			name:        "opaque upstream body",
			status:      http.StatusBadGateway,
			frames:      []string{"<html>bad gateway</html>"},
			body:        chatBody,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "OpenAI API returned an error: <html>bad gateway</html>",
			wantType:    types.ErrorTypeUpstream,
		},
		{
			name:        "no key anywhere",
			status:      http.StatusOK,
			body:        `{"model":{"id":"gpt-4"},"messages":[],"key":""}`,
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "No API key provided",
			wantType:    types.ErrorTypeAuthentication,
		},
		{
			name:       "bad body",
			status:     http.StatusOK,
			body:       `{"model":`,
			wantStatus: http.StatusBadRequest,
			wantType:   types.ErrorTypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, tt.status, tt.frames...)
			h := newTestHandlers(u, tt.defaultKey, nil)

			rec := postChat(t, h, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON error, got content type %q", ct)
			}
			detail := decodeError(t, rec)
			if tt.wantMessage != "" && detail.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, detail.Message)
			}
			if detail.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, detail.Type)
			}
			if got := types.StringValue(detail.Code); got != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, got)
			}
		})
	}
}

func TestChat_TransportError(t *testing.T) {
	u := newUpstream(t, http.StatusOK)
	h := newTestHandlers(u, "sk-default", nil)
	u.Close()

	rec := postChat(t, h, chatBody)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
	if detail := decodeError(t, rec); detail.Type != types.ErrorTypeUpstream {
		t.Errorf("expected type %q, got %q", types.ErrorTypeUpstream, detail.Type)
	}
}

func TestChat_MidStreamFailureAbortsConnection(t *testing.T) {
	u := newUpstream(t, http.StatusOK, deltaEvent("partial"), "data: {not json\n\n")
	h := newTestHandlers(u, "", nil)

	srv := httptest.NewServer(http.HandlerFunc(h.Chat))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL, "application/json", strings.NewReader(chatBody))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	got, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Fatal("expected truncated body to end in an error")
	}
	if string(got) != "partial" {
		t.Errorf("expected delivered prefix %q, got %q", "partial", got)
	}
}

func TestChat_RecordsRequestLog(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer store.Close()

	u := newUpstream(t, http.StatusOK, deltaEvent("one two "), deltaEvent("three"), finishEvent)
	h := newTestHandlers(u, "sk-default", store)

	rec := postChat(t, h, chatBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	h.Wait()

	logs, err := store.GetRequestLogs(storage.LogFilter{})
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}

	got := logs[0]
	if got.Model != "gpt-3.5-turbo-0301" {
		t.Errorf("expected upstream model, got %q", got.Model)
	}
	if got.FinishReason != "stop" {
		t.Errorf("expected finish reason %q, got %q", "stop", got.FinishReason)
	}
	if got.KeyFingerprint != storage.KeyFingerprint("sk-client") {
		t.Errorf("expected fingerprint of the client key, got %q", got.KeyFingerprint)
	}
	if got.Provider != config.ProviderOpenAI {
		t.Errorf("expected provider %q, got %q", config.ProviderOpenAI, got.Provider)
	}
	// system + one user message
	if got.PromptTokens != 2 {
		t.Errorf("expected 2 prompt tokens, got %d", got.PromptTokens)
	}
	if got.CompletionTokens != 3 {
		t.Errorf("expected 3 completion tokens, got %d", got.CompletionTokens)
	}

	usage, err := store.GetUsageStats(storage.StatsFilter{})
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}
	if usage.TotalRequests != 1 || usage.ErrorCount != 0 {
		t.Errorf("unexpected usage %+v", usage)
	}
}

func TestChat_RecordsRejection(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	defer store.Close()

	u := newUpstream(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`)
	h := newTestHandlers(u, "sk-default", store)

	body := `{"model":{"id":"gpt-4"},"messages":[],"key":""}`
	if rec := postChat(t, h, body); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	h.Wait()

	logs, err := store.GetRequestLogs(storage.LogFilter{})
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	if logs[0].ErrorMessage != "Rate limit reached" {
		t.Errorf("unexpected error message %q", logs[0].ErrorMessage)
	}
	if logs[0].KeyFingerprint != storage.KeyFingerprint("sk-default") {
		t.Errorf("expected fingerprint of the default key, got %q", logs[0].KeyFingerprint)
	}

	usage, err := store.GetUsageStats(storage.StatsFilter{})
	if err != nil {
		t.Fatalf("GetUsageStats failed: %v", err)
	}
	if usage.ErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", usage.ErrorCount)
	}
}
