package chat

import (
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/relay"
	"github.com/JustDoIt8888/chatbot-ui/internal/storage"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// promptCountTimeout is the longest the handler waits on prompt token counting.
const promptCountTimeout = 100 * time.Millisecond

// entry is everything known about one chat request once it has finished.
type entry struct {
	requestID    string
	params       relay.Params
	status       int
	errMessage   string
	midStream    bool
	promptTokens <-chan int
	completion   string
	result       relay.Result
	duration     time.Duration
}

// countPrompt starts counting prompt tokens in the background. The channel
// yields at most one value and is closed when counting ends.
func (h *Handlers) countPrompt(p relay.Params) <-chan int {
	ch := make(chan int, 1)
	if h.Storage == nil || h.Tokenizer == nil {
		close(ch)
		return ch
	}

	go func() {
		defer close(ch)
		msgs := make([]types.Message, 0, len(p.Messages)+1)
		msgs = append(msgs, types.NewTextMessage(types.RoleSystem, p.SystemPrompt))
		msgs = append(msgs, p.Messages...)
		if n, err := h.Tokenizer.CountMessages(msgs, p.Model.ID); err == nil {
			ch <- n
		}
	}()
	return ch
}

// record writes the request log and daily usage asynchronously.
func (h *Handlers) record(e entry) {
	if h.Storage == nil {
		return
	}

	var prompt int
	select {
	case n, ok := <-e.promptTokens:
		if ok {
			prompt = n
		}
	case <-time.After(promptCountTimeout):
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		h.write(e, prompt)
	}()
}

func (h *Handlers) write(e entry, prompt int) {
	model := e.params.Model.ID
	if e.result.Model != "" {
		model = e.result.Model
	}

	completion := 0
	if h.Tokenizer != nil && e.completion != "" {
		if n, err := h.Tokenizer.CountTokens(e.completion, model); err == nil {
			completion = n
		}
	}

	key := e.params.APIKey
	if key == "" {
		key = h.DefaultAPIKey
	}

	log := &storage.RequestLog{
		RequestID:        e.requestID,
		Model:            model,
		Provider:         h.Provider,
		KeyFingerprint:   storage.KeyFingerprint(key),
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		StatusCode:       e.status,
		FinishReason:     e.result.FinishReason,
		ErrorMessage:     e.errMessage,
		MidStreamError:   e.midStream,
		DurationMs:       e.duration.Milliseconds(),
	}
	if err := h.Storage.LogRequest(log); err != nil {
		h.Logger.Warn("failed to store request log", "request_id", e.requestID, "error", err)
	}

	errorCount := 0
	if log.HasError() {
		errorCount = 1
	}
	usage := &storage.DailyUsage{
		Date:             time.Now().UTC().Format(time.DateOnly),
		Model:            model,
		RequestCount:     1,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		ErrorCount:       errorCount,
	}
	if err := h.Storage.UpdateDailyUsage(usage); err != nil {
		h.Logger.Warn("failed to update daily usage", "request_id", e.requestID, "error", err)
	}
}
