// Package chat serves the browser-facing streaming chat endpoint.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JustDoIt8888/chatbot-ui/internal/relay"
	"github.com/JustDoIt8888/chatbot-ui/internal/storage"
	"github.com/JustDoIt8888/chatbot-ui/internal/tokenizer"
	"github.com/JustDoIt8888/chatbot-ui/internal/transport/http/middleware"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// maxBodyBytes bounds the JSON body of a chat request.
const maxBodyBytes = 4 << 20

// readBufferSize is the most relayed text sent in a single write.
const readBufferSize = 4096

// Streamer opens relayed output streams.
type Streamer interface {
	Stream(ctx context.Context, p relay.Params) (*relay.Stream, error)
}

// Defaults fill in request fields the client left empty.
type Defaults struct {
	SystemPrompt string
	Temperature  float64
}

// Handlers holds the dependencies for the chat handler.
type Handlers struct {
	Relay    Streamer
	Defaults Defaults

	// Provider is recorded with each request log ("openai" or "azure")
	Provider string

	// DefaultAPIKey is fingerprinted when the client sends no key
	DefaultAPIKey string

	// Storage and Tokenizer are optional; without Storage nothing is recorded
	Storage   storage.Storage
	Tokenizer tokenizer.Tokenizer

	Logger *slog.Logger

	pending sync.WaitGroup
}

// New creates chat handlers. store and tok may be nil.
func New(streamer Streamer, defaults Defaults, store storage.Storage, tok tokenizer.Tokenizer, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		Relay:     streamer,
		Defaults:  defaults,
		Storage:   store,
		Tokenizer: tok,
		Logger:    logger,
	}
}

// Chat handles POST /api/chat. The response body is the relayed completion
// as plain text. Failures before the stream opens are JSON errors; a failure
// after that aborts the connection so the client sees a truncated body.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetRequestID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	var body types.ChatBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		types.WriteError(w, http.StatusBadRequest, types.ErrInvalidRequest("Invalid request body: "+err.Error()))
		return
	}

	params := h.resolveParams(body, requestID)

	// Prompt tokens are only needed for the log, so count them off the hot path.
	promptTokens := h.countPrompt(params)

	stream, err := h.Relay.Stream(r.Context(), params)
	if err != nil {
		status, apiErr := errorResponse(err)
		h.Logger.Debug("chat request rejected", "request_id", requestID, "status", status, "error", err)
		types.WriteError(w, status, apiErr)
		h.record(entry{
			requestID:    requestID,
			params:       params,
			status:       status,
			errMessage:   err.Error(),
			promptTokens: promptTokens,
			duration:     time.Since(start),
		})
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	completion, copyErr := relayTo(w, flusher, stream)

	// Closing unblocks the pump if the client went away, so Result returns.
	stream.Close()
	result := stream.Result()

	e := entry{
		requestID:    requestID,
		params:       params,
		status:       http.StatusOK,
		promptTokens: promptTokens,
		completion:   completion,
		result:       result,
		duration:     time.Since(start),
	}

	switch {
	case copyErr == nil:
		h.record(e)
	case errors.Is(copyErr, errClientGone):
		h.Logger.Debug("client disconnected", "request_id", requestID, "bytes", result.Bytes)
		e.errMessage = copyErr.Error()
		h.record(e)
	default:
		e.errMessage = copyErr.Error()
		e.midStream = true
		h.record(e)
		// The status line is already out; dropping the connection is the
		// only way left to tell the client the body is incomplete.
		panic(http.ErrAbortHandler)
	}
}

// Wait blocks until pending request log writes finish.
func (h *Handlers) Wait() {
	h.pending.Wait()
}

// resolveParams applies configured defaults to a decoded body.
func (h *Handlers) resolveParams(body types.ChatBody, requestID string) relay.Params {
	prompt := body.Prompt
	if prompt == "" {
		prompt = h.Defaults.SystemPrompt
	}
	temperature := h.Defaults.Temperature
	if body.Temperature != nil {
		temperature = *body.Temperature
	}
	return relay.Params{
		Model:        body.Model,
		SystemPrompt: prompt,
		Temperature:  temperature,
		APIKey:       body.Key,
		Messages:     body.Messages,
		RequestID:    requestID,
	}
}

// errClientGone marks a failed write to the client.
var errClientGone = errors.New("client disconnected")

// relayTo copies the stream to w, flushing after every read so each delta
// reaches the browser as soon as it arrives. It returns the relayed text.
func relayTo(w io.Writer, flusher http.Flusher, stream io.Reader) (string, error) {
	var text []byte
	buf := make([]byte, readBufferSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			text = append(text, buf[:n]...)
			if _, werr := w.Write(buf[:n]); werr != nil {
				return string(text), errClientGone
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err == io.EOF {
			return string(text), nil
		}
		if err != nil {
			return string(text), err
		}
	}
}

// errorResponse maps a pre-stream failure to a status and error body.
func errorResponse(err error) (int, *types.APIError) {
	if errors.Is(err, relay.ErrNoAPIKey) {
		return http.StatusUnauthorized, types.ErrAuthentication("No API key provided")
	}
	if ue, ok := relay.AsUpstreamError(err); ok {
		errType := ue.Type
		if errType == "" {
			errType = types.ErrorTypeUpstream
		}
		return http.StatusInternalServerError, types.NewAPIErrorWithDetail(ue.Message, errType, ue.Param, ue.Code)
	}
	var oe *relay.OpaqueError
	if errors.As(err, &oe) {
		return http.StatusInternalServerError, types.NewAPIError(oe.Message, types.ErrorTypeUpstream)
	}
	return http.StatusBadGateway, types.NewAPIError("Upstream request failed", types.ErrorTypeUpstream)
}
