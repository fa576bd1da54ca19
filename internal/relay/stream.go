package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JustDoIt8888/chatbot-ui/internal/sse"
	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

var (
	errNoChoices = errors.New("chunk has no choices")
	errNoDelta   = errors.New("choice has no delta")
)

// Result summarizes a finished stream.
type Result struct {
	// Model reported by the first upstream chunk, if any
	Model string

	// FinishReason is empty when the upstream body ended without one
	FinishReason string

	Deltas   int
	Bytes    int64
	Duration time.Duration

	// Err is nil for a clean end
	Err error
}

// Stream is the output side of a relay: an io.ReadCloser yielding the UTF-8
// text of each delta in arrival order.
//
// Writes are unbuffered. A delta is handed over only when Read asks for it,
// so a slow reader throttles how fast the upstream body is drained. Read
// returns io.EOF after a finish reason or the end of the upstream body, and
// the terminating error (e.g. *MalformedEventError) otherwise.
type Stream struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	result Result
}

func newStream(body io.ReadCloser, cancel context.CancelFunc, start time.Time, logger *slog.Logger) *Stream {
	pr, pw := io.Pipe()
	s := &Stream{
		pr:     pr,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.pump(body, pw, start, logger)
	return s
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

// Close stops the stream. The upstream call is cancelled and its body is no
// longer drained.
func (s *Stream) Close() error {
	err := s.pr.Close()
	s.cancel()
	return err
}

// Done is closed once the stream has finished relaying.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Result waits for the stream to finish and returns its summary.
func (s *Stream) Result() Result {
	<-s.done
	return s.result
}

func (s *Stream) pump(body io.ReadCloser, pw *io.PipeWriter, start time.Time, logger *slog.Logger) {
	defer close(s.done)
	defer s.cancel()
	defer body.Close()

	err := s.relay(body, pw)

	s.result.Err = err
	s.result.Duration = time.Since(start)

	if err != nil {
		_ = pw.CloseWithError(err)
	} else {
		_ = pw.Close()
	}

	attrs := []any{
		"finish_reason", s.result.FinishReason,
		"deltas", s.result.Deltas,
		"bytes", s.result.Bytes,
		"duration_ms", s.result.Duration.Milliseconds(),
	}
	switch {
	case err == nil:
		logger.Debug("stream finished", attrs...)
	case errors.Is(err, io.ErrClosedPipe), errors.Is(err, context.Canceled):
		logger.Debug("stream closed by consumer", attrs...)
	default:
		logger.Warn("stream terminated", append(attrs, "error", err)...)
	}
}

// relay copies deltas from the event stream to pw until a finish reason, the
// end of the body, or a failure.
func (s *Stream) relay(body io.Reader, pw *io.PipeWriter) error {
	reader := sse.NewReader(body)

	for ev, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read upstream stream: %w", err)
		}
		if ev.Kind != sse.KindEvent {
			continue
		}
		if ev.Data == types.SSEDone {
			return nil
		}

		var chunk types.ChatCompletionChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return &MalformedEventError{Data: ev.Data, Err: err}
		}
		if len(chunk.Choices) == 0 {
			return &MalformedEventError{Data: ev.Data, Err: errNoChoices}
		}
		if s.result.Model == "" {
			s.result.Model = chunk.Model
		}

		choice := chunk.Choices[0]
		if choice.IsFinalChunk() {
			s.result.FinishReason = choice.GetFinishReason()
			return nil
		}
		if choice.Delta == nil {
			return &MalformedEventError{Data: ev.Data, Err: errNoDelta}
		}
		if choice.Delta.Content == "" {
			continue
		}

		n, err := pw.Write([]byte(choice.Delta.Content))
		s.result.Bytes += int64(n)
		if err != nil {
			return err
		}
		s.result.Deltas++
	}

	return nil
}
