// Package tokenizer estimates token usage for relayed chat transcripts.
//
// The upstream stream carries no usage block, so request logs rely on these
// estimates: the prompt is the system prompt plus the transcript, framed the
// way the chat format frames each entry, and the completion is the relayed
// text.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/JustDoIt8888/chatbot-ui/internal/types"
)

// Tokenizer counts tokens for chat transcripts.
type Tokenizer interface {
	// CountTokens counts tokens in a text string for a given model.
	CountTokens(text string, model string) (int, error)

	// CountMessages counts prompt tokens for a transcript, including
	// per-message framing and reply priming.
	CountMessages(messages []types.Message, model string) (int, error)
}

// Encoding names used by tiktoken.
const (
	EncodingCL100kBase = "cl100k_base"
	EncodingO200kBase  = "o200k_base"
)

// replyPrimingTokens is the assistant header every reply is primed with.
const replyPrimingTokens = 3

// family groups models sharing an encoding and transcript framing.
type family struct {
	prefix   string
	encoding string

	// perMessage is the framing cost of one transcript entry
	perMessage int
}

// families is matched by prefix in order, so "gpt-4o" precedes "gpt-4".
var families = []family{
	{"gpt-4o", EncodingO200kBase, 3},
	{"gpt-35", EncodingCL100kBase, 4}, // azure deployment naming
	{"gpt-3.5", EncodingCL100kBase, 4},
	{"gpt-4", EncodingCL100kBase, 3},
	{"chatgpt", EncodingO200kBase, 3},
	{"o1", EncodingO200kBase, 3},
	{"o3", EncodingO200kBase, 3},
}

// defaultFamily covers models the table does not know.
var defaultFamily = family{encoding: EncodingCL100kBase, perMessage: 3}

func familyOf(model string) family {
	model = strings.ToLower(model)
	for _, f := range families {
		if strings.HasPrefix(model, f.prefix) {
			return f
		}
	}
	return defaultFamily
}

func resolveEncoding(model string) string {
	return familyOf(model).encoding
}

// countFunc counts tokens in a single string.
type countFunc func(text string, model string) (int, error)

// countMessages frames each transcript entry as role + content + overhead
// and adds reply priming. Counting of individual strings is left to count so
// a cache can sit in front of it.
func countMessages(count countFunc, messages []types.Message, model string) (int, error) {
	perMessage := familyOf(model).perMessage
	total := replyPrimingTokens

	for _, msg := range messages {
		roleTokens, err := count(msg.Role, model)
		if err != nil {
			return 0, err
		}
		contentTokens, err := count(msg.Content, model)
		if err != nil {
			return 0, err
		}
		total += roleTokens + contentTokens + perMessage
	}

	return total, nil
}

// TiktokenTokenizer implements Tokenizer using tiktoken-go. Encodings are
// loaded on first use; a failed load is retried on the next call.
type TiktokenTokenizer struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// New creates a new TiktokenTokenizer.
func New() *TiktokenTokenizer {
	return &TiktokenTokenizer{
		encodings: make(map[string]*tiktoken.Tiktoken),
	}
}

func (t *TiktokenTokenizer) encoding(name string) (*tiktoken.Tiktoken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enc, ok := t.encodings[name]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	t.encodings[name] = enc
	return enc, nil
}

// CountTokens counts tokens in a text string for a given model.
// Empty text is zero tokens and never loads an encoding.
func (t *TiktokenTokenizer) CountTokens(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := t.encoding(resolveEncoding(model))
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages counts prompt tokens for a transcript.
func (t *TiktokenTokenizer) CountMessages(messages []types.Message, model string) (int, error) {
	return countMessages(t.CountTokens, messages, model)
}
