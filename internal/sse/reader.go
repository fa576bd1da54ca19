package sse

import (
	"bufio"
	"bytes"
	"io"
	"iter"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line.
const maxLineSize = 1024 * 1024

// Reader parses SSE events from a source io.Reader.
// It is not safe for concurrent use and cannot be rewound.
type Reader struct {
	scanner *bufio.Scanner

	eventType   string
	data        strings.Builder
	hasData     bool
	lastEventID string

	done bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	scanner.Split((&lineSplitter{}).scan)

	return &Reader{scanner: scanner}
}

// Next blocks until the next event is complete and returns it.
// It returns nil, io.EOF once the source is exhausted. An event that was not
// terminated by a blank line before EOF is discarded.
func (r *Reader) Next() (*Event, error) {
	if r.done {
		return nil, io.EOF
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if ev := r.dispatch(); ev != nil {
				return ev, nil
			}
			continue
		}

		// Comment, typically a keep-alive.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if ev := r.parseLine(line); ev != nil {
			return ev, nil
		}
	}

	r.done = true
	r.reset()
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Events returns an iterator over the remaining events.
// A read error is yielded once with a nil event and ends the sequence.
func (r *Reader) Events() iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		for {
			ev, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// parseLine accumulates a "field:value" line into the pending event.
// It returns an event only for a valid retry field.
func (r *Reader) parseLine(line string) *Event {
	field, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData {
			r.data.WriteByte('\n')
		}
		r.data.WriteString(value)
		r.hasData = true
	case "event":
		r.eventType = value
	case "id":
		if !strings.ContainsRune(value, 0) {
			r.lastEventID = value
		}
	case "retry":
		if ms, ok := parseRetry(value); ok {
			return &Event{
				Kind:  KindReconnectInterval,
				Retry: time.Duration(ms) * time.Millisecond,
			}
		}
	}
	return nil
}

// dispatch completes the pending event. Events without data are dropped.
func (r *Reader) dispatch() *Event {
	if !r.hasData {
		r.reset()
		return nil
	}
	ev := &Event{
		Kind: KindEvent,
		Type: r.eventType,
		Data: r.data.String(),
		ID:   r.lastEventID,
	}
	r.reset()
	return ev
}

func (r *Reader) reset() {
	r.eventType = ""
	r.data.Reset()
	r.hasData = false
}

// parseRetry accepts ASCII digits only.
func parseRetry(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

// lineSplitter splits on "\n", "\r\n" or a lone "\r". A "\r" that ends the
// buffered input is emitted at once; a "\n" opening the next read is then
// dropped as the second half of "\r\n".
type lineSplitter struct {
	skipLF bool
}

func (s *lineSplitter) scan(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if s.skipLF && len(data) > 0 {
		s.skipLF = false
		if data[0] == '\n' {
			return 1, nil, nil
		}
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		s.skipLF = !atEOF
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
