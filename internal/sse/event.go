// Package sse parses a server-sent events byte stream incrementally.
//
// A Reader pulls from an io.Reader one line at a time and hands back each
// event as soon as its terminating blank line arrives, so callers can act on
// an event before the next chunk of the stream has been read.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "time"

// Kind distinguishes dispatched events from reconnection notices.
type Kind int

const (
	// KindEvent is a dispatched event carrying data.
	KindEvent Kind = iota

	// KindReconnectInterval reports a "retry:" field. Only Retry is set.
	KindReconnectInterval
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindReconnectInterval:
		return "reconnect-interval"
	default:
		return "unknown"
	}
}

// Event is a single parsed SSE event.
type Event struct {
	Kind Kind

	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is all "data:" lines of the event joined with "\n".
	Data string

	// ID is the last event ID seen on the stream so far.
	ID string

	// Retry is the reconnection time for KindReconnectInterval events.
	Retry time.Duration
}
