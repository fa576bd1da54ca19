package relay

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned when neither the request nor the provider supplies a key.
var ErrNoAPIKey = errors.New("no API key configured")

// UpstreamError is a non-200 upstream response carrying a provider error object.
// It is returned before any output stream exists.
type UpstreamError struct {
	StatusCode int
	Message    string
	Type       string
	Param      string
	Code       string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// OpaqueError is a non-200 upstream response without a provider error object.
// It is returned before any output stream exists.
type OpaqueError struct {
	StatusCode int
	Message    string
}

func (e *OpaqueError) Error() string {
	return e.Message
}

// MalformedEventError ends an open stream when an event payload cannot be
// decoded as a completion chunk. Bytes read before it remain delivered.
type MalformedEventError struct {
	Data string
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event payload: %v", e.Err)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// AsUpstreamError reports whether err is an *UpstreamError.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// IsMalformedEvent reports whether err ended a stream on a bad payload.
func IsMalformedEvent(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}
