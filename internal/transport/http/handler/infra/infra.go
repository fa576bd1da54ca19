package infra

import "time"

// Handlers holds the dependencies for infrastructure HTTP handlers.
type Handlers struct {
	StartTime time.Time

	// Provider is the configured upstream type, reported in status output
	Provider string
}

// New creates a new instance of infrastructure handlers.
func New(startTime time.Time, provider string) *Handlers {
	return &Handlers{
		StartTime: startTime,
		Provider:  provider,
	}
}
