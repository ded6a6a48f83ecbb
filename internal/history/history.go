package history

import (
	"context"
	"time"
)

// EventType defines the kind of execution lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventExit  EventType = "exit"
)

// Record is the exec-history view of one launched process.
type Record struct {
	ProcessID string    `json:"process_id"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Status    string    `json:"status"`
	ExitErr   string    `json:"exit_err,omitempty"`
}

// Event represents a lifecycle event exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (audit/analytics systems).
// Implementations must be safe for concurrent use. Send failures are
// swallowed by callers; history is strictly best-effort.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
