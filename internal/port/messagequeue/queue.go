// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subjects published by the sync engine.
const (
	SubjectRunStarted   = "sync.runs.started"
	SubjectRunCompleted = "sync.runs.completed"
	SubjectRunFailed    = "sync.runs.failed"
)

// RunEventPayload is the schema for sync.runs.* messages.
type RunEventPayload struct {
	RunID          string `json:"run_id"`
	TargetID       string `json:"target_id"`
	TargetName     string `json:"target_name,omitempty"`
	Status         string `json:"status"`
	ItemsProcessed int    `json:"items_processed,omitempty"`
	ItemsUpdated   int    `json:"items_updated,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}
