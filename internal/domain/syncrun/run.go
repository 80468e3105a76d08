// Package syncrun defines the SyncRun domain entity: one execution attempt of
// the synchronization process for a target, retained as an audit trail.
package syncrun

import "time"

// Status represents the current state of a sync run.
// A run is created in StatusProcessing and transitions exactly once to
// StatusCompleted or StatusError, after which it is immutable.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Run represents a single synchronization attempt for one target.
type Run struct {
	ID             string     `json:"id"`
	TargetID       string     `json:"target_id"`
	TargetName     string     `json:"target_name,omitempty"`
	Status         Status     `json:"status"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsUpdated   int        `json:"items_updated"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ErrorScope identifies the granularity at which an item-level failure occurred.
type ErrorScope string

const (
	ScopeItem       ErrorScope = "item"
	ScopeAttachment ErrorScope = "attachment"
)

// ItemError describes one isolated failure within a run. Item errors are
// accumulated in memory and surfaced in the final report; they never abort
// the run.
type ItemError struct {
	Scope   ErrorScope `json:"scope"`
	Label   string     `json:"label"` // remote ID or file name identifying the failed unit
	Message string     `json:"message"`
}

// Report is the outcome delivered to the caller that triggered a run.
// It always carries a definite terminal run plus any isolated item errors
// collected along the way.
type Report struct {
	Run    Run         `json:"run"`
	Errors []ItemError `json:"errors,omitempty"`
}
