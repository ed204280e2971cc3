package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of a background issuance task.
//
// The machine is starting -> running <-> paused -> {completed, failed,
// cancelled}. A task may also move straight from starting to paused, so a
// pause landing before the run loop begins is honored rather than
// rejected. Pause and cancel are cooperative: the orchestrator polls the
// task before dispatching each recipient, so already in-flight pipelines
// always run to completion.
type TaskStatus string

const (
	TaskStatusStarting  TaskStatus = "starting"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusPaused    TaskStatus = "paused"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. Self-transitions are legal to keep pause/resume/cancel
// idempotent.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case TaskStatusStarting:
		return next == TaskStatusRunning || next == TaskStatusPaused ||
			next == TaskStatusFailed || next == TaskStatusCancelled
	case TaskStatusRunning:
		return next == TaskStatusPaused || next.Terminal()
	case TaskStatusPaused:
		return next == TaskStatusRunning || next.Terminal()
	default:
		return false
	}
}

// BackgroundTask is the queryable handle for a long-running issuance batch.
// Tasks live in process memory only; there is no persistence guarantee
// across restarts.
type BackgroundTask struct {
	ID      string     `json:"id"`
	EventID string     `json:"event_id"`
	Status  TaskStatus `json:"status"`

	// Total is fixed once the eligible recipient set is resolved.
	// Completed+Failed never exceeds Total and is monotonic until a
	// terminal status is reached.
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	// Step is a human readable description of what the task is doing.
	Step string `json:"step,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error is populated when the task terminates as failed.
	Error string `json:"error,omitempty"`

	Summary *BatchSummary `json:"summary,omitempty"`
}

// Progress renders the task counters for logs and CLI output.
func (t *BackgroundTask) Progress() string {
	return fmt.Sprintf("%d/%d done, %d failed", t.Completed+t.Failed, t.Total, t.Failed)
}
