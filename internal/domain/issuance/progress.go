package issuance

import "github.com/certmint/certmint-api/internal/domain/model"

// ProgressEvent is one batch progress observation. Completed+Failed is
// monotonic across the events of one batch until it terminates.
type ProgressEvent struct {
	Total     int
	Completed int
	Failed    int
	// Step describes what the orchestrator is doing, for task status.
	Step string
	// Recipient is the recipient whose result produced this event, when
	// applicable.
	Recipient string
	// Result carries the finished pipeline result, when applicable.
	Result *model.PipelineResult
}

// TaskState is the orchestrator's view of external pause/cancel requests.
type TaskState int

const (
	// TaskActive lets the orchestrator dispatch freely.
	TaskActive TaskState = iota
	// TaskPaused defers further dispatches; in-flight pipelines finish.
	TaskPaused
	// TaskCancelledState stops dispatching entirely. Cooperative, not
	// preemptive: nothing already running is interrupted.
	TaskCancelledState
)

// TaskController exposes the externally toggled task state. The
// orchestrator polls it before dispatching each recipient; these polls are
// the only yield points, so pause and cancel are best-effort.
type TaskController interface {
	State() TaskState
}

// alwaysActive is the controller used for synchronous batches.
type alwaysActive struct{}

func (alwaysActive) State() TaskState { return TaskActive }

// emitProgress sends without blocking; when the consumer lags, stale
// events are dropped because a later event supersedes them.
func emitProgress(ch chan<- ProgressEvent, ev ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
