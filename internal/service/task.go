package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/domain/model"
	apperrors "github.com/certmint/certmint-api/internal/errors"
)

// defaultProgressBuffer bounds the progress channel between the
// orchestrator and the registry's consumer goroutine.
const defaultProgressBuffer = 64

// TaskServiceOptions groups dependencies for TaskService.
type TaskServiceOptions struct {
	Issuer         *IssuerService
	ProgressBuffer int
	Logger         *slog.Logger
}

// TaskService runs issuance batches in the background and tracks them in an
// in-memory registry keyed by task id. Tasks do not survive a process
// restart; the certificate store remains the durable record.
type TaskService struct {
	issuer *IssuerService
	buffer int
	logger *slog.Logger

	mu    sync.Mutex
	tasks map[string]*taskHandle
}

// NewTaskService constructs a new TaskService.
func NewTaskService(opts TaskServiceOptions) *TaskService {
	if opts.Issuer == nil {
		panic("IssuerService is required")
	}

	buffer := opts.ProgressBuffer
	if buffer <= 0 {
		buffer = defaultProgressBuffer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		issuer: opts.Issuer,
		buffer: buffer,
		logger: logger,
		tasks:  make(map[string]*taskHandle),
	}
}

// taskControl is the orchestrator-facing pause/cancel switch. It is read on
// the orchestrator's dispatch path, so it is a bare atomic.
type taskControl struct {
	state atomic.Int32
}

func (c *taskControl) State() issuance.TaskState {
	return issuance.TaskState(c.state.Load())
}

func (c *taskControl) set(state issuance.TaskState) {
	c.state.Store(int32(state))
}

type taskHandle struct {
	mu      sync.Mutex
	task    model.BackgroundTask
	control *taskControl
	cancel  context.CancelFunc
}

// snapshot copies the task under the handle lock so callers never observe a
// torn update.
func (h *taskHandle) snapshot() *model.BackgroundTask {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := h.task
	return &cp
}

// transition applies a status change when the lifecycle machine allows it.
func (h *taskHandle) transition(next model.TaskStatus) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.task.Status.CanTransition(next) {
		return false
	}
	h.task.Status = next
	return true
}

// beginRun moves a starting task to running. A pause or cancel that landed
// before the run loop began stays in effect.
func (h *taskHandle) beginRun() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.task.Status == model.TaskStatusStarting {
		h.task.Status = model.TaskStatusRunning
	}
}

// StartTaskParams groups inputs for a background batch start.
type StartTaskParams struct {
	EventID      string
	RecipientIDs []string
}

// Start validates the event, registers a background task, and launches the
// batch. The returned task is a snapshot; poll Get for progress.
func (s *TaskService) Start(ctx context.Context, params StartTaskParams) (*model.BackgroundTask, error) {
	// Fail fast on an unknown event before spawning anything.
	if _, err := s.issuer.GetEvent(ctx, params.EventID); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	handle := &taskHandle{
		task: model.BackgroundTask{
			ID:        uuid.NewString(),
			EventID:   params.EventID,
			Status:    model.TaskStatusStarting,
			StartedAt: time.Now().UTC(),
		},
		control: &taskControl{},
		cancel:  cancel,
	}

	s.mu.Lock()
	s.tasks[handle.task.ID] = handle
	s.mu.Unlock()

	progress := make(chan issuance.ProgressEvent, s.buffer)
	consumerDone := make(chan struct{})
	go s.consumeProgress(handle, progress, consumerDone)
	go s.runTask(runCtx, handle, params, progress, consumerDone)

	s.logger.InfoContext(ctx, "background issuance task started",
		"task_id", handle.task.ID, "event_id", params.EventID)

	return handle.snapshot(), nil
}

func (s *TaskService) runTask(
	ctx context.Context,
	handle *taskHandle,
	params StartTaskParams,
	progress chan issuance.ProgressEvent,
	consumerDone chan struct{},
) {
	handle.beginRun()

	summary, err := s.issuer.IssueBatch(ctx, IssueBatchParams{
		EventID:      params.EventID,
		RecipientIDs: params.RecipientIDs,
		TaskID:       handle.task.ID,
		Controller:   handle.control,
		Progress:     progress,
	})

	close(progress)
	<-consumerDone

	s.finishTask(ctx, handle, summary, err)
}

func (s *TaskService) finishTask(ctx context.Context, handle *taskHandle, summary *model.BatchSummary, err error) {
	now := time.Now().UTC()

	handle.mu.Lock()
	handle.task.FinishedAt = &now
	handle.task.Summary = summary
	if summary != nil {
		handle.task.Total = summary.Total
		handle.task.Completed = summary.Successful
		handle.task.Failed = summary.Failed
	}

	final := model.TaskStatusCompleted
	switch {
	case errors.Is(err, issuance.ErrBatchCancelled):
		final = model.TaskStatusCancelled
		handle.task.Step = "cancelled"
	case err != nil:
		final = model.TaskStatusFailed
		handle.task.Error = err.Error()
		handle.task.Step = "failed"
	default:
		handle.task.Step = "completed"
	}
	handle.task.Status = final
	taskID, eventID := handle.task.ID, handle.task.EventID
	progressLine := handle.task.Progress()
	handle.mu.Unlock()

	handle.cancel()

	if err != nil && !errors.Is(err, issuance.ErrBatchCancelled) {
		s.logger.ErrorContext(ctx, "background issuance task failed",
			"task_id", taskID, "event_id", eventID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "background issuance task finished",
		"task_id", taskID, "event_id", eventID,
		"status", final, "progress", progressLine)
}

// consumeProgress folds orchestrator progress events into the task. Counts
// only move forward; a stale event that lost the race never rolls them back.
func (s *TaskService) consumeProgress(handle *taskHandle, progress <-chan issuance.ProgressEvent, done chan struct{}) {
	defer close(done)
	for ev := range progress {
		handle.mu.Lock()
		if ev.Total > handle.task.Total {
			handle.task.Total = ev.Total
		}
		if ev.Completed > handle.task.Completed {
			handle.task.Completed = ev.Completed
		}
		if ev.Failed > handle.task.Failed {
			handle.task.Failed = ev.Failed
		}
		if ev.Step != "" {
			handle.task.Step = ev.Step
		}
		handle.mu.Unlock()
	}
}

// Get returns a snapshot of one task.
func (s *TaskService) Get(id string) (*model.BackgroundTask, error) {
	handle, err := s.handle(id)
	if err != nil {
		return nil, err
	}
	return handle.snapshot(), nil
}

// List returns snapshots of every known task, oldest first.
func (s *TaskService) List() []*model.BackgroundTask {
	s.mu.Lock()
	handles := make([]*taskHandle, 0, len(s.tasks))
	for _, h := range s.tasks {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	out := make([]*model.BackgroundTask, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Pause defers further recipient dispatches. In-flight pipelines finish;
// pausing an already paused task is a no-op, and a pause landing before
// the run loop starts is honored.
func (s *TaskService) Pause(id string) (*model.BackgroundTask, error) {
	handle, err := s.handle(id)
	if err != nil {
		return nil, err
	}
	if !handle.transition(model.TaskStatusPaused) {
		return nil, apperrors.Conflict("task " + id + " cannot be paused in status " + string(handle.snapshot().Status))
	}
	handle.control.set(issuance.TaskPaused)
	return handle.snapshot(), nil
}

// Resume lets a paused task dispatch again. Resuming a running task is a
// no-op.
func (s *TaskService) Resume(id string) (*model.BackgroundTask, error) {
	handle, err := s.handle(id)
	if err != nil {
		return nil, err
	}
	if !handle.transition(model.TaskStatusRunning) {
		return nil, apperrors.Conflict("task " + id + " cannot be resumed in status " + string(handle.snapshot().Status))
	}
	handle.control.set(issuance.TaskActive)
	return handle.snapshot(), nil
}

// Cancel stops further dispatches cooperatively. Pipelines already running
// complete and their outcomes are kept; cancelling a finished or already
// cancelled task is a no-op.
func (s *TaskService) Cancel(id string) (*model.BackgroundTask, error) {
	handle, err := s.handle(id)
	if err != nil {
		return nil, err
	}

	handle.mu.Lock()
	terminal := handle.task.Status.Terminal()
	handle.mu.Unlock()
	if terminal {
		return handle.snapshot(), nil
	}

	handle.control.set(issuance.TaskCancelledState)
	return handle.snapshot(), nil
}

func (s *TaskService) handle(id string) (*taskHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.NotFoundf("task %q not found", id)
	}
	return handle, nil
}
