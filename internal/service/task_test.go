package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/domain/model"
	apperrors "github.com/certmint/certmint-api/internal/errors"
	"github.com/certmint/certmint-api/internal/testutil"
)

// batchScript mimics the orchestrator's dispatch loop closely enough to
// exercise the registry: it polls the controller before each recipient,
// waits while paused, stops on cancel, and reports progress per recipient.
type batchScript struct {
	total int
	// stepDelay paces recipients so tests can pause mid-batch.
	stepDelay time.Duration
	// gate, when set, is received from before each recipient after the
	// first, giving tests deterministic control over advancement.
	gate chan struct{}
}

func (b *batchScript) Run(ctx context.Context, params issuance.RunParams) (*model.BatchSummary, error) {
	controller := params.Controller
	summary := &model.BatchSummary{EventID: params.Event.ID, Total: b.total}

	for i := 0; i < b.total; i++ {
		for controller.State() == issuance.TaskPaused {
			select {
			case <-ctx.Done():
				return summary, issuance.ErrBatchCancelled
			case <-time.After(5 * time.Millisecond):
			}
		}
		if controller.State() == issuance.TaskCancelledState {
			return summary, issuance.ErrBatchCancelled
		}

		if b.gate != nil && i > 0 {
			waiting := true
			for waiting {
				select {
				case <-b.gate:
					waiting = false
				case <-time.After(5 * time.Millisecond):
					if controller.State() == issuance.TaskCancelledState {
						return summary, issuance.ErrBatchCancelled
					}
				case <-ctx.Done():
					return summary, issuance.ErrBatchCancelled
				}
			}
		}
		if b.stepDelay > 0 {
			time.Sleep(b.stepDelay)
		}

		summary.Successful++
		params.Progress <- issuance.ProgressEvent{
			Total:     b.total,
			Completed: summary.Successful,
			Step:      "processed recipient",
		}
	}
	return summary, nil
}

func newTaskFixture(t *testing.T, runner BatchRunner) *TaskService {
	t.Helper()

	event := testutil.NewEvent().Build()
	issuer := NewIssuerService(IssuerServiceOptions{
		Events:       &stubEventRepo{events: map[string]*model.Event{event.ID: event}},
		Orchestrator: runner,
		Cache:        newMemCache(),
	})
	return NewTaskService(TaskServiceOptions{Issuer: issuer, ProgressBuffer: 16})
}

func waitForStatus(t *testing.T, svc *TaskService, id string, want model.TaskStatus) *model.BackgroundTask {
	t.Helper()

	var got *model.BackgroundTask
	require.Eventually(t, func() bool {
		task, err := svc.Get(id)
		if err != nil {
			return false
		}
		got = task
		return task.Status == want
	}, 10*time.Second, 5*time.Millisecond, "task never reached status %s", want)
	return got
}

func TestTaskStartUnknownEvent(t *testing.T) {
	t.Parallel()

	svc := newTaskFixture(t, &batchScript{total: 1})

	_, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-missing"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, svc.List(), "failed starts must not register a task")
}

func TestTaskRunsToCompletion(t *testing.T) {
	t.Parallel()

	svc := newTaskFixture(t, &batchScript{total: 3})

	task, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-test"})
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)
	assert.Equal(t, model.TaskStatusStarting, task.Status)

	final := waitForStatus(t, svc, task.ID, model.TaskStatusCompleted)
	assert.Equal(t, 3, final.Total)
	assert.Equal(t, 3, final.Completed)
	assert.Equal(t, 0, final.Failed)
	require.NotNil(t, final.FinishedAt)
	require.NotNil(t, final.Summary)
	assert.Equal(t, 3, final.Summary.Successful)
	assert.Equal(t, "3/3 done, 0 failed", final.Progress())
}

func TestTaskPauseResumeCancelLifecycle(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	svc := newTaskFixture(t, &batchScript{total: 10, gate: gate})

	task, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-test"})
	require.NoError(t, err)
	id := task.ID

	// First recipient completes without the gate.
	require.Eventually(t, func() bool {
		got, getErr := svc.Get(id)
		return getErr == nil && got.Completed >= 1
	}, 10*time.Second, 5*time.Millisecond)

	paused, err := svc.Pause(id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPaused, paused.Status)

	// Pause is idempotent.
	_, err = svc.Pause(id)
	require.NoError(t, err)

	// Counts freeze while paused: the script is blocked before recipient 2.
	frozen, err := svc.Get(id)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	still, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, frozen.Completed, still.Completed, "no progress may happen while paused")

	resumed, err := svc.Resume(id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRunning, resumed.Status)

	// Let two more recipients through, then cancel.
	gate <- struct{}{}
	gate <- struct{}{}
	require.Eventually(t, func() bool {
		got, getErr := svc.Get(id)
		return getErr == nil && got.Completed >= 3
	}, 10*time.Second, 5*time.Millisecond)

	cancelled, err := svc.Cancel(id)
	require.NoError(t, err)
	require.NotNil(t, cancelled)

	final := waitForStatus(t, svc, id, model.TaskStatusCancelled)
	assert.GreaterOrEqual(t, final.Completed, 3)
	assert.Less(t, final.Completed, 10, "cancel must stop dispatching")
	require.NotNil(t, final.FinishedAt)

	// Terminal counts stay frozen.
	time.Sleep(20 * time.Millisecond)
	after, err := svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, final.Completed, after.Completed)

	// Cancelling a finished task is a no-op.
	again, err := svc.Cancel(id)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, again.Status)

	// Pausing a finished task is rejected.
	_, err = svc.Pause(id)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestTaskPauseBeforeFirstDispatch(t *testing.T) {
	t.Parallel()

	svc := newTaskFixture(t, &batchScript{total: 2, stepDelay: 5 * time.Millisecond})

	task, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-test"})
	require.NoError(t, err)

	// The pause may land while the task is still starting; it must be
	// honored either way, never rejected as a conflict.
	paused, err := svc.Pause(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPaused, paused.Status)

	// The run loop spinning up must not undo an earlier pause.
	time.Sleep(30 * time.Millisecond)
	still, err := svc.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusPaused, still.Status)

	_, err = svc.Resume(task.ID)
	require.NoError(t, err)
	waitForStatus(t, svc, task.ID, model.TaskStatusCompleted)
}

func TestTaskRegistryLookup(t *testing.T) {
	t.Parallel()

	svc := newTaskFixture(t, &batchScript{total: 1})

	_, err := svc.Get("nope")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = svc.Pause("nope")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Resume("nope")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Cancel("nope")
	assert.True(t, apperrors.IsNotFound(err))

	task, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-test"})
	require.NoError(t, err)

	listed := svc.List()
	require.Len(t, listed, 1)
	assert.Equal(t, task.ID, listed[0].ID)

	waitForStatus(t, svc, task.ID, model.TaskStatusCompleted)
}

func TestTaskFailureSurfacesError(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{err: assert.AnError}
	svc := newTaskFixture(t, runner)

	task, err := svc.Start(context.Background(), StartTaskParams{EventID: "evt-test"})
	require.NoError(t, err)

	final := waitForStatus(t, svc, task.ID, model.TaskStatusFailed)
	assert.Contains(t, final.Error, assert.AnError.Error())
	require.NotNil(t, final.FinishedAt)
}
