package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/certmint/certmint-api/internal/core"
	apperrors "github.com/certmint/certmint-api/internal/errors"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// ErrBatchCancelled is returned by Run when the controller cancelled the
// batch before every recipient was dispatched. The summary returned
// alongside still covers everything that did run.
var ErrBatchCancelled = errors.New("issuance batch cancelled")

// OrchestratorConfig groups batch-level tuning.
type OrchestratorConfig struct {
	// IssuerOrigin is the signing identity's address, included in
	// notification entries.
	IssuerOrigin string
	// PausePoll is how often a paused batch re-checks the controller.
	PausePoll time.Duration
}

// OrchestratorOptions configures a BatchOrchestrator.
type OrchestratorOptions struct {
	Recipients    core.RecipientRepository
	Pipeline      *Pipeline
	Gate          *ConcurrencyGate
	Notifications core.NotificationQueue
	Config        OrchestratorConfig
	Logger        *slog.Logger
}

// BatchOrchestrator resolves the eligible recipient set, fans recipient
// pipelines out through the concurrency gate, fans results back in, and
// dispatches one batched notification over the successful recipients.
type BatchOrchestrator struct {
	recipients    core.RecipientRepository
	pipeline      *Pipeline
	gate          *ConcurrencyGate
	notifications core.NotificationQueue
	cfg           OrchestratorConfig
	logger        *slog.Logger
}

// NewBatchOrchestrator validates required dependencies and constructs a
// BatchOrchestrator.
func NewBatchOrchestrator(opts OrchestratorOptions) *BatchOrchestrator {
	if opts.Recipients == nil {
		panic("RecipientRepository is required")
	}
	if opts.Pipeline == nil {
		panic("Pipeline is required")
	}
	if opts.Gate == nil {
		panic("ConcurrencyGate is required")
	}

	cfg := opts.Config
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = 250 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &BatchOrchestrator{
		recipients:    opts.Recipients,
		pipeline:      opts.Pipeline,
		gate:          opts.Gate,
		notifications: opts.Notifications,
		cfg:           cfg,
		logger:        logger,
	}
}

// RunParams groups inputs for one batch run.
type RunParams struct {
	Event *model.Event
	// RecipientIDs optionally narrows the batch to an explicit subset.
	RecipientIDs []string
	// Controller is polled before each dispatch; nil means the batch can
	// neither pause nor cancel.
	Controller TaskController
	// Progress receives progress events; nil disables reporting.
	Progress chan<- ProgressEvent
}

// Run executes one issuance batch. Recipient-level failures are itemized
// in the summary and never abort the batch; the returned error is reserved
// for batch-fatal conditions (no eligible recipients) and cancellation.
func (o *BatchOrchestrator) Run(ctx context.Context, params RunParams) (*model.BatchSummary, error) {
	start := time.Now()
	event := params.Event
	controller := params.Controller
	if controller == nil {
		controller = alwaysActive{}
	}

	eligible, err := o.recipients.ListEligible(ctx, core.ListEligibleParams{
		EventID:      event.ID,
		RecipientIDs: params.RecipientIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible recipients: %w", err)
	}
	if len(eligible) == 0 {
		return nil, apperrors.Validationf(
			"no eligible recipients for event %q (attendance proof required, already-issued excluded)", event.ID)
	}

	o.logger.InfoContext(ctx, "starting issuance batch",
		"event_id", event.ID,
		"event_name", event.Name,
		"eligible", len(eligible),
		"concurrency", o.gate.Slots())

	summary := &model.BatchSummary{
		EventID:   event.ID,
		EventName: event.Name,
		StartedAt: start,
		Total:     len(eligible),
	}
	emitProgress(params.Progress, ProgressEvent{
		Total: summary.Total,
		Step:  "resolved eligible recipients",
	})

	results, cancelled := o.fanOut(ctx, fanOutParams{
		event:      event,
		eligible:   eligible,
		controller: controller,
		progress:   params.Progress,
	})

	for i := range results {
		if results[i].Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	o.dispatchNotifications(ctx, event, results, summary, params.Progress)

	// Presentation order only; completion order carries no meaning.
	sort.Slice(results, func(i, j int) bool {
		return results[i].RecipientName < results[j].RecipientName
	})
	summary.Results = results
	summary.Duration = time.Since(start)

	o.logger.InfoContext(ctx, "issuance batch finished",
		"event_id", event.ID,
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"notify_queued", summary.NotifyQueued,
		"notify_failed", summary.NotifyFailed,
		"cancelled", cancelled,
		"duration", summary.Duration)

	if cancelled {
		return summary, ErrBatchCancelled
	}
	return summary, nil
}

type fanOutParams struct {
	event      *model.Event
	eligible   []*model.Recipient
	controller TaskController
	progress   chan<- ProgressEvent
}

// fanOut dispatches one pipeline per recipient through the gate and
// collects every result. A panic inside a pipeline is captured and
// converted to a failed result for that recipient alone.
func (o *BatchOrchestrator) fanOut(ctx context.Context, params fanOutParams) ([]model.PipelineResult, bool) {
	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		results   = make([]model.PipelineResult, 0, len(params.eligible))
		completed int
		failed    int
	)

	collect := func(res model.PipelineResult) {
		mu.Lock()
		results = append(results, res)
		if res.Success {
			completed++
		} else {
			failed++
		}
		done, bad := completed, failed
		mu.Unlock()

		emitProgress(params.progress, ProgressEvent{
			Total:     len(params.eligible),
			Completed: done,
			Failed:    bad,
			Step:      fmt.Sprintf("processed %s", res.RecipientName),
			Recipient: res.RecipientID,
			Result:    &res,
		})
	}

	cancelled := false
	for _, recipient := range params.eligible {
		if !o.waitWhilePaused(ctx, params.controller, params.progress, len(params.eligible)) {
			cancelled = true
			break
		}

		if err := o.gate.Acquire(ctx); err != nil {
			cancelled = true
			break
		}

		wg.Add(1)
		go func(r *model.Recipient) {
			defer wg.Done()
			defer o.gate.Release()
			defer func() {
				if rec := recover(); rec != nil {
					o.logger.ErrorContext(ctx, "recipient pipeline panicked",
						"recipient_id", r.ID, "panic", rec)
					collect(model.PipelineResult{
						RecipientID:   r.ID,
						RecipientName: r.FullName,
						WalletAddress: r.WalletAddress,
						Stage:         model.StagePending,
						FailedStage:   model.StagePending,
						Error:         fmt.Sprintf("pipeline fault: %v", rec),
					})
				}
			}()
			collect(o.pipeline.Run(ctx, r, params.event))
		}(recipient)
	}

	wg.Wait()
	return results, cancelled
}

// waitWhilePaused blocks while the controller reports paused and returns
// false when the batch should stop dispatching (cancel or context done).
// Already-dispatched pipelines are never preempted.
func (o *BatchOrchestrator) waitWhilePaused(
	ctx context.Context,
	controller TaskController,
	progress chan<- ProgressEvent,
	total int,
) bool {
	for {
		switch controller.State() {
		case TaskActive:
			return ctx.Err() == nil
		case TaskCancelledState:
			return false
		case TaskPaused:
			emitProgress(progress, ProgressEvent{Total: total, Step: "paused"})
			timer := time.NewTimer(o.cfg.PausePoll)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
	}
}

// dispatchNotifications queues at most one batched notification call per
// batch, covering every successfully issued recipient, and folds per
// recipient outcomes back into the results.
func (o *BatchOrchestrator) dispatchNotifications(
	ctx context.Context,
	event *model.Event,
	results []model.PipelineResult,
	summary *model.BatchSummary,
	progress chan<- ProgressEvent,
) {
	if o.notifications == nil {
		return
	}

	entries := make([]core.NotificationEntry, 0, len(results))
	index := make(map[string]*model.PipelineResult, len(results))
	for i := range results {
		res := &results[i]
		if !res.Success {
			continue
		}
		index[res.RecipientID] = res
		entries = append(entries, core.NotificationEntry{
			RecipientID:  res.RecipientID,
			Email:        res.Email,
			FullName:     res.RecipientName,
			ArtifactURL:  res.ArtifactURL,
			TokenID:      res.TokenID,
			TxHash:       res.TxHash,
			EventName:    event.Name,
			IssuerOrigin: o.cfg.IssuerOrigin,
		})
	}
	if len(entries) == 0 {
		return
	}

	emitProgress(progress, ProgressEvent{
		Total:     summary.Total,
		Completed: summary.Successful,
		Failed:    summary.Failed,
		Step:      "queueing notifications",
	})

	outcomes, err := o.notifications.EnqueueBatch(ctx, core.EnqueueBatchParams{
		Entries:      entries,
		EventName:    event.Name,
		IssuerOrigin: o.cfg.IssuerOrigin,
	})
	if err != nil {
		summary.NotifyFailed = len(entries)
		o.logger.ErrorContext(ctx, "notification dispatch failed",
			"event_id", event.ID, "entries", len(entries), "error", err)
		return
	}

	for _, outcome := range outcomes {
		res, ok := index[outcome.RecipientID]
		if !ok {
			continue
		}
		if outcome.Queued {
			res.Notified = true
			res.Stage = model.StageNotified
			summary.NotifyQueued++
		} else {
			res.NotifyError = outcome.Error
			summary.NotifyFailed++
		}
	}
}
