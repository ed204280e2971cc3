package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/data"
	"github.com/certmint/certmint-api/internal/domain/issuance"
	"github.com/certmint/certmint-api/internal/domain/model"
	apperrors "github.com/certmint/certmint-api/internal/errors"
	"github.com/certmint/certmint-api/internal/observability/metrics"
	"github.com/certmint/certmint-api/internal/observability/notify"
	"github.com/certmint/certmint-api/internal/observability/statsd"
)

// batchLockKeyPrefix namespaces the per-event dedupe lock in Redis.
const batchLockKeyPrefix = "certmint:batch-lock:"

// defaultBatchLockTTL bounds how long a crashed process can hold an event
// locked before another batch may start.
const defaultBatchLockTTL = 30 * time.Minute

// BatchRunner executes one issuance batch. Satisfied by
// issuance.BatchOrchestrator.
type BatchRunner interface {
	Run(ctx context.Context, params issuance.RunParams) (*model.BatchSummary, error)
}

// IssuerServiceOptions groups dependencies for IssuerService.
type IssuerServiceOptions struct {
	Events       core.EventRepository
	Orchestrator BatchRunner
	Cache        core.CacheRepository
	Metrics      statsd.Sink
	Alerts       notify.Sink
	LockTTL      time.Duration
	Logger       *slog.Logger
}

// IssuerService is the batch operation surface. It resolves the event,
// guards against concurrent batches for the same event with a Redis dedupe
// lock, delegates to the orchestrator, and emits lifecycle metrics and
// failure alerts around the run.
type IssuerService struct {
	events       core.EventRepository
	orchestrator BatchRunner
	cache        core.CacheRepository
	sink         statsd.Sink
	alerts       notify.Sink
	lockTTL      time.Duration
	logger       *slog.Logger
}

// NewIssuerService constructs a new IssuerService.
func NewIssuerService(opts IssuerServiceOptions) *IssuerService {
	if opts.Events == nil {
		panic("EventRepository is required")
	}
	if opts.Orchestrator == nil {
		panic("Orchestrator is required")
	}

	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultBatchLockTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IssuerService{
		events:       opts.Events,
		orchestrator: opts.Orchestrator,
		cache:        opts.Cache,
		sink:         opts.Metrics,
		alerts:       opts.Alerts,
		lockTTL:      lockTTL,
		logger:       logger,
	}
}

// IssueBatchParams groups inputs for one batch issuance call.
type IssueBatchParams struct {
	EventID string
	// RecipientIDs optionally narrows the batch to an explicit subset.
	RecipientIDs []string
	// TaskID tags the lock value and failure alerts for background runs.
	TaskID string
	// Controller is polled by the orchestrator before each dispatch.
	Controller issuance.TaskController
	// Progress receives orchestrator progress events; nil disables them.
	Progress chan<- issuance.ProgressEvent
}

// IssueBatch runs one issuance batch for an event. An unknown event is a
// validation error, as is a batch already running for the same event.
func (s *IssuerService) IssueBatch(ctx context.Context, params IssueBatchParams) (*model.BatchSummary, error) {
	event, err := s.events.GetByID(ctx, params.EventID)
	if err != nil {
		if errors.Is(err, data.ErrEventNotFound) {
			return nil, apperrors.Validationf("unknown event %q", params.EventID)
		}
		return nil, fmt.Errorf("load event %s: %w", params.EventID, err)
	}

	release, err := s.acquireLock(ctx, event.ID, params.TaskID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	summary, runErr := s.orchestrator.Run(ctx, issuance.RunParams{
		Event:        event,
		RecipientIDs: params.RecipientIDs,
		Controller:   params.Controller,
		Progress:     params.Progress,
	})

	s.emitRunMetrics(event.ID, summary, runErr, time.Since(start))
	s.alertOnFailures(ctx, event, params.TaskID, summary, runErr)

	return summary, runErr
}

// GetEvent resolves an event, mapping the missing row to a classified
// validation error so CLI callers get the same taxonomy as batch starts.
func (s *IssuerService) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, data.ErrEventNotFound) {
			return nil, apperrors.Validationf("unknown event %q", eventID)
		}
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	return event, nil
}

// acquireLock takes the per-event dedupe lock. Without a cache the service
// runs unguarded, which is acceptable for single-operator CLI use.
func (s *IssuerService) acquireLock(ctx context.Context, eventID, taskID string) (func(), error) {
	if s.cache == nil {
		return func() {}, nil
	}

	key := batchLockKeyPrefix + eventID
	value := taskID
	if value == "" {
		value = time.Now().UTC().Format(time.RFC3339Nano)
	}

	acquired, err := s.cache.SetIfNotExists(ctx, key, []byte(value), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock for event %s: %w", eventID, err)
	}
	if !acquired {
		return nil, apperrors.Conflict(
			fmt.Sprintf("an issuance batch is already running for event %q", eventID))
	}

	return func() {
		// Release with a fresh context so completion survives run cancellation.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, delErr := s.cache.Delete(releaseCtx, key); delErr != nil {
			s.logger.WarnContext(releaseCtx, "failed to release batch lock",
				"event_id", eventID, "error", delErr)
		}
	}, nil
}

func (s *IssuerService) emitRunMetrics(eventID string, summary *model.BatchSummary, runErr error, elapsed time.Duration) {
	if s.sink == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case runErr != nil:
		result = metrics.ResultError
	case summary != nil && summary.Failed > 0:
		result = metrics.ResultError
	}

	metrics.EmitTaskLifecycle(s.sink, metrics.TaskMetric{
		EventID:    eventID,
		Transition: "batch_finished",
		Result:     result,
		Duration:   elapsed,
		Err:        runErr,
	})

	if summary == nil {
		return
	}
	for i := range summary.Results {
		res := &summary.Results[i]
		outcome := metrics.RecipientMetric{
			EventID:  eventID,
			Stage:    string(res.Stage),
			Result:   metrics.ResultSuccess,
			Attempts: res.Attempts,
			Duration: res.Duration,
		}
		if !res.Success {
			outcome.Result = metrics.ResultError
			outcome.Stage = string(res.FailedStage)
			outcome.Category = res.ErrorCategory
		}
		metrics.EmitRecipientOutcome(s.sink, outcome)
	}
}

// alertOnFailures sends at most one operator alert per batch. Alert
// delivery is best-effort and never affects the batch outcome.
func (s *IssuerService) alertOnFailures(
	ctx context.Context,
	event *model.Event,
	taskID string,
	summary *model.BatchSummary,
	runErr error,
) {
	if s.alerts == nil {
		return
	}

	payload := notify.BatchFailurePayload{
		TaskID:     taskID,
		EventID:    event.ID,
		EventName:  event.Name,
		OccurredAt: time.Now().UTC(),
	}

	switch {
	case runErr != nil && !errors.Is(runErr, issuance.ErrBatchCancelled):
		payload.Error = runErr.Error()
		payload.Severity = notify.SeverityCritical
	case summary != nil && summary.Failed > 0:
		payload.Severity = notify.SeverityWarning
	default:
		return
	}
	if summary != nil {
		payload.Total = summary.Total
		payload.Failed = summary.Failed
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.alerts.SendBatchFailure(alertCtx, payload); err != nil {
		s.logger.WarnContext(alertCtx, "batch failure alert not delivered",
			"event_id", event.ID, "error", err)
	}
}
