// Package failurenotifier fans batch failure notifications out to every
// configured alerting sink.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/certmint/certmint-api/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches batch failure events to all registered sinks. It
// implements notify.Sink so callers stay agnostic of the fan-out.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

var _ notify.Sink = (*Service)(nil)

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	return &Service{
		logger: logger,
		sinks:  sinks,
	}
}

// SendBatchFailure fans the payload out to all sinks. Delivery errors are
// logged per sink; the batch outcome never depends on alert delivery, so
// the method always returns nil.
func (s *Service) SendBatchFailure(ctx context.Context, payload notify.BatchFailurePayload) error {
	if len(s.sinks) == 0 {
		return nil
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendBatchFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"task_id", payload.TaskID,
					"event_id", payload.EventID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
	return nil
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
