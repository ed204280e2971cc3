package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// BatchFailurePayload captures the canonical data we emit when a batch run
// finishes with failed recipients or aborts outright.
type BatchFailurePayload struct {
	TaskID     string
	EventID    string
	EventName  string
	Total      int
	Failed     int
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming batch failure notifications.
type Sink interface {
	SendBatchFailure(ctx context.Context, payload BatchFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload BatchFailurePayload) error

// SendBatchFailure implements the Sink interface.
func (f SinkFunc) SendBatchFailure(ctx context.Context, payload BatchFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
