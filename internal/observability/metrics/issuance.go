package metrics

import (
	"time"

	obserrors "github.com/certmint/certmint-api/internal/observability/errors"
	"github.com/certmint/certmint-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// RecipientMetric captures the outcome of one recipient passing through the
// issuance pipeline.
type RecipientMetric struct {
	EventID  string
	Stage    string
	Result   string
	Category string
	Attempts int
	Duration time.Duration
	Err      error
}

// EmitRecipientOutcome emits standardised per-recipient pipeline metrics.
func EmitRecipientOutcome(sink statsd.Sink, in RecipientMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"event_id": in.EventID,
		"stage":    in.Stage,
		"result":   in.Result,
	}
	if in.Category != "" {
		tags["category"] = in.Category
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("issuance.recipient", 1, tags)

	if in.Attempts > 1 {
		sink.Count("issuance.retries", int64(in.Attempts-1), CloneTags(tags))
	}

	if in.Duration > 0 {
		sink.Timing("issuance.recipient_duration", in.Duration, CloneTags(tags))
	}
}

// TaskMetric captures details about a batch task lifecycle transition.
type TaskMetric struct {
	EventID    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitTaskLifecycle emits standardised batch task lifecycle metrics.
func EmitTaskLifecycle(sink statsd.Sink, in TaskMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"event_id":   in.EventID,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("task.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("task.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
