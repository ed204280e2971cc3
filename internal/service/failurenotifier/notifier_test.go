package failurenotifier

import (
	"context"
	"errors"
	"testing"

	"github.com/certmint/certmint-api/internal/observability/notify"
)

func TestServiceSendBatchFailure(t *testing.T) {
	ctx := context.Background()

	var received []notify.BatchFailurePayload
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.BatchFailurePayload) error {
					received = append(received, payload)
					return nil
				}),
			},
		},
	})

	if err := svc.SendBatchFailure(ctx, notify.BatchFailurePayload{
		TaskID:  "task-123",
		EventID: "evt-1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(received))
	}
	if received[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", received[0].Severity)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
}

func TestServiceSwallowsSinkErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "fail",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.BatchFailurePayload) error {
					return errors.New("boom")
				}),
			},
		},
	})

	if err := svc.SendBatchFailure(context.Background(), notify.BatchFailurePayload{TaskID: "task-123"}); err != nil {
		t.Fatalf("expected delivery errors to be swallowed, got %v", err)
	}
}

func TestServiceFansOutToAllSinks(t *testing.T) {
	var first, second bool
	svc := NewService(Options{
		Sinks: []SinkRegistration{
			{
				Name: "first",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.BatchFailurePayload) error {
					first = true
					return errors.New("boom")
				}),
			},
			{
				Name: "second",
				Sink: notify.SinkFunc(func(ctx context.Context, payload notify.BatchFailurePayload) error {
					second = true
					return nil
				}),
			},
		},
	})

	_ = svc.SendBatchFailure(context.Background(), notify.BatchFailurePayload{TaskID: "task-1"})

	if !first || !second {
		t.Fatalf("expected both sinks invoked, got first=%v second=%v", first, second)
	}
}
