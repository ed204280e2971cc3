package data

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/certmint/certmint-api/internal/core"
)

const defaultNotificationList = "certmint:notifications"

// RedisNotificationQueueOptions configures a RedisNotificationQueue.
type RedisNotificationQueueOptions struct {
	Client redis.UniversalClient
	// ListKey is the Redis list the mailer consumes. Defaults to
	// "certmint:notifications".
	ListKey string
	Logger  *slog.Logger
}

// RedisNotificationQueue implements core.NotificationQueue by pushing one
// JSON entry per recipient onto a Redis list in a single pipelined call.
// Delivery and deduplication belong to the consumer on the other end.
type RedisNotificationQueue struct {
	client  redis.UniversalClient
	listKey string
	logger  *slog.Logger
}

// NewRedisNotificationQueue creates a new queue producer.
func NewRedisNotificationQueue(opts RedisNotificationQueueOptions) *RedisNotificationQueue {
	if opts.Client == nil {
		panic("redis client is required")
	}
	listKey := opts.ListKey
	if listKey == "" {
		listKey = defaultNotificationList
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotificationQueue{
		client:  opts.Client,
		listKey: listKey,
		logger:  logger,
	}
}

// queuedNotification is the wire shape the mailer consumes.
type queuedNotification struct {
	core.NotificationEntry
	QueuedAt time.Time `json:"queued_at"`
}

// EnqueueBatch pushes every entry in one pipelined round trip and reports a
// per-recipient outcome. A marshal or push failure for one entry never
// blocks the others.
func (q *RedisNotificationQueue) EnqueueBatch(ctx context.Context, params core.EnqueueBatchParams) ([]core.NotificationOutcome, error) {
	if len(params.Entries) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	outcomes := make([]core.NotificationOutcome, len(params.Entries))
	payloads := make([][]byte, len(params.Entries))
	for i, entry := range params.Entries {
		outcomes[i] = core.NotificationOutcome{RecipientID: entry.RecipientID}
		payload, err := json.Marshal(queuedNotification{NotificationEntry: entry, QueuedAt: now})
		if err != nil {
			outcomes[i].Error = fmt.Sprintf("encode notification: %v", err)
			continue
		}
		payloads[i] = payload
	}

	pipe := q.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(params.Entries))
	for i, payload := range payloads {
		if payload == nil {
			continue
		}
		cmds[i] = pipe.LPush(ctx, q.listKey, payload)
	}
	// Exec surfaces the first command error; per-command results below
	// carry the rest.
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue notifications: %w", err)
	}

	queued := 0
	for i, cmd := range cmds {
		if cmd == nil {
			continue
		}
		if err := cmd.Err(); err != nil {
			outcomes[i].Error = err.Error()
			continue
		}
		outcomes[i].Queued = true
		queued++
	}

	q.logger.InfoContext(ctx, "notifications queued",
		"list", q.listKey,
		"event_name", params.EventName,
		"entries", len(params.Entries),
		"queued", queued)

	return outcomes, nil
}
