package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/testutil"
)

func TestRedisNotificationQueueEnqueueBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	queue := NewRedisNotificationQueue(RedisNotificationQueueOptions{
		Client:  client,
		ListKey: "test:notifications",
	})
	ctx := context.Background()

	token := uint64(42)
	outcomes, err := queue.EnqueueBatch(ctx, core.EnqueueBatchParams{
		EventName:    "GopherConf 2026",
		IssuerOrigin: "0xissuer",
		Entries: []core.NotificationEntry{
			{
				RecipientID: "rec-1",
				Email:       "rec-1@example.com",
				FullName:    "Ada",
				ArtifactURL: "ipfs://bafy1",
				TokenID:     &token,
				TxHash:      "0xabc",
				EventName:   "GopherConf 2026",
			},
			{
				RecipientID: "rec-2",
				Email:       "rec-2@example.com",
				FullName:    "Grace",
				ArtifactURL: "local://artifacts/evt-1/rec-2",
				EventName:   "GopherConf 2026",
			},
		},
	})

	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.True(t, outcome.Queued, "outcome for %s", outcome.RecipientID)
		assert.Empty(t, outcome.Error)
	}

	raw, err := client.LRange(ctx, "test:notifications", 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var entry struct {
		core.NotificationEntry
		QueuedAt time.Time `json:"queued_at"`
	}
	// LPUSH reverses order; the last pushed entry is first.
	require.NoError(t, json.Unmarshal([]byte(raw[0]), &entry))
	assert.Equal(t, "rec-2", entry.RecipientID)
	assert.False(t, entry.QueuedAt.IsZero())

	require.NoError(t, json.Unmarshal([]byte(raw[1]), &entry))
	assert.Equal(t, "rec-1", entry.RecipientID)
	assert.Equal(t, "rec-1@example.com", entry.Email)
	require.NotNil(t, entry.TokenID)
	assert.Equal(t, uint64(42), *entry.TokenID)
}

func TestRedisNotificationQueueEmptyBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	queue := NewRedisNotificationQueue(RedisNotificationQueueOptions{Client: client})

	outcomes, err := queue.EnqueueBatch(context.Background(), core.EnqueueBatchParams{})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestRedisCacheRepoDedupeLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	acquired, err := repo.SetIfNotExists(ctx, "lock:evt-1", []byte("task-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// A second holder cannot take the lock while it lives.
	acquired, err = repo.SetIfNotExists(ctx, "lock:evt-1", []byte("task-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	holder, err := repo.Get(ctx, "lock:evt-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("task-a"), holder)

	released, err := repo.Delete(ctx, "lock:evt-1")
	require.NoError(t, err)
	assert.True(t, released)

	acquired, err = repo.SetIfNotExists(ctx, "lock:evt-1", []byte("task-b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired, "released lock is immediately reusable")
}
