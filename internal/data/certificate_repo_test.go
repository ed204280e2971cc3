package data

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/domain/model"
	"github.com/certmint/certmint-api/internal/testutil"
)

func seedEventAndRecipient(t *testing.T, db *sql.DB) (*model.Event, *model.Recipient) {
	t.Helper()
	ctx := context.Background()

	event, err := NewEventRepo(db).Create(ctx, testutil.NewEvent().Build())
	require.NoError(t, err)

	recipient, err := NewRecipientRepo(db).Create(ctx, testutil.NewRecipient("rec-1").Build())
	require.NoError(t, err)

	return event, recipient
}

func TestCertificateRepoLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		event, recipient := seedEventAndRecipient(t, db)
		repo := NewCertificateRepo(db)

		pending, err := repo.RecordPending(ctx, core.RecordPendingParams{
			EventID:     event.ID,
			RecipientID: recipient.ID,
			ContentHash: "bafyabc",
			ArtifactURL: "ipfs://bafyabc",
		})
		require.NoError(t, err)
		assert.Equal(t, model.CertificateStatusPending, pending.Status)

		token := uint64(42)
		issued, err := repo.RecordIssued(ctx, core.RecordIssuedParams{
			EventID:     event.ID,
			RecipientID: recipient.ID,
			TokenID:     &token,
			TxHash:      "0xabc",
			ContentHash: "bafyabc",
			ArtifactURL: "ipfs://bafyabc",
			MetadataCID: "bafymetaabc",
		})
		require.NoError(t, err)
		assert.Equal(t, model.CertificateStatusIssued, issued.Status)
		assert.Equal(t, pending.ID, issued.ID, "re-recording updates the existing row")
		require.NotNil(t, issued.TokenID)
		assert.Equal(t, uint64(42), *issued.TokenID)
		assert.Equal(t, "bafymetaabc", issued.MetadataCID)

		// Idempotence: re-recording the confirmation changes nothing
		// structurally and creates no duplicate row.
		again, err := repo.RecordIssued(ctx, core.RecordIssuedParams{
			EventID:     event.ID,
			RecipientID: recipient.ID,
			TokenID:     &token,
			TxHash:      "0xabc",
		})
		require.NoError(t, err)
		assert.Equal(t, issued.ID, again.ID)

		records, err := repo.ListByEvent(ctx, event.ID, 50, 0)
		require.NoError(t, err)
		assert.Len(t, records, 1)

		// A late failure report never downgrades an issued certificate.
		failed, err := repo.RecordFailed(ctx, core.RecordFailedParams{
			EventID:     event.ID,
			RecipientID: recipient.ID,
			Error:       "late duplicate report",
		})
		require.NoError(t, err)
		assert.Equal(t, model.CertificateStatusIssued, failed.Status)
	})
}

func TestCertificateRepoNullTokenID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		event, recipient := seedEventAndRecipient(t, db)
		repo := NewCertificateRepo(db)

		issued, err := repo.RecordIssued(ctx, core.RecordIssuedParams{
			EventID:     event.ID,
			RecipientID: recipient.ID,
			TxHash:      "0xdef",
			Note:        "confirmed but token id could not be extracted from receipt logs",
		})
		require.NoError(t, err)
		assert.Nil(t, issued.TokenID, "unknown token id is stored as NULL, never fabricated")

		got, err := repo.GetByRecipient(ctx, event.ID, recipient.ID)
		require.NoError(t, err)
		assert.Nil(t, got.TokenID)
		assert.Contains(t, got.Note, "could not be extracted")
	})
}

func TestCertificateRepoSentinels(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewCertificateRepo(db)

		_, err := repo.GetByRecipient(ctx, "evt-none", "rec-none")
		assert.ErrorIs(t, err, ErrCertificateNotFound)

		// Writes against unknown event/recipient surface the FK violation
		// as a classified sentinel.
		_, err = repo.RecordFailed(ctx, core.RecordFailedParams{
			EventID:     "evt-none",
			RecipientID: "rec-none",
			Error:       "boom",
		})
		assert.ErrorIs(t, err, ErrRecipientNotFound)
	})
}

func TestRecipientRepoListEligible(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()

		event, err := NewEventRepo(db).Create(ctx, testutil.NewEvent().Build())
		require.NoError(t, err)

		recipients := NewRecipientRepo(db)
		for _, r := range []*model.Recipient{
			testutil.NewRecipient("rec-1").WithFullName("Ada").Build(),
			testutil.NewRecipient("rec-2").WithFullName("Grace").Build(),
			testutil.NewRecipient("rec-3").WithFullName("Margaret").WithoutAttendanceProof().Build(),
			testutil.NewRecipient("rec-4").WithFullName("Barbara").Build(),
		} {
			_, err := recipients.Create(ctx, r)
			require.NoError(t, err)
		}

		// rec-4 already holds an issued certificate.
		token := uint64(7)
		_, err = NewCertificateRepo(db).RecordIssued(ctx, core.RecordIssuedParams{
			EventID:     event.ID,
			RecipientID: "rec-4",
			TokenID:     &token,
			TxHash:      "0xaaa",
		})
		require.NoError(t, err)

		eligible, err := recipients.ListEligible(ctx, core.ListEligibleParams{EventID: event.ID})
		require.NoError(t, err)
		require.Len(t, eligible, 2, "no attendance proof and already issued are both excluded")
		assert.Equal(t, "rec-1", eligible[0].ID)
		assert.Equal(t, "rec-2", eligible[1].ID)

		subset, err := recipients.ListEligible(ctx, core.ListEligibleParams{
			EventID:      event.ID,
			RecipientIDs: []string{"rec-2", "rec-3"},
		})
		require.NoError(t, err)
		require.Len(t, subset, 1, "the subset filter never overrides eligibility")
		assert.Equal(t, "rec-2", subset[0].ID)
	})
}

func TestEventRepoGetByID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testutil.WithTestDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewEventRepo(db)

		_, err := repo.GetByID(ctx, "evt-none")
		assert.ErrorIs(t, err, ErrEventNotFound)

		created, err := repo.Create(ctx, testutil.NewEvent().Build())
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, got.Name)

		require.NoError(t, repo.SetMetadataCID(ctx, created.ID, "bafymeta"))
		got, err = repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "bafymeta", got.MetadataCID)
	})
}
