package issuance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/domain/model"
	"github.com/certmint/certmint-api/internal/mocks"
	"github.com/certmint/certmint-api/internal/testutil"
)

// These tests pin the call choreography between the pipeline and its ports:
// what is called, with which derived values, and in which order.

func TestPipelineStageOrderAndParamFlow(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	generator := mocks.NewMockArtifactGenerator(ctrl)
	store := mocks.NewMockContentStore(ctrl)
	submitter := mocks.NewMockLedgerSubmitter(ctrl)
	certificates := mocks.NewMockCertificateRepository(ctrl)

	event := testutil.NewEvent().Build()
	recipient := testutil.NewRecipient("rec-1").Build()

	artifact := &core.Artifact{Filename: "certificate.png", ContentType: "image/png", Bytes: []byte("png-bytes")}
	published := &core.PublishedContent{CID: "bafyexample", URL: "ipfs://bafyexample"}
	metadata := &core.PublishedContent{CID: "bafymetaexample", URL: "ipfs://bafymetaexample"}
	tokenID := uint64(41)

	gomock.InOrder(
		generator.EXPECT().
			Generate(gomock.Any(), core.GenerateArtifactParams{Recipient: recipient, Event: event}).
			Return(artifact, nil),
		store.EXPECT().
			Publish(gomock.Any(), artifact).
			Return(published, nil),
		certificates.EXPECT().
			RecordPending(gomock.Any(), core.RecordPendingParams{
				EventID:     event.ID,
				RecipientID: recipient.ID,
				ContentHash: published.CID,
				ArtifactURL: published.URL,
			}).
			Return(&model.CertificateRecord{}, nil),
		store.EXPECT().
			PublishJSON(gomock.Any(), event.ID+"-"+recipient.ID+"-metadata", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, doc any) (*core.PublishedContent, error) {
				meta, ok := doc.(certificateMetadata)
				require.True(t, ok)
				assert.Equal(t, published.URL, meta.Image, "metadata must reference the pinned artifact")
				return metadata, nil
			}),
		submitter.EXPECT().
			Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, params core.SubmitParams) (*model.SubmissionResult, error) {
				assert.Equal(t, event.ID, params.EventID)
				assert.Equal(t, metadata.URL, params.ContentRef, "the ledger references the metadata document")
				nonce, err := params.NextNonce(ctx)
				require.NoError(t, err)
				assert.Equal(t, uint64(7), nonce)
				return &model.SubmissionResult{
					Success:      true,
					TxHash:       "0xfeedbeef",
					TokenID:      &tokenID,
					TokenIDKnown: true,
				}, nil
			}),
		certificates.EXPECT().
			RecordIssued(gomock.Any(), core.RecordIssuedParams{
				EventID:     event.ID,
				RecipientID: recipient.ID,
				TokenID:     &tokenID,
				TxHash:      "0xfeedbeef",
				ContentHash: published.CID,
				ArtifactURL: published.URL,
				MetadataCID: metadata.CID,
			}).
			Return(&model.CertificateRecord{}, nil),
	)

	pipeline := NewPipeline(PipelineOptions{
		Generator:    generator,
		Store:        store,
		Submitter:    submitter,
		Certificates: certificates,
		Nonces:       func(context.Context) (uint64, error) { return 7, nil },
	})

	result := pipeline.Run(context.Background(), recipient, event)
	require.True(t, result.Success)
	assert.Equal(t, model.StagePersisted, result.Stage)
	assert.Equal(t, metadata.CID, result.MetadataCID)
	assert.Equal(t, 1, result.Attempts)
}

func TestPipelinePermanentFaultRecordsFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	generator := mocks.NewMockArtifactGenerator(ctrl)
	store := mocks.NewMockContentStore(ctrl)
	submitter := mocks.NewMockLedgerSubmitter(ctrl)
	certificates := mocks.NewMockCertificateRepository(ctrl)

	event := testutil.NewEvent().Build()
	recipient := testutil.NewRecipient("rec-2").Build()

	placeholder := "local://artifacts/" + event.ID + "/" + recipient.ID

	gomock.InOrder(
		generator.EXPECT().
			Generate(gomock.Any(), gomock.Any()).
			Return(&core.Artifact{Filename: "certificate.png", Bytes: []byte("x")}, nil),
		store.EXPECT().
			Publish(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("pinning provider unreachable")),
		certificates.EXPECT().
			RecordPending(gomock.Any(), core.RecordPendingParams{
				EventID:     event.ID,
				RecipientID: recipient.ID,
				ArtifactURL: placeholder,
			}).
			Return(&model.CertificateRecord{}, nil),
		submitter.EXPECT().
			Submit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.SubmitParams) (*model.SubmissionResult, error) {
				assert.Equal(t, placeholder, params.ContentRef, "degraded placeholder must reach the ledger submission")
				return nil, errors.New("invalid signature values")
			}),
		certificates.EXPECT().
			RecordFailed(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params core.RecordFailedParams) (*model.CertificateRecord, error) {
				assert.Equal(t, recipient.ID, params.RecipientID)
				assert.Contains(t, params.Error, "invalid signature values")
				return &model.CertificateRecord{}, nil
			}),
	)

	pipeline := NewPipeline(PipelineOptions{
		Generator:    generator,
		Store:        store,
		Submitter:    submitter,
		Certificates: certificates,
		Nonces:       func(context.Context) (uint64, error) { return 7, nil },
	})

	result := pipeline.Run(context.Background(), recipient, event)
	require.False(t, result.Success)
	assert.True(t, result.PublishDegraded)
	assert.Equal(t, model.StageSubmitted, result.FailedStage)
	assert.Equal(t, 1, result.Attempts, "permanent faults must not be retried")
}
