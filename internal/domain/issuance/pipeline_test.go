package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmint/certmint-api/internal/core"
	apperrors "github.com/certmint/certmint-api/internal/errors"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// ---- shared stubs --------------------------------------------------------

type stubGenerator struct {
	fn func(ctx context.Context, params core.GenerateArtifactParams) (*core.Artifact, error)
}

func (s *stubGenerator) Generate(ctx context.Context, params core.GenerateArtifactParams) (*core.Artifact, error) {
	if s.fn != nil {
		return s.fn(ctx, params)
	}
	return &core.Artifact{
		Filename:    params.Recipient.ID + ".png",
		ContentType: "image/png",
		Bytes:       []byte("png"),
	}, nil
}

type stubStore struct {
	mu        sync.Mutex
	publishes int
	jsonPins  int
	fn        func(ctx context.Context, artifact *core.Artifact) (*core.PublishedContent, error)
	jsonFn    func(ctx context.Context, name string, doc any) (*core.PublishedContent, error)
}

func (s *stubStore) Publish(ctx context.Context, artifact *core.Artifact) (*core.PublishedContent, error) {
	s.mu.Lock()
	s.publishes++
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(ctx, artifact)
	}
	cid := "bafy" + artifact.Filename
	return &core.PublishedContent{CID: cid, URL: "ipfs://" + cid}, nil
}

func (s *stubStore) PublishJSON(ctx context.Context, name string, doc any) (*core.PublishedContent, error) {
	s.mu.Lock()
	s.jsonPins++
	s.mu.Unlock()
	if s.jsonFn != nil {
		return s.jsonFn(ctx, name, doc)
	}
	return &core.PublishedContent{CID: "bafymeta-" + name, URL: "ipfs://bafymeta-" + name}, nil
}

func (s *stubStore) jsonPinCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jsonPins
}

type stubSubmitter struct {
	mu       sync.Mutex
	attempts map[string]int
	fn       func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error)
}

func (s *stubSubmitter) Submit(ctx context.Context, params core.SubmitParams) (*model.SubmissionResult, error) {
	s.mu.Lock()
	if s.attempts == nil {
		s.attempts = make(map[string]int)
	}
	attempt := s.attempts[params.Recipient.ID]
	s.attempts[params.Recipient.ID]++
	s.mu.Unlock()

	if s.fn != nil {
		return s.fn(ctx, params, attempt)
	}
	return successfulSubmission(ctx, params)
}

// successfulSubmission mimics the real submitter: the nonce is requested
// only once the dry-run estimate has passed.
func successfulSubmission(ctx context.Context, params core.SubmitParams) (*model.SubmissionResult, error) {
	nonce, err := params.NextNonce(ctx)
	if err != nil {
		return nil, err
	}
	token := nonce + 1
	return &model.SubmissionResult{
		Success:      true,
		TxHash:       fmt.Sprintf("0xtx%d", nonce),
		TokenID:      &token,
		TokenIDKnown: true,
		GasUsed:      21000,
	}, nil
}

type certKey struct{ event, recipient string }

type memCertRepo struct {
	mu        sync.Mutex
	records   map[certKey]*model.CertificateRecord
	issuedErr error
}

func newMemCertRepo() *memCertRepo {
	return &memCertRepo{records: make(map[certKey]*model.CertificateRecord)}
}

func (m *memCertRepo) upsert(key certKey, mutate func(rec *model.CertificateRecord)) *model.CertificateRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = &model.CertificateRecord{
			ID:          fmt.Sprintf("cert-%s-%s", key.event, key.recipient),
			EventID:     key.event,
			RecipientID: key.recipient,
			CreatedAt:   time.Now(),
		}
		m.records[key] = rec
	}
	mutate(rec)
	rec.UpdatedAt = time.Now()
	return rec
}

func (m *memCertRepo) RecordPending(ctx context.Context, params core.RecordPendingParams) (*model.CertificateRecord, error) {
	rec := m.upsert(certKey{params.EventID, params.RecipientID}, func(r *model.CertificateRecord) {
		r.Status = model.CertificateStatusPending
		r.ContentHash = params.ContentHash
		r.ArtifactURL = params.ArtifactURL
	})
	return rec, nil
}

func (m *memCertRepo) RecordIssued(ctx context.Context, params core.RecordIssuedParams) (*model.CertificateRecord, error) {
	if m.issuedErr != nil {
		return nil, m.issuedErr
	}
	rec := m.upsert(certKey{params.EventID, params.RecipientID}, func(r *model.CertificateRecord) {
		r.Status = model.CertificateStatusIssued
		r.TokenID = params.TokenID
		r.TxHash = params.TxHash
		r.MetadataCID = params.MetadataCID
		r.Note = params.Note
	})
	return rec, nil
}

func (m *memCertRepo) RecordFailed(ctx context.Context, params core.RecordFailedParams) (*model.CertificateRecord, error) {
	rec := m.upsert(certKey{params.EventID, params.RecipientID}, func(r *model.CertificateRecord) {
		r.Status = model.CertificateStatusFailed
		r.LastError = params.Error
	})
	return rec, nil
}

func (m *memCertRepo) GetByRecipient(ctx context.Context, eventID, recipientID string) (*model.CertificateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[certKey{eventID, recipientID}]
	if !ok {
		return nil, apperrors.NotFound("certificate not found")
	}
	return rec, nil
}

func (m *memCertRepo) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.CertificateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.CertificateRecord, 0, len(m.records))
	for key, rec := range m.records {
		if key.event == eventID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memCertRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// ---- fixtures ------------------------------------------------------------

func testEvent() *model.Event {
	return &model.Event{ID: "evt-1", Name: "GopherConf 2026"}
}

func testRecipient(id, name string) *model.Recipient {
	proof := uint64(11)
	return &model.Recipient{
		ID:                id,
		EventID:           "evt-1",
		WalletAddress:     "0x" + strings.Repeat(id[len(id)-1:], 40),
		FullName:          name,
		Email:             id + "@example.com",
		AttendanceTokenID: &proof,
	}
}

type pipelineFixture struct {
	generator *stubGenerator
	store     *stubStore
	submitter *stubSubmitter
	certs     *memCertRepo
	alloc     *NonceAllocator
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		generator: &stubGenerator{},
		store:     &stubStore{},
		submitter: &stubSubmitter{},
		certs:     newMemCertRepo(),
	}
	f.alloc = NewNonceAllocator(func(ctx context.Context) (uint64, error) { return 100, nil })
	f.pipeline = NewPipeline(PipelineOptions{
		Generator:    f.generator,
		Store:        f.store,
		Submitter:    f.submitter,
		Certificates: f.certs,
		Nonces:       f.alloc.Next,
		Config: PipelineConfig{
			Retry: RetryPolicy{BaseDelay: time.Millisecond, MaxAttempts: 3},
		},
	})
	f.pipeline.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return f
}

// ---- tests ---------------------------------------------------------------

func TestPipelineSuccess(t *testing.T) {
	f := newPipelineFixture(t)
	recipient := testRecipient("rec-1", "Ada")

	result := f.pipeline.Run(context.Background(), recipient, testEvent())

	require.True(t, result.Success)
	assert.Equal(t, model.StagePersisted, result.Stage)
	assert.True(t, result.TokenIDKnown)
	require.NotNil(t, result.TokenID)
	assert.Equal(t, uint64(101), *result.TokenID)
	assert.False(t, result.PublishDegraded)
	assert.Contains(t, result.ArtifactURL, "ipfs://")
	assert.Equal(t, "bafymeta-evt-1-rec-1-metadata", result.MetadataCID)

	rec, err := f.certs.GetByRecipient(context.Background(), "evt-1", "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusIssued, rec.Status)
	assert.Equal(t, result.MetadataCID, rec.MetadataCID)
}

func TestPipelinePublicationFailureDegrades(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.fn = func(ctx context.Context, artifact *core.Artifact) (*core.PublishedContent, error) {
		return nil, errors.New("pinning service unavailable")
	}
	recipient := testRecipient("rec-2", "Grace")

	result := f.pipeline.Run(context.Background(), recipient, testEvent())

	require.True(t, result.Success, "publication failure must not abort issuance")
	assert.True(t, result.PublishDegraded)
	assert.Contains(t, result.ArtifactURL, "local://artifacts/evt-1/rec-2")
	assert.Empty(t, result.ContentHash)
	assert.Zero(t, f.store.jsonPinCount(), "no metadata is pinned for a placeholder artifact")
}

func TestPipelineMetadataPinFailureFallsBackToArtifact(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.jsonFn = func(ctx context.Context, name string, doc any) (*core.PublishedContent, error) {
		return nil, errors.New("pin quota exceeded")
	}
	var contentRef string
	f.submitter.fn = func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error) {
		contentRef = params.ContentRef
		return successfulSubmission(ctx, params)
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-9", "Rob"), testEvent())

	require.True(t, result.Success, "a failed metadata pin must not abort issuance")
	assert.Empty(t, result.MetadataCID)
	assert.Equal(t, result.ArtifactURL, contentRef, "ledger falls back to referencing the artifact")
}

func TestPipelineGenerationFailureIsRecipientFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.generator.fn = func(ctx context.Context, params core.GenerateArtifactParams) (*core.Artifact, error) {
		return nil, errors.New("renderer returned 500")
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-3", "Linus"), testEvent())

	require.False(t, result.Success)
	assert.Equal(t, model.StageArtifactGenerated, result.FailedStage)
	assert.Equal(t, uint64(0), f.alloc.Allocated(), "no nonce consumed before submission")
	assert.Equal(t, 0, f.store.publishes)
}

func TestPipelineTransientRetryThenSuccess(t *testing.T) {
	f := newPipelineFixture(t)
	f.submitter.fn = func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error) {
		if attempt < 2 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return successfulSubmission(ctx, params)
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-4", "Margaret"), testEvent())

	require.True(t, result.Success)
	assert.Equal(t, 3, f.submitter.attempts["rec-4"])
}

func TestPipelinePermanentFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.submitter.fn = func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error) {
		// Permanent failures before the estimate never consume a nonce.
		return nil, errors.New("invalid signature")
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-5", "Barbara"), testEvent())

	require.False(t, result.Success)
	assert.Equal(t, model.StageSubmitted, result.FailedStage)
	assert.Equal(t, CategoryUnknown, result.ErrorCategory)
	assert.Equal(t, 1, f.submitter.attempts["rec-5"], "permanent errors are not retried")
	assert.Equal(t, uint64(0), f.alloc.Allocated())

	rec, err := f.certs.GetByRecipient(context.Background(), "evt-1", "rec-5")
	require.NoError(t, err)
	assert.Equal(t, model.CertificateStatusFailed, rec.Status)
}

func TestPipelineNonceStickyAcrossRetries(t *testing.T) {
	f := newPipelineFixture(t)
	var nonces []uint64
	f.submitter.fn = func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error) {
		n, err := params.NextNonce(ctx)
		if err != nil {
			return nil, err
		}
		nonces = append(nonces, n)
		if attempt < 2 {
			return nil, errors.New("request timed out")
		}
		return successfulSubmission(ctx, params)
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-6", "Dennis"), testEvent())

	require.True(t, result.Success)
	require.Len(t, nonces, 3)
	assert.Equal(t, []uint64{100, 100, 100}, nonces, "retries reuse the allocated nonce")
	assert.Equal(t, uint64(1), f.alloc.Allocated(), "one allocation per recipient")
}

func TestPipelinePersistenceFailureIsDistinct(t *testing.T) {
	f := newPipelineFixture(t)
	f.certs.issuedErr = errors.New("pq: connection reset")

	result := f.pipeline.Run(context.Background(), testRecipient("rec-7", "Ken"), testEvent())

	require.False(t, result.Success)
	assert.Equal(t, model.StagePersisted, result.FailedStage,
		"issued-but-not-recorded must be distinguishable from not-issued")
	assert.NotEmpty(t, result.TxHash, "ledger mutation already committed")
}

func TestPipelineUnknownTokenIDReportedNotFabricated(t *testing.T) {
	f := newPipelineFixture(t)
	f.submitter.fn = func(ctx context.Context, params core.SubmitParams, attempt int) (*model.SubmissionResult, error) {
		if _, err := params.NextNonce(ctx); err != nil {
			return nil, err
		}
		return &model.SubmissionResult{
			Success:      true,
			TxHash:       "0xconfirmed",
			TokenIDKnown: false,
			Note:         "confirmed but token id could not be extracted from receipt logs",
		}, nil
	}

	result := f.pipeline.Run(context.Background(), testRecipient("rec-8", "Donald"), testEvent())

	require.True(t, result.Success)
	assert.False(t, result.TokenIDKnown)
	assert.Nil(t, result.TokenID, "no placeholder identifier is invented")

	rec, err := f.certs.GetByRecipient(context.Background(), "evt-1", "rec-8")
	require.NoError(t, err)
	assert.Nil(t, rec.TokenID)
	assert.Contains(t, rec.Note, "could not be extracted")
}
