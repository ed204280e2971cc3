// Package core defines the port interfaces of the issuance system.
// Services and the domain pipeline depend on these contracts, never on the
// concrete data-layer or adapter implementations (hexagonal architecture).
package core

import (
	"context"
	"time"

	"github.com/certmint/certmint-api/internal/domain/model"
)

// ListEligibleParams narrows the eligible recipient query. RecipientIDs is
// optional; when set, only those recipients are considered.
type ListEligibleParams struct {
	EventID      string
	RecipientIDs []string
}

// RecipientRepository reads certificate targets. Eligibility (attendance
// proof held, certificate not yet issued) is filtered server-side; the core
// trusts this filter.
type RecipientRepository interface {
	ListEligible(ctx context.Context, params ListEligibleParams) ([]*model.Recipient, error)
	GetByID(ctx context.Context, id string) (*model.Recipient, error)
}

// EventRepository reads collection metadata.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// RecordPendingParams groups parameters for CertificateRepository.RecordPending.
type RecordPendingParams struct {
	EventID     string
	RecipientID string
	ContentHash string
	ArtifactURL string
}

// RecordIssuedParams groups parameters for CertificateRepository.RecordIssued.
type RecordIssuedParams struct {
	EventID     string
	RecipientID string
	// TokenID is nil when the transaction confirmed but the identifier
	// could not be extracted from the receipt.
	TokenID     *uint64
	TxHash      string
	ContentHash string
	ArtifactURL string
	// MetadataCID is the content hash of the pinned metadata document the
	// ledger transaction references; empty when metadata publication was
	// skipped or failed.
	MetadataCID string
	Note        string
}

// RecordFailedParams groups parameters for CertificateRepository.RecordFailed.
type RecordFailedParams struct {
	EventID     string
	RecipientID string
	Error       string
}

// CertificateRepository persists per-recipient issuance outcomes. Writes
// are idempotent per (event, recipient): re-recording an outcome for the
// same recipient updates the existing row instead of duplicating it.
type CertificateRepository interface {
	RecordPending(ctx context.Context, params RecordPendingParams) (*model.CertificateRecord, error)
	RecordIssued(ctx context.Context, params RecordIssuedParams) (*model.CertificateRecord, error)
	RecordFailed(ctx context.Context, params RecordFailedParams) (*model.CertificateRecord, error)
	GetByRecipient(ctx context.Context, eventID, recipientID string) (*model.CertificateRecord, error)
	ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.CertificateRecord, error)
}

// CacheRepository defines cache operations used for batch dedupe locks.
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// Artifact is a rendered certificate file for one recipient.
type Artifact struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// GenerateArtifactParams groups inputs for artifact generation.
type GenerateArtifactParams struct {
	Recipient *model.Recipient
	Event     *model.Event
}

// ArtifactGenerator renders the certificate artifact for one recipient.
// Rendering is an external collaborator; a failure here is fatal for that
// recipient only.
type ArtifactGenerator interface {
	Generate(ctx context.Context, params GenerateArtifactParams) (*Artifact, error)
}

// PublishedContent references data published to content-addressed storage.
type PublishedContent struct {
	CID string
	URL string
}

// ContentStore publishes artifacts and metadata documents to
// content-addressed storage. Publication failure degrades issuance (the
// pipeline falls back to a placeholder reference), it never aborts it.
type ContentStore interface {
	Publish(ctx context.Context, artifact *Artifact) (*PublishedContent, error)
	PublishJSON(ctx context.Context, name string, doc any) (*PublishedContent, error)
}

// NonceFunc hands out the next transaction sequence number for the signing
// identity. Implementations must serialize allocation.
type NonceFunc func(ctx context.Context) (uint64, error)

// SubmitParams groups inputs for one ledger submission.
type SubmitParams struct {
	Recipient *model.Recipient
	EventID   string
	// ContentRef is the content reference recorded on the ledger: the
	// pinned metadata document URL, the artifact URL when the metadata
	// pin failed, or a degraded local placeholder.
	ContentRef string
	// NextNonce is invoked once, after the dry-run cost estimate succeeds.
	// Retried attempts at the caller level reuse the allocated value.
	NextNonce NonceFunc
}

// LedgerSubmitter builds, signs, submits, and confirms one issuance
// transaction, extracting the assigned token identifier from the receipt.
type LedgerSubmitter interface {
	Submit(ctx context.Context, params SubmitParams) (*model.SubmissionResult, error)
}

// NotificationEntry is one queued recipient notification.
type NotificationEntry struct {
	RecipientID  string  `json:"recipient_id"`
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	ArtifactURL  string  `json:"artifact_url"`
	TokenID      *uint64 `json:"token_id,omitempty"`
	TxHash       string  `json:"tx_hash,omitempty"`
	EventName    string  `json:"event_name"`
	IssuerOrigin string  `json:"issuer_origin"`
}

// NotificationOutcome reports the enqueue result for one recipient.
type NotificationOutcome struct {
	RecipientID string
	Queued      bool
	Error       string
}

// EnqueueBatchParams groups one batch notification dispatch.
type EnqueueBatchParams struct {
	Entries      []NotificationEntry
	EventName    string
	IssuerOrigin string
}

// NotificationQueue accepts one batched notification dispatch per issuance
// batch. Delivery and deduplication are the queue consumer's concern.
type NotificationQueue interface {
	EnqueueBatch(ctx context.Context, params EnqueueBatchParams) ([]NotificationOutcome, error)
}
