package model

import "time"

// CertificateStatus describes the lifecycle of a persisted certificate record.
type CertificateStatus string

const (
	// CertificateStatusPending is recorded before the ledger submission for
	// a recipient has been confirmed.
	CertificateStatusPending CertificateStatus = "pending"
	// CertificateStatusIssued is recorded after the ledger confirmed the
	// issuance transaction.
	CertificateStatusIssued CertificateStatus = "issued"
	// CertificateStatusFailed is recorded when issuance for a recipient
	// failed permanently.
	CertificateStatusFailed CertificateStatus = "failed"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusPending, CertificateStatusIssued, CertificateStatusFailed:
		return true
	default:
		return false
	}
}

// CertificateRecord is the persisted outcome of issuing one certificate.
type CertificateRecord struct {
	ID          string            `json:"id"           db:"id"`
	EventID     string            `json:"event_id"     db:"event_id"`
	RecipientID string            `json:"recipient_id" db:"recipient_id"`
	Status      CertificateStatus `json:"status"       db:"status"`

	// TokenID is the ledger-assigned certificate identifier. Nil when the
	// transaction confirmed but the identifier could not be extracted from
	// the receipt logs (see SubmissionResult.TokenIDKnown).
	TokenID *uint64 `json:"token_id,omitempty" db:"token_id"`

	// ContentHash and ArtifactURL reference the published certificate
	// artifact in content-addressed storage.
	ContentHash string `json:"content_hash,omitempty" db:"content_hash"`
	ArtifactURL string `json:"artifact_url,omitempty" db:"artifact_url"`

	// MetadataCID is the content hash of the pinned metadata document the
	// ledger transaction references. Empty when metadata publication was
	// skipped or failed.
	MetadataCID string `json:"metadata_cid,omitempty" db:"metadata_cid"`

	TxHash    string `json:"tx_hash,omitempty"    db:"tx_hash"`
	Note      string `json:"note,omitempty"       db:"note"`
	LastError string `json:"last_error,omitempty" db:"last_error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
