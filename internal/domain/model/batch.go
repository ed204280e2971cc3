package model

import "time"

// PipelineStage identifies how far a recipient's issuance pipeline advanced.
// Stages are strictly sequential; none may be skipped.
type PipelineStage string

const (
	StagePending           PipelineStage = "pending"
	StageArtifactGenerated PipelineStage = "artifact_generated"
	StagePublished         PipelineStage = "published"
	StageSubmitted         PipelineStage = "submitted"
	StagePersisted         PipelineStage = "persisted"
	StageNotified          PipelineStage = "notified"
)

// PipelineResult is the per-recipient outcome of one pipeline execution.
// Results are never discarded: every eligible recipient contributes exactly
// one result to the batch summary.
type PipelineResult struct {
	RecipientID   string        `json:"recipient_id"`
	RecipientName string        `json:"recipient_name"`
	Email         string        `json:"email,omitempty"`
	WalletAddress string        `json:"wallet_address"`
	Stage         PipelineStage `json:"stage"`
	Success       bool          `json:"success"`

	// TokenID is nil when issuance failed, or when the transaction
	// confirmed but no identifier could be extracted.
	TokenID      *uint64 `json:"token_id,omitempty"`
	TokenIDKnown bool    `json:"token_id_known"`

	ContentHash string `json:"content_hash,omitempty"`
	ArtifactURL string `json:"artifact_url,omitempty"`
	// MetadataCID references the pinned metadata document the ledger
	// transaction points at; empty when metadata publication was skipped
	// or failed.
	MetadataCID string `json:"metadata_cid,omitempty"`
	TxHash      string `json:"tx_hash,omitempty"`

	// Attempts counts ledger submission attempts, including the one that
	// succeeded or exhausted the budget. Zero when submission never started.
	Attempts int `json:"attempts,omitempty"`

	// PublishDegraded marks that content-addressed publication failed and
	// the pipeline continued with a locally addressable placeholder.
	PublishDegraded bool `json:"publish_degraded,omitempty"`

	// Error and FailedStage are set only when Success is false.
	Error       string        `json:"error,omitempty"`
	FailedStage PipelineStage `json:"failed_stage,omitempty"`
	// ErrorCategory carries the retry classification for presentation
	// (rate-limited, congested, reverted, network, unknown).
	ErrorCategory string `json:"error_category,omitempty"`

	Notified    bool   `json:"notified,omitempty"`
	NotifyError string `json:"notify_error,omitempty"`

	Duration time.Duration `json:"duration_ms"`
}

// BatchSummary aggregates the outcome of one issuance batch. Issuance and
// notification counts are reported separately: a recipient can be issued a
// certificate and still fail to be notified.
type BatchSummary struct {
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	StartedAt time.Time `json:"started_at"`

	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	NotifyQueued int `json:"notify_queued"`
	NotifyFailed int `json:"notify_failed"`

	// Results are sorted by recipient name for presentation; completion
	// order carries no meaning.
	Results []PipelineResult `json:"results"`

	Duration time.Duration `json:"duration_ms"`
}
