package issuance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/certmint/certmint-api/internal/core"
	apperrors "github.com/certmint/certmint-api/internal/errors"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// PipelineConfig groups tuning knobs for the recipient pipeline.
type PipelineConfig struct {
	Retry RetryPolicy
	// PlaceholderBase is the locally addressable prefix used when
	// content-addressed publication fails, e.g. "local://artifacts".
	PlaceholderBase string
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Generator    core.ArtifactGenerator
	Store        core.ContentStore
	Submitter    core.LedgerSubmitter
	Certificates core.CertificateRepository
	Nonces       core.NonceFunc
	Gate         *ConcurrencyGate
	Config       PipelineConfig
	Logger       *slog.Logger
}

// Pipeline runs the five issuance stages for one recipient: generate
// artifact, publish it, submit the ledger transaction, persist the
// outcome, and hand the recipient to notification. A failure in one
// recipient's pipeline never affects another's.
type Pipeline struct {
	generator    core.ArtifactGenerator
	store        core.ContentStore
	submitter    core.LedgerSubmitter
	certificates core.CertificateRepository
	nonces       core.NonceFunc
	gate         *ConcurrencyGate
	cfg          PipelineConfig
	logger       *slog.Logger

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline validates required dependencies and constructs a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Generator == nil {
		panic("ArtifactGenerator is required")
	}
	if opts.Submitter == nil {
		panic("LedgerSubmitter is required")
	}
	if opts.Certificates == nil {
		panic("CertificateRepository is required")
	}
	if opts.Nonces == nil {
		panic("NonceFunc is required")
	}

	cfg := opts.Config
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.PlaceholderBase == "" {
		cfg.PlaceholderBase = "local://artifacts"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		generator:    opts.Generator,
		store:        opts.Store,
		submitter:    opts.Submitter,
		certificates: opts.Certificates,
		nonces:       opts.Nonces,
		gate:         opts.Gate,
		cfg:          cfg,
		logger:       logger,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes the pipeline for one recipient and always returns a result;
// it never panics outward and never returns an error to abort siblings.
func (p *Pipeline) Run(ctx context.Context, recipient *model.Recipient, event *model.Event) model.PipelineResult {
	start := time.Now()
	result := model.PipelineResult{
		RecipientID:   recipient.ID,
		RecipientName: recipient.FullName,
		Email:         recipient.Email,
		WalletAddress: recipient.WalletAddress,
		Stage:         model.StagePending,
	}

	// Stage 1: artifact generation. Recipient-fatal on failure.
	artifact, err := p.generator.Generate(ctx, core.GenerateArtifactParams{
		Recipient: recipient,
		Event:     event,
	})
	if err != nil {
		return p.fail(ctx, failParams{
			result: &result, event: event, stage: model.StageArtifactGenerated,
			err: fmt.Errorf("generate artifact: %w", err), start: start,
		})
	}
	result.Stage = model.StageArtifactGenerated

	// Stage 2: publication. Failure degrades to a placeholder reference
	// and the pipeline continues; it never aborts here.
	contentRef := p.publish(ctx, &result, recipient, event, artifact)
	result.Stage = model.StagePublished

	// Stage 3: ledger submission with retry/backoff.
	submission, attempts, err := p.submit(ctx, recipient, event, contentRef)
	result.Attempts = attempts
	if err != nil {
		result.ErrorCategory = Category(err)
		return p.fail(ctx, failParams{
			result: &result, event: event, stage: model.StageSubmitted, err: err, start: start,
		})
	}
	result.Stage = model.StageSubmitted
	result.TxHash = submission.TxHash
	result.TokenID = submission.TokenID
	result.TokenIDKnown = submission.TokenIDKnown

	// Stage 4: persistence. The ledger mutation is already committed, so a
	// failure here is reported distinctly from an issuance failure.
	if _, err := p.certificates.RecordIssued(ctx, core.RecordIssuedParams{
		EventID:     event.ID,
		RecipientID: recipient.ID,
		TokenID:     submission.TokenID,
		TxHash:      submission.TxHash,
		ContentHash: result.ContentHash,
		ArtifactURL: result.ArtifactURL,
		MetadataCID: result.MetadataCID,
		Note:        submission.Note,
	}); err != nil {
		perr := apperrors.Persistence(err, "record issued certificate")
		return p.fail(ctx, failParams{
			result: &result, event: event, stage: model.StagePersisted, err: perr, start: start,
		})
	}
	result.Stage = model.StagePersisted
	result.Success = true
	result.Duration = time.Since(start)

	p.logger.InfoContext(ctx, "recipient issued",
		"recipient_id", recipient.ID,
		"event_id", event.ID,
		"tx_hash", submission.TxHash,
		"token_id_known", submission.TokenIDKnown,
		"publish_degraded", result.PublishDegraded,
		"duration", result.Duration)

	return result
}

// publish pushes the artifact to content-addressed storage, recording a
// pending row on success. On failure it returns a locally addressable
// placeholder so issuance can proceed.
func (p *Pipeline) publish(
	ctx context.Context,
	result *model.PipelineResult,
	recipient *model.Recipient,
	event *model.Event,
	artifact *core.Artifact,
) string {
	if p.store != nil {
		published, err := p.store.Publish(ctx, artifact)
		if err == nil {
			result.ContentHash = published.CID
			result.ArtifactURL = published.URL
			p.recordPending(ctx, recipient, event, published)
			return p.publishMetadata(ctx, result, recipient, event, published)
		}
		p.logger.WarnContext(ctx, "artifact publication failed, continuing with placeholder",
			"recipient_id", recipient.ID,
			"event_id", event.ID,
			"error", err)
	}

	placeholder := fmt.Sprintf("%s/%s/%s", p.cfg.PlaceholderBase, event.ID, recipient.ID)
	result.PublishDegraded = true
	result.ArtifactURL = placeholder
	p.recordPending(ctx, recipient, event, &core.PublishedContent{URL: placeholder})
	return placeholder
}

// certificateMetadata is the pinned document the ledger transaction
// references; consumers resolve it to the rendered artifact.
type certificateMetadata struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Attributes  []metadataAttribute `json:"attributes"`
}

type metadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// publishMetadata pins the per-certificate metadata document and returns
// its URL as the content reference for the ledger transaction. When the
// pin fails the ledger references the artifact directly.
func (p *Pipeline) publishMetadata(
	ctx context.Context,
	result *model.PipelineResult,
	recipient *model.Recipient,
	event *model.Event,
	published *core.PublishedContent,
) string {
	doc := certificateMetadata{
		Name:        fmt.Sprintf("%s: %s", event.Name, recipient.FullName),
		Description: fmt.Sprintf("Certificate issued to %s for %s.", recipient.FullName, event.Name),
		Image:       published.URL,
		Attributes: []metadataAttribute{
			{TraitType: "event", Value: event.Name},
			{TraitType: "recipient", Value: recipient.FullName},
		},
	}
	if recipient.Cohort != "" {
		doc.Attributes = append(doc.Attributes, metadataAttribute{TraitType: "cohort", Value: recipient.Cohort})
	}

	name := fmt.Sprintf("%s-%s-metadata", event.ID, recipient.ID)
	meta, err := p.store.PublishJSON(ctx, name, doc)
	if err != nil {
		p.logger.WarnContext(ctx, "metadata publication failed, ledger will reference the artifact directly",
			"recipient_id", recipient.ID,
			"event_id", event.ID,
			"error", err)
		return published.URL
	}

	result.MetadataCID = meta.CID
	return meta.URL
}

// recordPending is bookkeeping ahead of submission; the write is
// idempotent and best-effort.
func (p *Pipeline) recordPending(
	ctx context.Context,
	recipient *model.Recipient,
	event *model.Event,
	published *core.PublishedContent,
) {
	if _, err := p.certificates.RecordPending(ctx, core.RecordPendingParams{
		EventID:     event.ID,
		RecipientID: recipient.ID,
		ContentHash: published.CID,
		ArtifactURL: published.URL,
	}); err != nil {
		p.logger.WarnContext(ctx, "record pending certificate failed",
			"recipient_id", recipient.ID, "error", err)
	}
}

// submit runs the retry loop around the ledger submitter. The nonce is
// allocated once per recipient, after the first successful dry-run cost
// estimate, and reused across retry attempts; a permanently failed
// submission leaves its allocated number as a gap.
func (p *Pipeline) submit(
	ctx context.Context,
	recipient *model.Recipient,
	event *model.Event,
	contentRef string,
) (*model.SubmissionResult, int, error) {
	var allocated *uint64
	stickyNonce := func(ctx context.Context) (uint64, error) {
		if allocated != nil {
			return *allocated, nil
		}
		n, err := p.nonces(ctx)
		if err != nil {
			return 0, err
		}
		allocated = &n
		return n, nil
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < p.cfg.Retry.MaxAttempts; attempt++ {
		if p.gate != nil {
			if err := p.gate.Pace(ctx); err != nil {
				return nil, attempts, fmt.Errorf("pace submission: %w", err)
			}
		}

		attempts++
		submission, err := p.submitter.Submit(ctx, core.SubmitParams{
			Recipient:  recipient,
			EventID:    event.ID,
			ContentRef: contentRef,
			NextNonce:  stickyNonce,
		})
		if err == nil && submission != nil && submission.Success {
			return submission, attempts, nil
		}
		if err == nil {
			err = fmt.Errorf("submission reported failure: %s", submission.Error)
		}
		lastErr = err

		decision := p.cfg.Retry.Decide(err, attempt)
		if !decision.Retry {
			break
		}

		p.logger.WarnContext(ctx, "transient ledger fault, backing off",
			"recipient_id", recipient.ID,
			"attempt", attempt+1,
			"delay", decision.Delay,
			"category", Category(err),
			"error", err)

		if serr := p.sleep(ctx, decision.Delay); serr != nil {
			return nil, attempts, serr
		}
	}

	category := Category(lastErr)
	wrapped := apperrors.TransientLedger(lastErr, "submit issuance transaction")
	if !Transient(lastErr) {
		wrapped = apperrors.PermanentLedger(lastErr, "submit issuance transaction")
	}
	if remedy := Remediation(category); remedy != "" {
		wrapped = wrapped.WithRemediation(remedy)
	}
	return nil, attempts, wrapped
}

type failParams struct {
	result *model.PipelineResult
	event  *model.Event
	stage  model.PipelineStage
	err    error
	start  time.Time
}

func (p *Pipeline) fail(ctx context.Context, params failParams) model.PipelineResult {
	result := params.result
	result.Success = false
	result.FailedStage = params.stage
	result.Error = params.err.Error()
	result.Duration = time.Since(params.start)

	p.logger.ErrorContext(ctx, "recipient pipeline failed",
		"recipient_id", result.RecipientID,
		"failed_stage", params.stage,
		"category", result.ErrorCategory,
		"error", params.err)

	// Generation and submission failures are recorded so the recipient
	// shows up as failed in the store; a persistence failure is not
	// re-attempted here since the store itself is what just failed.
	if params.stage == model.StageSubmitted || params.stage == model.StageArtifactGenerated {
		if _, rerr := p.certificates.RecordFailed(ctx, core.RecordFailedParams{
			EventID:     params.event.ID,
			RecipientID: result.RecipientID,
			Error:       result.Error,
		}); rerr != nil {
			p.logger.WarnContext(ctx, "record failed certificate",
				"recipient_id", result.RecipientID, "error", rerr)
		}
	}

	return *result
}
