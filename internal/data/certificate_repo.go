package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/data/pgxutil"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// CertificateRepo persists per-recipient issuance outcomes. Every write is
// an upsert keyed on (event_id, recipient_id): retrying a recipient updates
// the existing row instead of duplicating it.
type CertificateRepo struct {
	DB *sql.DB
}

// NewCertificateRepo creates a new CertificateRepo.
func NewCertificateRepo(db *sql.DB) *CertificateRepo {
	return &CertificateRepo{DB: db}
}

const certificateColumns = `id, event_id, recipient_id, status, token_id, content_hash, artifact_url, metadata_cid, tx_hash, note, last_error, created_at, updated_at`

// RecordPending marks a recipient's certificate as awaiting ledger
// confirmation, capturing the published artifact reference.
func (r *CertificateRepo) RecordPending(ctx context.Context, params core.RecordPendingParams) (*model.CertificateRecord, error) {
	return r.upsert(ctx, `
		INSERT INTO certificates (id, event_id, recipient_id, status, content_hash, artifact_url)
		VALUES ($1, $2, $3, 'pending', $4, $5)
		ON CONFLICT (event_id, recipient_id) DO UPDATE SET
			status       = 'pending',
			content_hash = EXCLUDED.content_hash,
			artifact_url = EXCLUDED.artifact_url,
			last_error   = '',
			updated_at   = now()
		RETURNING `+certificateColumns,
		uuid.NewString(), params.EventID, params.RecipientID, params.ContentHash, params.ArtifactURL)
}

// RecordIssued marks a recipient's certificate as issued on the ledger.
// TokenID may be nil when the transaction confirmed but the identifier was
// not extractable from the receipt; the row then carries a NULL token and
// the degraded-extraction note.
func (r *CertificateRepo) RecordIssued(ctx context.Context, params core.RecordIssuedParams) (*model.CertificateRecord, error) {
	return r.upsert(ctx, `
		INSERT INTO certificates (id, event_id, recipient_id, status, token_id, content_hash, artifact_url, metadata_cid, tx_hash, note)
		VALUES ($1, $2, $3, 'issued', $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id, recipient_id) DO UPDATE SET
			status       = 'issued',
			token_id     = EXCLUDED.token_id,
			content_hash = EXCLUDED.content_hash,
			artifact_url = EXCLUDED.artifact_url,
			metadata_cid = EXCLUDED.metadata_cid,
			tx_hash      = EXCLUDED.tx_hash,
			note         = EXCLUDED.note,
			last_error   = '',
			updated_at   = now()
		RETURNING `+certificateColumns,
		uuid.NewString(), params.EventID, params.RecipientID, params.TokenID,
		params.ContentHash, params.ArtifactURL, params.MetadataCID, params.TxHash, params.Note)
}

// RecordFailed marks a recipient's certificate as failed with the terminal
// error. An already-issued row is never downgraded.
func (r *CertificateRepo) RecordFailed(ctx context.Context, params core.RecordFailedParams) (*model.CertificateRecord, error) {
	return r.upsert(ctx, `
		INSERT INTO certificates (id, event_id, recipient_id, status, last_error)
		VALUES ($1, $2, $3, 'failed', $4)
		ON CONFLICT (event_id, recipient_id) DO UPDATE SET
			status     = CASE WHEN certificates.status = 'issued' THEN certificates.status ELSE 'failed' END,
			last_error = EXCLUDED.last_error,
			updated_at = now()
		RETURNING `+certificateColumns,
		uuid.NewString(), params.EventID, params.RecipientID, params.Error)
}

// GetByRecipient retrieves the certificate record for one recipient of an
// event.
func (r *CertificateRepo) GetByRecipient(ctx context.Context, eventID, recipientID string) (*model.CertificateRecord, error) {
	var out model.CertificateRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+certificateColumns+` FROM certificates WHERE event_id = $1 AND recipient_id = $2`,
			eventID, recipientID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CertificateRecord])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("get certificate by recipient: %w", err)
	}
	return &out, nil
}

// ListByEvent retrieves certificate records for an event with pagination.
func (r *CertificateRepo) ListByEvent(ctx context.Context, eventID string, limit, offset int) ([]*model.CertificateRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.CertificateRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+certificateColumns+` FROM certificates
			 WHERE event_id = $1
			 ORDER BY updated_at DESC, recipient_id
			 LIMIT $2 OFFSET $3`,
			eventID, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.CertificateRecord])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list certificates by event: %w", err)
	}

	out := make([]*model.CertificateRecord, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}

func (r *CertificateRepo) upsert(ctx context.Context, query string, args ...any) (*model.CertificateRecord, error) {
	var out model.CertificateRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CertificateRecord])
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("upsert certificate: %w", err)
	}
	return &out, nil
}
