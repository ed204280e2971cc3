package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/certmint/certmint-api/internal/core"
	"github.com/certmint/certmint-api/internal/data/pgxutil"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// RecipientRepo provides database operations for certificate recipients.
type RecipientRepo struct {
	DB *sql.DB
}

// NewRecipientRepo creates a new RecipientRepo.
func NewRecipientRepo(db *sql.DB) *RecipientRepo {
	return &RecipientRepo{DB: db}
}

const recipientColumns = `id, event_id, wallet_address, full_name, email, cohort, attendance_token_id, created_at`

// Eligibility is decided here, server-side: the recipient must hold an
// attendance proof and must not already have an issued certificate for the
// event. Callers trust this filter.
const listEligibleQuery = `
	SELECT ` + recipientColumns + `
	FROM recipients r
	WHERE r.event_id = $1
	  AND r.attendance_token_id IS NOT NULL
	  AND NOT EXISTS (
		SELECT 1 FROM certificates c
		WHERE c.event_id = r.event_id
		  AND c.recipient_id = r.id
		  AND c.status = 'issued'
	  )
	  AND (cardinality($2::text[]) = 0 OR r.id = ANY($2::text[]))
	ORDER BY r.full_name, r.id`

// ListEligible returns the recipients still owed a certificate for the
// event, optionally narrowed to an explicit subset.
func (r *RecipientRepo) ListEligible(ctx context.Context, params core.ListEligibleParams) ([]*model.Recipient, error) {
	filter := params.RecipientIDs
	if filter == nil {
		filter = []string{}
	}

	var rowsOut []model.Recipient
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, listEligibleQuery, params.EventID, filter)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Recipient])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list eligible recipients: %w", err)
	}

	out := make([]*model.Recipient, len(rowsOut))
	for i := range rowsOut {
		out[i] = &rowsOut[i]
	}
	return out, nil
}

// GetByID retrieves a recipient by ID.
func (r *RecipientRepo) GetByID(ctx context.Context, id string) (*model.Recipient, error) {
	var out model.Recipient
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+recipientColumns+` FROM recipients WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Recipient])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("get recipient by id: %w", err)
	}
	return &out, nil
}

// Create inserts a recipient. Used by seeding and tests.
func (r *RecipientRepo) Create(ctx context.Context, recipient *model.Recipient) (*model.Recipient, error) {
	var out model.Recipient
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO recipients (id, event_id, wallet_address, full_name, email, cohort, attendance_token_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING `+recipientColumns,
			recipient.ID,
			recipient.EventID,
			recipient.WalletAddress,
			recipient.FullName,
			recipient.Email,
			recipient.Cohort,
			recipient.AttendanceTokenID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Recipient])
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecipientConflict
		}
		return nil, fmt.Errorf("create recipient: %w", err)
	}
	return &out, nil
}
