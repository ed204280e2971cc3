package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/certmint/certmint-api/internal/data/pgxutil"
	"github.com/certmint/certmint-api/internal/domain/model"
)

// EventRepo provides database operations for certificate events
// (collections).
type EventRepo struct {
	DB *sql.DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{DB: db}
}

const eventColumns = `id, name, venue, starts_at, ends_at, metadata_cid, created_at, updated_at`

// GetByID retrieves an event by ID.
func (r *EventRepo) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var out model.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event by id: %w", err)
	}
	return &out, nil
}

// Create inserts an event. Used by seeding and tests; the registration flow
// owns event creation in production.
func (r *EventRepo) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	if strings.TrimSpace(event.Name) == "" {
		return nil, errors.New("event name is required")
	}

	var out model.Event
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO events (id, name, venue, starts_at, ends_at, metadata_cid)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+eventColumns,
			event.ID,
			strings.TrimSpace(event.Name),
			event.Venue,
			event.StartsAt,
			event.EndsAt,
			event.MetadataCID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Event])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return &out, nil
}

// SetMetadataCID records the published collection-metadata content hash.
func (r *EventRepo) SetMetadataCID(ctx context.Context, id, cid string) error {
	var affected int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx,
			`UPDATE events SET metadata_cid = $2, updated_at = now() WHERE id = $1`, id, cid)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("set event metadata cid: %w", err)
	}
	if affected == 0 {
		return ErrEventNotFound
	}
	return nil
}
