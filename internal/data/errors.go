package data

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Shared sentinel errors for data-layer repositories.
var (
	ErrEventNotFound       = errors.New("event not found")
	ErrRecipientNotFound   = errors.New("recipient not found")
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrRecipientConflict signals a unique-constraint violation outside
	// the idempotent certificate upsert path.
	ErrRecipientConflict = errors.New("recipient already exists")
)

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign-key
// violation, which on certificate writes means the referenced event or
// recipient row is missing.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
