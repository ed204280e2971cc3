package model

import "time"

// Recipient identifies one certificate target registered for an event.
// Recipients are created by the upstream registration flow; the issuance
// core treats them as read-only.
type Recipient struct {
	ID      string `json:"id"       db:"id"`
	EventID string `json:"event_id" db:"event_id"`

	// WalletAddress is the opaque ledger address the certificate is issued to.
	WalletAddress string `json:"wallet_address" db:"wallet_address"`

	FullName string `json:"full_name" db:"full_name"`
	Email    string `json:"email"     db:"email"`

	// Cohort is a free-form group label used for presentation and filtering.
	Cohort string `json:"cohort,omitempty" db:"cohort"`

	// AttendanceTokenID is the previously issued attendance-proof token.
	// Nil means the recipient never checked in and is not eligible for a
	// certificate.
	AttendanceTokenID *uint64 `json:"attendance_token_id,omitempty" db:"attendance_token_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Eligible reports whether the recipient holds an attendance proof.
// The SQL eligibility filter is authoritative; this is a convenience for
// in-memory checks and tests.
func (r *Recipient) Eligible() bool {
	return r != nil && r.AttendanceTokenID != nil
}

// Event is the certificate collection recipients belong to.
type Event struct {
	ID   string `json:"id"   db:"id"`
	Name string `json:"name" db:"name"`

	// Venue and dates feed artifact rendering and notifications.
	Venue    string    `json:"venue,omitempty" db:"venue"`
	StartsAt time.Time `json:"starts_at"       db:"starts_at"`
	EndsAt   time.Time `json:"ends_at"         db:"ends_at"`

	// MetadataCID is the content hash of the collection-level metadata
	// document, when one has been published.
	MetadataCID string `json:"metadata_cid,omitempty" db:"metadata_cid"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
