package testutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/certmint/certmint-api/internal/domain/model"
)

// EventBuilder provides a fluent interface for building Event fixtures.
type EventBuilder struct {
	event *model.Event
}

// NewEvent creates an EventBuilder with sensible defaults.
func NewEvent() *EventBuilder {
	return &EventBuilder{
		event: &model.Event{
			ID:       "evt-test",
			Name:     "GopherConf 2026",
			Venue:    "Lisbon",
			StartsAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
			EndsAt:   time.Date(2026, 5, 3, 18, 0, 0, 0, time.UTC),
		},
	}
}

// WithID sets the event ID.
func (b *EventBuilder) WithID(id string) *EventBuilder {
	b.event.ID = id
	return b
}

// WithName sets the event name.
func (b *EventBuilder) WithName(name string) *EventBuilder {
	b.event.Name = name
	return b
}

// Build returns the constructed event.
func (b *EventBuilder) Build() *model.Event {
	e := *b.event
	return &e
}

// RecipientBuilder provides a fluent interface for building Recipient
// fixtures.
type RecipientBuilder struct {
	recipient *model.Recipient
}

// NewRecipient creates a RecipientBuilder with sensible defaults: the
// recipient holds an attendance proof and belongs to evt-test.
func NewRecipient(id string) *RecipientBuilder {
	proof := uint64(11)
	suffix := "0"
	if id != "" {
		suffix = id[len(id)-1:]
	}
	return &RecipientBuilder{
		recipient: &model.Recipient{
			ID:                id,
			EventID:           "evt-test",
			WalletAddress:     "0x" + strings.Repeat(suffix, 40),
			FullName:          fmt.Sprintf("Recipient %s", id),
			Email:             id + "@example.com",
			AttendanceTokenID: &proof,
		},
	}
}

// WithEventID sets the owning event.
func (b *RecipientBuilder) WithEventID(eventID string) *RecipientBuilder {
	b.recipient.EventID = eventID
	return b
}

// WithFullName sets the recipient name.
func (b *RecipientBuilder) WithFullName(name string) *RecipientBuilder {
	b.recipient.FullName = name
	return b
}

// WithWalletAddress sets the ledger address.
func (b *RecipientBuilder) WithWalletAddress(addr string) *RecipientBuilder {
	b.recipient.WalletAddress = addr
	return b
}

// WithoutAttendanceProof clears the attendance token, making the recipient
// ineligible.
func (b *RecipientBuilder) WithoutAttendanceProof() *RecipientBuilder {
	b.recipient.AttendanceTokenID = nil
	return b
}

// Build returns the constructed recipient.
func (b *RecipientBuilder) Build() *model.Recipient {
	r := *b.recipient
	return &r
}
