package domain

import (
	"context"
	"time"
)

// CobotClient reads membership, invoice and booking snapshots from the
// membership API and pushes custom-field values back.
type CobotClient interface {
	GetMembershipByURL(ctx context.Context, url string) (Member, error)
	GetMembership(ctx context.Context, id string) (Member, error)
	GetInvoiceByURL(ctx context.Context, url string) (Invoice, error)
	GetBookingByURL(ctx context.Context, url string) (Booking, error)
	GetCustomFields(ctx context.Context, membershipID string) ([]CustomField, error)
	ListBookings(ctx context.Context, membershipID string, from, to time.Time) ([]Booking, error)
	ListMemberships(ctx context.Context, perPage int) ([]Member, error)
	ListInvoices(ctx context.Context, perPage int) ([]Invoice, error)
	PutCustomFields(ctx context.Context, membershipID string, fields []CustomFieldValue) error
}

// ChatwootClient manages contacts in the support platform. SearchContact
// returns nil when no contact matches; duplicate-email contacts are a known
// upstream possibility, first match wins.
type ChatwootClient interface {
	SearchContact(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, c NewContact) (*Contact, error)
	UpdateContact(ctx context.Context, id int64, u ContactUpdate) (*Contact, error)
	ListAttributeDefinitions(ctx context.Context) ([]AttributeDefinition, error)
	CreateAttributeDefinition(ctx context.Context, d AttributeDefinition) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// SyncRecord is one journal row describing the outcome of a handled event or
// bulk item.
type SyncRecord struct {
	ID           int64
	MembershipID string
	Email        string
	Kind         string // membership|invoice|booking|membership_deleted|booking_deleted|bulk
	Outcome      string // created|updated|skipped|failed
	Detail       string
	CreatedAt    time.Time
}

// SyncJournal records sync outcomes. Writes are best-effort at every call
// site: a journal failure never fails the sync itself.
type SyncJournal interface {
	Record(ctx context.Context, rec SyncRecord) error
	Recent(ctx context.Context, limit int) ([]SyncRecord, error)
}
