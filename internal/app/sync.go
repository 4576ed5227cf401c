package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/observability"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Event is the inbound webhook payload. Cobot sends {url} plus an embedded
// resource snapshot on deletions; Chatwoot sends {event, contact}.
type Event struct {
	URL        string          `json:"url"`
	Membership *domain.Member  `json:"membership,omitempty"`
	Booking    *domain.Booking `json:"booking,omitempty"`
	Event      string          `json:"event,omitempty"`
	Contact    *domain.Contact `json:"contact,omitempty"`
}

// EventKind classifies an inbound event by its resource URL.
type EventKind string

const (
	KindMembership        EventKind = "membership"
	KindMembershipDeleted EventKind = "membership_deleted"
	KindInvoice           EventKind = "invoice"
	KindBooking           EventKind = "booking"
	KindBookingDeleted    EventKind = "booking_deleted"
	KindIgnored           EventKind = "ignored"
)

// Classify picks the handler path by substring match on the resource URL.
// Order matters: deletion events carry the resource embedded because it is no
// longer fetchable, so the embedded-payload checks come first.
func Classify(e Event) EventKind {
	switch {
	case strings.Contains(e.URL, "/memberships/") && e.Membership != nil:
		return KindMembershipDeleted
	case strings.Contains(e.URL, "/memberships/"):
		return KindMembership
	case strings.Contains(e.URL, "/invoices/"):
		return KindInvoice
	case strings.Contains(e.URL, "/bookings/") && e.Booking != nil:
		return KindBookingDeleted
	case strings.Contains(e.URL, "/bookings/"):
		return KindBooking
	default:
		return KindIgnored
	}
}

// DefaultReverseFields maps contact attribute keys back to the Cobot
// custom-field definition ids they came from. Only these keys flow back on a
// Chatwoot contact update.
var DefaultReverseFields = map[string]string{
	"cobot_cf_zugang_24_stunden":              "b799594101de60d2c5904a6a72fd580a",
	"cobot_cf_nachsendeadresse":               "3ac66a448db77c40f5bba11379aa5cdd",
	"cobot_cf_firmenbezeichnung_briefkasten":  "01e9f41eac032de45ee760dd197d12f7",
	"cobot_cf_fix_desk":                       "aeb42929e950a92a4754f3313e44dfba",
}

// SyncService is the single pipeline behind every entry point: resolve the
// event to a member, map attributes, merge with the contact's current set and
// upsert. Cache and journal are optional (nil disables them).
type SyncService struct {
	cobot    domain.CobotClient
	chatwoot domain.ChatwootClient
	cache    domain.Cache
	journal  domain.SyncJournal
	mapper   *Mapper

	// ReverseFields controls the Chatwoot→Cobot custom-field sync.
	ReverseFields map[string]string

	cacheTTL int // seconds
	now      func() time.Time
}

func NewSyncService(cobot domain.CobotClient, chatwoot domain.ChatwootClient, cache domain.Cache, journal domain.SyncJournal, mapper *Mapper, cacheTTL time.Duration) *SyncService {
	return &SyncService{
		cobot:         cobot,
		chatwoot:      chatwoot,
		cache:         cache,
		journal:       journal,
		mapper:        mapper,
		ReverseFields: DefaultReverseFields,
		cacheTTL:      int(cacheTTL.Seconds()),
		now:           time.Now,
	}
}

type syncResult struct {
	MembershipID string
	Email        string
	Outcome      string // created|updated|skipped
}

const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// HandleEvent routes one webhook event. Unmatched URLs are acknowledged and
// ignored. Failures surface to the caller after being journaled.
func (s *SyncService) HandleEvent(ctx context.Context, e Event) error {
	kind := Classify(e)

	var res syncResult
	var err error
	switch kind {
	case KindMembershipDeleted:
		res, err = s.handleMembershipDeleted(ctx, *e.Membership)
	case KindMembership:
		res, err = s.syncMembership(ctx, e.URL)
	case KindInvoice:
		res, err = s.syncInvoice(ctx, e.URL)
	case KindBookingDeleted:
		res, err = s.handleBookingDeleted(ctx, *e.Booking)
	case KindBooking:
		res, err = s.syncBooking(ctx, e.URL)
	default:
		log.Info().Str("url", e.URL).Msg("event ignored")
		observability.ObserveSync(string(KindIgnored), outcomeSkipped)
		return nil
	}

	if err != nil {
		s.record(ctx, string(kind), syncResult{MembershipID: res.MembershipID, Email: res.Email, Outcome: outcomeFailed}, err.Error())
		observability.ObserveSync(string(kind), outcomeFailed)
		return err
	}
	s.record(ctx, string(kind), res, "")
	observability.ObserveSync(string(kind), res.Outcome)
	return nil
}

// syncMembership handles membership created/updated: fetch the member,
// get-or-create the contact, fold in custom fields and merge-update.
func (s *SyncService) syncMembership(ctx context.Context, url string) (syncResult, error) {
	member, err := s.cobot.GetMembershipByURL(ctx, url)
	if err != nil {
		return syncResult{}, fmt.Errorf("fetch membership: %w", err)
	}

	contact, created, err := s.getOrCreateContact(ctx, member)
	if err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	attrs := s.mapper.MemberAttributes(member)
	attrs = domain.MergeAttributes(attrs, s.customFieldAttributes(ctx, member.ID))

	if err := s.updateContact(ctx, contact, contactName(member), attrs); err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	outcome := outcomeUpdated
	if created {
		outcome = outcomeCreated
	}
	log.Info().Str("membership", member.ID).Str("email", member.Email).Str("outcome", outcome).Msg("membership synced")
	return syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcome}, nil
}

// handleMembershipDeleted marks the contact Gelöscht. The member no longer
// exists upstream, so the identity comes from the embedded snapshot; every
// other attribute is preserved.
func (s *SyncService) handleMembershipDeleted(ctx context.Context, member domain.Member) (syncResult, error) {
	res := syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcomeSkipped}
	if member.Email == "" {
		log.Warn().Str("membership", member.ID).Msg("deleted membership without email, skipping")
		return res, nil
	}
	contact, err := s.findContact(ctx, member.Email)
	if err != nil {
		return res, err
	}
	if contact == nil {
		log.Info().Str("email", member.Email).Msg("no contact for deleted membership")
		return res, nil
	}
	if err := s.updateContact(ctx, contact, "", domain.Attributes{"cobot_status": StatusDeleted}); err != nil {
		return res, err
	}
	log.Info().Str("email", member.Email).Msg("contact marked deleted")
	res.Outcome = outcomeUpdated
	return res, nil
}

// syncInvoice enriches the contact with the invoice's billing fields.
func (s *SyncService) syncInvoice(ctx context.Context, url string) (syncResult, error) {
	invoice, err := s.cobot.GetInvoiceByURL(ctx, url)
	if err != nil {
		return syncResult{}, fmt.Errorf("fetch invoice: %w", err)
	}
	member, err := s.cobot.GetMembership(ctx, invoice.MembershipID)
	if err != nil {
		return syncResult{MembershipID: invoice.MembershipID}, fmt.Errorf("fetch invoice member: %w", err)
	}

	contact, created, err := s.getOrCreateContact(ctx, member)
	if err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	attrs := s.mapper.MemberAttributes(member)
	attrs = domain.MergeAttributes(attrs, s.mapper.InvoiceAttributes(invoice, member))
	attrs = domain.MergeAttributes(attrs, s.customFieldAttributes(ctx, member.ID))

	if err := s.updateContact(ctx, contact, contactName(member), attrs); err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	outcome := outcomeUpdated
	if created {
		outcome = outcomeCreated
	}
	log.Info().Str("membership", member.ID).Str("invoice", invoice.ID).Msg("invoice synced")
	return syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcome}, nil
}

// syncBooking prepends the booking to the contact's history and refreshes the
// latest-booking fields.
func (s *SyncService) syncBooking(ctx context.Context, url string) (syncResult, error) {
	booking, err := s.cobot.GetBookingByURL(ctx, url)
	if err != nil {
		return syncResult{}, fmt.Errorf("fetch booking: %w", err)
	}
	member, err := s.cobot.GetMembership(ctx, booking.OwnerID())
	if err != nil {
		return syncResult{MembershipID: booking.OwnerID()}, fmt.Errorf("fetch booking member: %w", err)
	}

	contact, created, err := s.getOrCreateContact(ctx, member)
	if err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	attrs := s.mapper.BookingAttributes(booking, contact.CustomAttributes["cobot_booking_history"])
	if err := s.updateContact(ctx, contact, "", attrs); err != nil {
		return syncResult{MembershipID: member.ID, Email: member.Email}, err
	}

	outcome := outcomeUpdated
	if created {
		outcome = outcomeCreated
	}
	log.Info().Str("membership", member.ID).Str("booking", booking.ID).Msg("booking synced")
	return syncResult{MembershipID: member.ID, Email: member.Email, Outcome: outcome}, nil
}

// handleBookingDeleted prepends a cancellation entry to the history. When the
// owning member is already gone the event is skipped, not failed: the
// deletion webhook regularly outlives its membership.
func (s *SyncService) handleBookingDeleted(ctx context.Context, booking domain.Booking) (syncResult, error) {
	res := syncResult{MembershipID: booking.OwnerID(), Outcome: outcomeSkipped}
	member, err := s.cobot.GetMembership(ctx, booking.OwnerID())
	if err != nil {
		log.Info().Err(err).Str("membership", booking.OwnerID()).Msg("member gone for canceled booking, skipping")
		return res, nil
	}
	res.Email = member.Email

	contact, err := s.findContact(ctx, member.Email)
	if err != nil {
		return res, err
	}
	if contact == nil {
		log.Info().Str("email", member.Email).Msg("no contact for canceled booking")
		return res, nil
	}

	history := domain.PrependBookingEntry(
		contact.CustomAttributes["cobot_booking_history"],
		s.mapper.CanceledBookingEntry(booking),
	)
	if err := s.updateContact(ctx, contact, "", domain.Attributes{"cobot_booking_history": history}); err != nil {
		return res, err
	}
	log.Info().Str("email", member.Email).Msg("booking cancellation recorded")
	res.Outcome = outcomeUpdated
	return res, nil
}

// HandleContactUpdated pushes the allow-listed cobot_cf_* attributes of a
// Chatwoot contact back to Cobot. Contacts without a cobot_id are not linked
// and are ignored.
func (s *SyncService) HandleContactUpdated(ctx context.Context, contact domain.Contact) error {
	cobotID := contact.CustomAttributes["cobot_id"]
	if cobotID == "" {
		log.Info().Int64("contact", contact.ID).Msg("contact not linked to a membership, ignoring")
		return nil
	}

	var fields []domain.CustomFieldValue
	for key, fieldID := range s.ReverseFields {
		if value, ok := contact.CustomAttributes[key]; ok {
			fields = append(fields, domain.CustomFieldValue{ID: fieldID, Value: value})
		}
	}
	if len(fields) == 0 {
		log.Info().Str("membership", cobotID).Msg("no custom fields to push back")
		return nil
	}

	if err := s.cobot.PutCustomFields(ctx, cobotID, fields); err != nil {
		observability.ObserveSync("contact_updated", outcomeFailed)
		return fmt.Errorf("push custom fields: %w", err)
	}
	observability.ObserveSync("contact_updated", outcomeUpdated)
	log.Info().Str("membership", cobotID).Int("fields", len(fields)).Msg("custom fields pushed to cobot")
	return nil
}

// ---- shared steps ----

// customFieldAttributes is best-effort: a failed fetch degrades to an empty
// map, a key collision keeps the first value. Both are logged, neither aborts
// the sync.
func (s *SyncService) customFieldAttributes(ctx context.Context, membershipID string) domain.Attributes {
	fields, err := s.cobot.GetCustomFields(ctx, membershipID)
	if err != nil {
		log.Warn().Err(err).Str("membership", membershipID).Msg("custom fields unavailable")
		return domain.Attributes{}
	}
	attrs, err := s.mapper.CustomFieldAttributes(fields)
	if err != nil {
		log.Error().Err(err).Str("membership", membershipID).Msg("custom field collision, first value kept")
	}
	return attrs
}

func contactCacheKey(email string) string { return "contact:" + strings.ToLower(email) }

// findContact is a cache-aside lookup of the contact snapshot by email.
func (s *SyncService) findContact(ctx context.Context, email string) (*domain.Contact, error) {
	key := contactCacheKey(email)
	if s.cache != nil {
		var c domain.Contact
		if ok, _ := s.cache.Get(ctx, key, &c); ok {
			return &c, nil
		}
	}
	contact, err := s.chatwoot.SearchContact(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("search contact: %w", err)
	}
	if contact != nil && s.cache != nil {
		_ = s.cache.Set(ctx, key, contact, s.cacheTTL)
	}
	return contact, nil
}

// getOrCreateContact creates a contact with the baseline member attributes
// when the email is unknown. Callers follow up with a full merge-update, so a
// fresh contact never stays baseline-only for long.
func (s *SyncService) getOrCreateContact(ctx context.Context, member domain.Member) (*domain.Contact, bool, error) {
	contact, err := s.findContact(ctx, member.Email)
	if err != nil {
		return nil, false, err
	}
	if contact != nil {
		return contact, false, nil
	}
	contact, err = s.chatwoot.CreateContact(ctx, domain.NewContact{
		Name:             contactName(member),
		Email:            member.Email,
		CustomAttributes: s.mapper.MemberAttributes(member),
	})
	if err != nil {
		return nil, false, fmt.Errorf("create contact: %w", err)
	}
	log.Info().Str("email", member.Email).Int64("contact", contact.ID).Msg("contact created")
	return contact, true, nil
}

// updateContact merges updates over the contact's current attribute set and
// writes the result. Every write site goes through here; the merge is what
// keeps fields set by other event paths alive.
func (s *SyncService) updateContact(ctx context.Context, contact *domain.Contact, name string, updates domain.Attributes) error {
	merged := domain.MergeAttributes(contact.CustomAttributes, updates)
	if _, err := s.chatwoot.UpdateContact(ctx, contact.ID, domain.ContactUpdate{
		Name:             name,
		CustomAttributes: merged,
	}); err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, contactCacheKey(contact.Email))
	}
	return nil
}

func (s *SyncService) record(ctx context.Context, kind string, res syncResult, detail string) {
	if s.journal == nil {
		return
	}
	rec := domain.SyncRecord{
		MembershipID: res.MembershipID,
		Email:        res.Email,
		Kind:         kind,
		Outcome:      res.Outcome,
		Detail:       detail,
		CreatedAt:    s.now(),
	}
	if err := s.journal.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("journal write failed")
	}
}

func contactName(m domain.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}
