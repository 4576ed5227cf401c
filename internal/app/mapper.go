package app

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Mapper is the canonical transform from source snapshots to the contact's
// flat attribute set. All entry points (webhook handlers and the bulk driver)
// go through it, so a key is spelled in exactly one place.
type Mapper struct {
	ProfileURLBase string
	Loc            *time.Location
}

func NewMapper(profileURLBase string, loc *time.Location) *Mapper {
	if loc == nil {
		loc = time.Local
	}
	return &Mapper{ProfileURLBase: profileURLBase, Loc: loc}
}

// MemberAttributes is the baseline set derived from the membership snapshot
// alone.
func (m *Mapper) MemberAttributes(mem domain.Member) domain.Attributes {
	plan := PlanUnknown
	if mem.Plan != nil && mem.Plan.Name != "" {
		plan = mem.Plan.Name
	}
	return domain.Attributes{
		"cobot_id":               mem.ID,
		"cobot_status":           MemberStatus(mem),
		"cobot_plan":             plan,
		"cobot_member_since":     mem.ConfirmedAt,
		"cobot_profile_url":      fmt.Sprintf("%s/admin/memberships/%s", m.ProfileURLBase, mem.ID),
		"cobot_phone":            mem.Phone,
		"cobot_adresse":          MemberAddress(mem),
		"cobot_plan_change_date": PlanChangeNote(mem),
	}
}

// InvoiceAttributes adds the billing fields for the member's most recent
// invoice.
func (m *Mapper) InvoiceAttributes(inv domain.Invoice, mem domain.Member) domain.Attributes {
	amount := ""
	if inv.TotalAmount != "" {
		if f, err := strconv.ParseFloat(inv.TotalAmount, 64); err == nil {
			amount = fmt.Sprintf("%.2f %s", f, inv.Currency)
		}
	}
	status := InvoiceOpen
	if inv.PaidAt != "" {
		status = InvoicePaid
	}
	return domain.Attributes{
		"cobot_next_invoice_date":  FormatDateTime(m.Loc, mem.NextInvoiceAt),
		"cobot_last_invoice_date":  FormatDateTime(m.Loc, inv.CreatedAt),
		"cobot_last_invoice_amount": amount,
		"cobot_last_invoice_status": status,
	}
}

// BookingAttributes adds the latest-booking fields and prepends the booking
// to the bounded history. existingHistory is the contact's current
// cobot_booking_history value.
func (m *Mapper) BookingAttributes(b domain.Booking, existingHistory string) domain.Attributes {
	return domain.Attributes{
		"cobot_last_booking_resource": bookingResourceName(b),
		"cobot_last_booking_date":     FormatDate(m.Loc, b.From),
		"cobot_last_booking_from":     FormatDateTime(m.Loc, b.From),
		"cobot_last_booking_to":       FormatDateTime(m.Loc, b.To),
		"cobot_booking_history":       domain.PrependBookingEntry(existingHistory, m.BookingEntry(b)),
	}
}

// BookingEntry formats one history entry: "Resource (from - to)".
func (m *Mapper) BookingEntry(b domain.Booking) string {
	return fmt.Sprintf("%s (%s - %s)",
		bookingResourceName(b),
		FormatDateTime(m.Loc, b.From),
		FormatDateTime(m.Loc, b.To))
}

// CanceledBookingEntry marks a cancellation in the history.
func (m *Mapper) CanceledBookingEntry(b domain.Booking) string {
	return CanceledEntryPfx + m.BookingEntry(b)
}

// BookingHistory builds the history attribute value from scratch, newest
// first, bounded like incremental prepends.
func (m *Mapper) BookingHistory(bookings []domain.Booking) string {
	history := ""
	for i := len(bookings) - 1; i >= 0; i-- {
		history = domain.PrependBookingEntry(history, m.BookingEntry(bookings[i]))
	}
	return history
}

func bookingResourceName(b domain.Booking) string {
	if b.Resource != nil && b.Resource.Name != "" {
		return b.Resource.Name
	}
	return PlanUnknown
}

// CustomFieldAttributes slugifies field labels into namespaced attribute
// keys. Two labels collapsing onto the same key is an upstream data problem
// the source does not prevent; instead of silently letting the last value
// win, the first mapping is kept and a collision error is returned next to
// the partial map so call sites can log it loudly.
func (m *Mapper) CustomFieldAttributes(fields []domain.CustomField) (domain.Attributes, error) {
	attrs := make(domain.Attributes, len(fields))
	labels := make(map[string]string, len(fields))
	var collision error
	for _, f := range fields {
		key := CustomFieldKey(f.Label)
		if prev, ok := labels[key]; ok {
			collision = fmt.Errorf("custom field labels %q and %q both map to key %q", prev, f.Label, key)
			log.Error().
				Str("key", key).
				Str("kept_label", prev).
				Str("dropped_label", f.Label).
				Msg("custom field key collision")
			continue
		}
		labels[key] = f.Label
		attrs[key] = f.Value
	}
	return attrs, collision
}

// SortBookingsNewestFirst orders bookings descending by start time, matching
// how the latest booking and the history are picked.
func SortBookingsNewestFirst(bookings []domain.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		ti, iok := parseTimestamp(bookings[i].From)
		tj, jok := parseTimestamp(bookings[j].From)
		if iok && jok {
			return ti.After(tj)
		}
		return bookings[i].From > bookings[j].From
	})
}

// SortInvoicesNewestFirst orders invoices descending by creation time.
func SortInvoicesNewestFirst(invoices []domain.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		ti, iok := parseTimestamp(invoices[i].CreatedAt)
		tj, jok := parseTimestamp(invoices[j].CreatedAt)
		if iok && jok {
			return ti.After(tj)
		}
		return invoices[i].CreatedAt > invoices[j].CreatedAt
	})
}
