package app

import (
	"strings"
	"time"

	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// Display strings shown to support agents. The destination account is German.
const (
	StatusActive      = "Aktiv"
	StatusCanceledPfx = "Gekündigt zum "
	StatusDeleted     = "Gelöscht"
	PlanChangePlanned = "Tarifänderung geplant"
	PlanUnknown       = "Unbekannt"
	InvoicePaid       = "Bezahlt"
	InvoiceOpen       = "Offen"
	CanceledEntryPfx  = "[Storniert] "
)

const displayDateTimeLayout = "02.01.2006 15:04"

// timestampLayouts are tried in order when parsing source timestamps. Cobot
// sends RFC 3339, but a few list endpoints use a space-separated variant and
// date-only windows occur in booking payloads.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDateTime renders a source timestamp as DD.MM.YYYY HH:MM in loc.
// Empty input stays empty; an unparseable value is returned unchanged rather
// than failing the sync over a cosmetic field.
func FormatDateTime(loc *time.Location, s string) string {
	if s == "" {
		return ""
	}
	t, ok := parseTimestamp(s)
	if !ok {
		return s
	}
	return t.In(loc).Format(displayDateTimeLayout)
}

// FormatDate is FormatDateTime truncated to the calendar date.
func FormatDate(loc *time.Location, s string) string {
	if s == "" {
		return ""
	}
	t, ok := parseTimestamp(s)
	if !ok {
		return s
	}
	return t.In(loc).Format("02.01.2006")
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SlugifyLabel turns a custom-field label into a stable attribute key
// fragment: lowercased, runs of anything outside [a-z0-9] collapsed to a
// single underscore, leading and trailing underscores stripped. Idempotent.
func SlugifyLabel(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	underscore := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			underscore = false
		default:
			if !underscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// customFieldKeyPrefix namespaces slugified Cobot labels inside the contact's
// attribute set.
const customFieldKeyPrefix = "cobot_cf_"

// CustomFieldKey is the contact attribute key for a Cobot custom-field label.
func CustomFieldKey(label string) string {
	return customFieldKeyPrefix + SlugifyLabel(label)
}

// MemberStatus derives the display status from the cancellation state.
func MemberStatus(m domain.Member) string {
	if m.CanceledTo != "" {
		return StatusCanceledPfx + m.CanceledTo
	}
	return StatusActive
}

// MemberAddress joins company and street address into one display line.
func MemberAddress(m domain.Member) string {
	if m.Address == nil {
		return ""
	}
	return strings.TrimSpace(m.Address.Company + " " + m.Address.FullAddress)
}

// PlanChangeNote flags a scheduled plan change, otherwise falls back to the
// cancellation date (empty when neither applies).
func PlanChangeNote(m domain.Member) string {
	if m.UpcomingPlan != nil {
		return PlanChangePlanned
	}
	return m.CanceledTo
}
