package domain

import "strings"

// Attributes is the flat custom-attribute store on a Chatwoot contact. It is
// sparse and cumulative: unrelated keys set by other events must survive every
// update, so writes always go through MergeAttributes.
type Attributes map[string]string

// MergeAttributes overlays updates onto current without touching keys that
// only exist in current. Neither input is modified.
func MergeAttributes(current, updates Attributes) Attributes {
	out := make(Attributes, len(current)+len(updates))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// Contact is the destination record in Chatwoot, keyed by email.
type Contact struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	CustomAttributes Attributes `json:"custom_attributes"`
}

// NewContact is the create shape for a contact.
type NewContact struct {
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	CustomAttributes Attributes `json:"custom_attributes"`
}

// ContactUpdate is a partial update. The caller is responsible for merging
// CustomAttributes with the contact's current set first; the client sends it
// verbatim.
type ContactUpdate struct {
	Name             string     `json:"name,omitempty"`
	CustomAttributes Attributes `json:"custom_attributes"`
}

// AttributeDefinition describes a Chatwoot custom-attribute definition
// (bootstrap only).
type AttributeDefinition struct {
	DisplayName string `json:"attribute_display_name"`
	Key         string `json:"attribute_key"`
	DisplayType string `json:"attribute_display_type"`
	Description string `json:"attribute_description"`
}

const (
	// HistorySeparator joins booking-history entries inside the single
	// cobot_booking_history attribute value.
	HistorySeparator = " | "

	// HistoryLimit bounds the booking history to the most recent entries.
	HistoryLimit = 5
)

// SplitBookingHistory parses the delimited history attribute into its
// entries, newest first. Empty input yields nil.
func SplitBookingHistory(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, HistorySeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// PrependBookingEntry puts entry at the front of the serialized history and
// truncates to HistoryLimit entries.
func PrependBookingEntry(history, entry string) string {
	entries := append([]string{entry}, SplitBookingHistory(history)...)
	if len(entries) > HistoryLimit {
		entries = entries[:HistoryLimit]
	}
	return strings.Join(entries, HistorySeparator)
}
