package app_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

func testMapper() *app.Mapper {
	return app.NewMapper("https://acme.cobot.me", time.UTC)
}

func TestMemberAttributes(t *testing.T) {
	m := domain.Member{
		ID:          "mem-1",
		Email:       "ada@example.com",
		Name:        "Ada Lovelace",
		Phone:       "+49 30 123",
		Address:     &domain.Address{Company: "ACME", FullAddress: "Hauptstr. 1"},
		Plan:        &domain.Plan{Name: "Full Time"},
		ConfirmedAt: "2020-01-15T00:00:00Z",
	}
	got := testMapper().MemberAttributes(m)

	want := domain.Attributes{
		"cobot_id":               "mem-1",
		"cobot_status":           "Aktiv",
		"cobot_plan":             "Full Time",
		"cobot_member_since":     "2020-01-15T00:00:00Z",
		"cobot_profile_url":      "https://acme.cobot.me/admin/memberships/mem-1",
		"cobot_phone":            "+49 30 123",
		"cobot_adresse":          "ACME Hauptstr. 1",
		"cobot_plan_change_date": "",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %d: %v", len(want), len(got), got)
	}
}

func TestMemberAttributes_MissingPlan(t *testing.T) {
	got := testMapper().MemberAttributes(domain.Member{ID: "mem-2"})
	if got["cobot_plan"] != "Unbekannt" {
		t.Fatalf("cobot_plan = %q", got["cobot_plan"])
	}
}

func TestInvoiceAttributes(t *testing.T) {
	inv := domain.Invoice{
		ID:           "inv-1",
		MembershipID: "mem-1",
		CreatedAt:    "2024-02-15T00:00:00Z",
		TotalAmount:  "150.5",
		Currency:     "EUR",
		PaidAt:       "2024-02-20T00:00:00Z",
	}
	mem := domain.Member{NextInvoiceAt: "2024-03-01T00:00:00Z"}
	got := testMapper().InvoiceAttributes(inv, mem)

	if got["cobot_last_invoice_amount"] != "150.50 EUR" {
		t.Errorf("amount = %q", got["cobot_last_invoice_amount"])
	}
	if got["cobot_last_invoice_status"] != "Bezahlt" {
		t.Errorf("status = %q", got["cobot_last_invoice_status"])
	}
	if got["cobot_last_invoice_date"] != "15.02.2024 00:00" {
		t.Errorf("date = %q", got["cobot_last_invoice_date"])
	}
	if got["cobot_next_invoice_date"] != "01.03.2024 00:00" {
		t.Errorf("next = %q", got["cobot_next_invoice_date"])
	}
}

func TestInvoiceAttributes_Unpaid(t *testing.T) {
	got := testMapper().InvoiceAttributes(domain.Invoice{TotalAmount: "10", Currency: "EUR"}, domain.Member{})
	if got["cobot_last_invoice_status"] != "Offen" {
		t.Fatalf("status = %q", got["cobot_last_invoice_status"])
	}
}

func TestBookingAttributes_PrependsHistory(t *testing.T) {
	m := testMapper()
	existing := "Desk 1 (02.03.2024 10:00 - 02.03.2024 15:00)"
	b := domain.Booking{
		Resource: &domain.BookingResource{Name: "Desk 3"},
		From:     "2024-03-01T09:00:00Z",
		To:       "2024-03-01T17:00:00Z",
	}
	got := m.BookingAttributes(b, existing)

	if got["cobot_last_booking_resource"] != "Desk 3" {
		t.Errorf("resource = %q", got["cobot_last_booking_resource"])
	}
	if got["cobot_last_booking_date"] != "01.03.2024" {
		t.Errorf("date = %q", got["cobot_last_booking_date"])
	}
	if got["cobot_last_booking_from"] != "01.03.2024 09:00" {
		t.Errorf("from = %q", got["cobot_last_booking_from"])
	}
	if got["cobot_last_booking_to"] != "01.03.2024 17:00" {
		t.Errorf("to = %q", got["cobot_last_booking_to"])
	}
	wantHistory := "Desk 3 (01.03.2024 09:00 - 01.03.2024 17:00) | " + existing
	if got["cobot_booking_history"] != wantHistory {
		t.Errorf("history = %q, want %q", got["cobot_booking_history"], wantHistory)
	}
}

func TestBookingHistory_BoundedNewestFirst(t *testing.T) {
	m := testMapper()
	// already sorted newest first, seven entries
	bookings := []domain.Booking{
		{Resource: &domain.BookingResource{Name: "Desk 7"}, From: "2024-03-07T09:00:00Z", To: "2024-03-07T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 6"}, From: "2024-03-06T09:00:00Z", To: "2024-03-06T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 5"}, From: "2024-03-05T09:00:00Z", To: "2024-03-05T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 4"}, From: "2024-03-04T09:00:00Z", To: "2024-03-04T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 3"}, From: "2024-03-03T09:00:00Z", To: "2024-03-03T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 2"}, From: "2024-03-02T09:00:00Z", To: "2024-03-02T17:00:00Z"},
		{Resource: &domain.BookingResource{Name: "Desk 1"}, From: "2024-03-01T09:00:00Z", To: "2024-03-01T17:00:00Z"},
	}
	history := m.BookingHistory(bookings)
	entries := domain.SplitBookingHistory(history)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d: %q", len(entries), history)
	}
	if !strings.HasPrefix(entries[0], "Desk 7") {
		t.Errorf("newest first violated: %q", entries[0])
	}
	if !strings.HasPrefix(entries[4], "Desk 3") {
		t.Errorf("oldest kept entry wrong: %q", entries[4])
	}
}

func TestCanceledBookingEntry(t *testing.T) {
	m := testMapper()
	b := domain.Booking{
		Resource: &domain.BookingResource{Name: "Meeting Room"},
		From:     "2024-03-01T09:00:00Z",
		To:       "2024-03-01T10:00:00Z",
	}
	want := "[Storniert] Meeting Room (01.03.2024 09:00 - 01.03.2024 10:00)"
	if got := m.CanceledBookingEntry(b); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCustomFieldAttributes(t *testing.T) {
	attrs, err := testMapper().CustomFieldAttributes([]domain.CustomField{
		{Label: "Fix Desk", Value: "ja"},
		{Label: "Schlüssel Nr.", Value: "42"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs["cobot_cf_fix_desk"] != "ja" {
		t.Errorf("fix desk = %q", attrs["cobot_cf_fix_desk"])
	}
	if attrs["cobot_cf_schl_ssel_nr"] != "42" {
		t.Errorf("key = %v", attrs)
	}
}

func TestCustomFieldAttributes_CollisionFirstWins(t *testing.T) {
	attrs, err := testMapper().CustomFieldAttributes([]domain.CustomField{
		{Label: "Fix Desk", Value: "first"},
		{Label: "Fix-Desk", Value: "second"},
	})
	if err == nil {
		t.Fatalf("expected collision error")
	}
	if attrs["cobot_cf_fix_desk"] != "first" {
		t.Fatalf("first mapping not kept: %q", attrs["cobot_cf_fix_desk"])
	}
	if len(attrs) != 1 {
		t.Fatalf("expected 1 key, got %v", attrs)
	}
}

func TestSortBookingsNewestFirst(t *testing.T) {
	bookings := []domain.Booking{
		{ID: "old", From: "2024-01-01T09:00:00Z"},
		{ID: "new", From: "2024-03-01T09:00:00Z"},
		{ID: "mid", From: "2024-02-01T09:00:00Z"},
	}
	app.SortBookingsNewestFirst(bookings)
	if bookings[0].ID != "new" || bookings[1].ID != "mid" || bookings[2].ID != "old" {
		t.Fatalf("order: %s %s %s", bookings[0].ID, bookings[1].ID, bookings[2].ID)
	}
}

func TestSortInvoicesNewestFirst(t *testing.T) {
	invoices := []domain.Invoice{
		{ID: "old", CreatedAt: "2024-01-01T00:00:00Z"},
		{ID: "new", CreatedAt: "2024-02-01T00:00:00Z"},
	}
	app.SortInvoicesNewestFirst(invoices)
	if invoices[0].ID != "new" {
		t.Fatalf("order: %s %s", invoices[0].ID, invoices[1].ID)
	}
}
