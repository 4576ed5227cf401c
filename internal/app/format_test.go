package app_test

import (
	"testing"
	"time"

	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

func TestFormatDateTime(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"rfc3339", "2024-03-01T09:00:00Z", "01.03.2024 09:00"},
		{"space variant", "2024-03-01 09:00:00 +0000", "01.03.2024 09:00"},
		{"date only", "2024-03-01", "01.03.2024 00:00"},
		{"empty", "", ""},
		{"unparseable passthrough", "next tuesday", "next tuesday"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.FormatDateTime(time.UTC, tc.in); got != tc.want {
				t.Fatalf("FormatDateTime(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormatDateTime_Location(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// CET is UTC+1 in January.
	got := app.FormatDateTime(berlin, "2024-01-15T09:00:00Z")
	if got != "15.01.2024 10:00" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if got := app.FormatDate(time.UTC, "2024-03-01T09:00:00Z"); got != "01.03.2024" {
		t.Fatalf("got %q", got)
	}
	if got := app.FormatDate(time.UTC, ""); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSlugifyLabel(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Fix Desk", "fix_desk"},
		{"Zugang: 24/7", "zugang_24_7"},
		{"  Mehrere   Leerzeichen  ", "mehrere_leerzeichen"},
		{"already_slugged", "already_slugged"},
		{"UPPER", "upper"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := app.SlugifyLabel(tc.in); got != tc.want {
			t.Fatalf("SlugifyLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
		// slugifying a slug must not change it
		if again := app.SlugifyLabel(tc.want); again != tc.want {
			t.Fatalf("not idempotent: SlugifyLabel(%q) = %q", tc.want, again)
		}
	}
}

func TestCustomFieldKey(t *testing.T) {
	if got := app.CustomFieldKey("Fix Desk"); got != "cobot_cf_fix_desk" {
		t.Fatalf("got %q", got)
	}
}

func TestMemberStatus(t *testing.T) {
	if got := app.MemberStatus(domain.Member{}); got != "Aktiv" {
		t.Fatalf("got %q", got)
	}
	if got := app.MemberStatus(domain.Member{CanceledTo: "2024-01-01"}); got != "Gekündigt zum 2024-01-01" {
		t.Fatalf("got %q", got)
	}
}

func TestMemberAddress(t *testing.T) {
	if got := app.MemberAddress(domain.Member{}); got != "" {
		t.Fatalf("got %q", got)
	}
	m := domain.Member{Address: &domain.Address{Company: "ACME", FullAddress: "Hauptstr. 1, Berlin"}}
	if got := app.MemberAddress(m); got != "ACME Hauptstr. 1, Berlin" {
		t.Fatalf("got %q", got)
	}
	m = domain.Member{Address: &domain.Address{FullAddress: "Hauptstr. 1"}}
	if got := app.MemberAddress(m); got != "Hauptstr. 1" {
		t.Fatalf("got %q", got)
	}
}

func TestPlanChangeNote(t *testing.T) {
	if got := app.PlanChangeNote(domain.Member{UpcomingPlan: &domain.Plan{Name: "Flex"}}); got != "Tarifänderung geplant" {
		t.Fatalf("got %q", got)
	}
	if got := app.PlanChangeNote(domain.Member{CanceledTo: "2024-06-30"}); got != "2024-06-30" {
		t.Fatalf("got %q", got)
	}
	if got := app.PlanChangeNote(domain.Member{}); got != "" {
		t.Fatalf("got %q", got)
	}
}
