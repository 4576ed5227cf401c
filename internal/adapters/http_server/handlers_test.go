package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Plobli/CobotChatwootSync/internal/adapters/chatwoot"
	"github.com/Plobli/CobotChatwootSync/internal/adapters/cobot"
	httpserver "github.com/Plobli/CobotChatwootSync/internal/adapters/http_server"
	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

// fakeUpstreams wires httptest stand-ins for both remote APIs behind the real
// clients, so the webhook path is exercised end to end.
type fakeUpstreams struct {
	cobotSrv    *httptest.Server
	chatwootSrv *httptest.Server

	contactUpdates []domain.ContactUpdate
}

func newFakeUpstreams(t *testing.T) *fakeUpstreams {
	t.Helper()
	f := &fakeUpstreams{}

	f.cobotSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/memberships/m-1":
			_ = json.NewEncoder(w).Encode(domain.Member{
				ID:    "m-1",
				Email: "ada@example.com",
				Name:  "Ada Lovelace",
				Plan:  &domain.Plan{Name: "Full Time"},
			})
		case strings.HasSuffix(r.URL.Path, "/custom_fields"):
			_, _ = w.Write([]byte(`{"fields":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.cobotSrv.Close)

	f.chatwootSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/contacts/search"):
			_, _ = w.Write([]byte(`{"payload":[{"id":7,"email":"ada@example.com","custom_attributes":{"custom_note":"vip"}}]}`))
		case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/contacts/"):
			var u domain.ContactUpdate
			_ = json.NewDecoder(r.Body).Decode(&u)
			f.contactUpdates = append(f.contactUpdates, u)
			_, _ = w.Write([]byte(`{"id":7,"email":"ada@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.chatwootSrv.Close)

	return f
}

type memJournal struct{ records []domain.SyncRecord }

func (j *memJournal) Record(_ context.Context, rec domain.SyncRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func (j *memJournal) Recent(_ context.Context, limit int) ([]domain.SyncRecord, error) {
	if limit > len(j.records) {
		limit = len(j.records)
	}
	return j.records[:limit], nil
}

func newTestRig(t *testing.T, journal domain.SyncJournal) (*fakeUpstreams, http.Handler) {
	t.Helper()
	up := newFakeUpstreams(t)

	cc, err := cobot.New(up.cobotSrv.URL, "token", 100, cobot.WithRetryBase(time.Millisecond))
	if err != nil {
		t.Fatalf("cobot.New: %v", err)
	}
	cw, err := chatwoot.New(up.chatwootSrv.URL, "1", "token", 100)
	if err != nil {
		t.Fatalf("chatwoot.New: %v", err)
	}

	mapper := app.NewMapper(up.cobotSrv.URL, time.UTC)
	svc := app.NewSyncService(cc, cw, nil, journal, mapper, time.Minute)

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Sync: svc, Journal: journal})
	return up, srv.Mux()
}

func TestWebhook_MembershipEvent(t *testing.T) {
	up, mux := newTestRig(t, nil)

	body := strings.NewReader(`{"url":"` + up.cobotSrv.URL + `/api/memberships/m-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if len(up.contactUpdates) != 1 {
		t.Fatalf("expected 1 contact update, got %d", len(up.contactUpdates))
	}
	attrs := up.contactUpdates[0].CustomAttributes
	if attrs["cobot_status"] != "Aktiv" || attrs["cobot_plan"] != "Full Time" {
		t.Errorf("attrs = %v", attrs)
	}
	if attrs["custom_note"] != "vip" {
		t.Errorf("existing attribute lost: %v", attrs)
	}
}

func TestWebhook_MissingURL(t *testing.T) {
	_, mux := newTestRig(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Missing URL") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestWebhook_MalformedBody(t *testing.T) {
	_, mux := newTestRig(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhook_UpstreamFailure(t *testing.T) {
	up, mux := newTestRig(t, nil)

	// membership the fake upstream does not know
	body := strings.NewReader(`{"url":"` + up.cobotSrv.URL + `/api/memberships/m-gone"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestChatwootWebhook_OtherEventsIgnored(t *testing.T) {
	up, mux := newTestRig(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chatwoot-webhook",
		strings.NewReader(`{"event":"conversation_created"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(up.contactUpdates) != 0 {
		t.Fatalf("unexpected writes")
	}
}

func TestHealthz(t *testing.T) {
	_, mux := newTestRig(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}

func TestSyncLog(t *testing.T) {
	journal := &memJournal{records: []domain.SyncRecord{
		{MembershipID: "m-1", Email: "ada@example.com", Kind: "membership", Outcome: "updated", CreatedAt: time.Now()},
	}}
	_, mux := newTestRig(t, journal)

	req := httptest.NewRequest(http.MethodGet, "/v1/synclog?limit=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	var entries []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0]["kind"] != "membership" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestSyncLog_NoJournal(t *testing.T) {
	_, mux := newTestRig(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/synclog", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestSyncLog_InvalidLimit(t *testing.T) {
	_, mux := newTestRig(t, &memJournal{})

	req := httptest.NewRequest(http.MethodGet, "/v1/synclog?limit=9999", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
