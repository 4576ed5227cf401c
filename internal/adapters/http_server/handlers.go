package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/Plobli/CobotChatwootSync/internal/app"
	"github.com/Plobli/CobotChatwootSync/internal/domain"
)

type Handlers struct {
	Sync *app.SyncService
	// Journal is optional; /v1/synclog answers 404 without it.
	Journal domain.SyncJournal
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/webhook", h.cobotWebhook)
	s.mux.Post("/chatwoot-webhook", h.chatwootWebhook)
	s.mux.Get("/v1/synclog", h.syncLog)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// cobotWebhook accepts the membership platform's event pushes. The source
// retries failed deliveries itself, so the answer is a bare 200/400/500: OK,
// Missing URL, or Error.
func (h *Handlers) cobotWebhook(w http.ResponseWriter, r *http.Request) {
	var evt app.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		log.Warn().Err(err).Msg("malformed webhook payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if evt.URL == "" {
		log.Warn().Err(domain.ErrMissingURL).Msg("webhook without url")
		http.Error(w, "Missing URL", http.StatusBadRequest)
		return
	}

	if err := h.Sync.HandleEvent(r.Context(), evt); err != nil {
		log.Error().Err(err).Str("url", evt.URL).Msg("webhook handling failed")
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// chatwootWebhook accepts support-platform events. Only contact_updated is
// relevant; everything else is acknowledged and dropped.
func (h *Handlers) chatwootWebhook(w http.ResponseWriter, r *http.Request) {
	var evt app.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		log.Warn().Err(err).Msg("malformed chatwoot payload")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if evt.Event == "contact_updated" && evt.Contact != nil {
		if err := h.Sync.HandleContactUpdated(r.Context(), *evt.Contact); err != nil {
			log.Error().Err(err).Msg("contact update handling failed")
			http.Error(w, "Error", http.StatusInternalServerError)
			return
		}
	} else {
		log.Info().Str("event", evt.Event).Msg("chatwoot event ignored")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handlers) syncLog(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "sync journal is not configured")
		return
	}

	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}

	recs, err := h.Journal.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("journal read failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "journal read failed")
		return
	}

	type entry struct {
		MembershipID string `json:"membership_id"`
		Email        string `json:"email"`
		Kind         string `json:"kind"`
		Outcome      string `json:"outcome"`
		Detail       string `json:"detail,omitempty"`
		CreatedAt    string `json:"created_at"`
	}
	out := make([]entry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, entry{
			MembershipID: rec.MembershipID,
			Email:        rec.Email,
			Kind:         rec.Kind,
			Outcome:      rec.Outcome,
			Detail:       rec.Detail,
			CreatedAt:    rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Error().Err(err).Msg("failed to write synclog body")
	}
}
