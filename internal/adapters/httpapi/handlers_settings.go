package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/domain"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	cur, err := s.settings.Get(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsFromDomain(cur))
}

// putSettings replaces the organization settings. Secrets sent back redacted or empty
// keep their stored values.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req Settings
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	saved, err := s.settings.Put(r.Context(), actor, req.toDomain())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsFromDomain(saved))
}

// testChannel sends a fixed message through the stored email or WhatsApp settings.
func (s *Server) testChannel(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req TestChannelRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	ch := domain.Channel(chi.URLParam(r, "channel"))
	rcpt, err := s.messaging.TestChannel(r.Context(), actor, ch, req.To)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TestChannelResponse{Channel: string(ch), ProviderMessageID: rcpt.ProviderMessageID})
}

func (s *Server) whatsAppStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	conn, err := s.messaging.WhatsAppStatus(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WhatsAppStatusResponse{Instance: conn.Instance, State: conn.State, Connected: conn.Connected()})
}

func (s *Server) membershipSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	within, err := queryInt(r, "withinDays")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	sum, err := s.reports.MembershipSummary(r.Context(), actor, within)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryFromReport(sum))
}
