package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/app/profiles"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// getMyAccess reports the caller's resolved role and what it may do. The front end uses
// it for gating only; every operation is still checked server-side.
func (s *Server) getMyAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	role := s.guard.Role(r.Context(), actor)
	writeJSON(w, http.StatusOK, AccessResponse{
		Identity:     string(actor),
		Role:         role,
		Capabilities: authz.Capabilities(role),
	})
}

func (s *Server) getMyProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	p, err := s.profiles.GetMine(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}

func (s *Server) updateMyProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.profiles.UpdateMine(r.Context(), actor, updateProfileInput(req))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	q := r.URL.Query()
	ps, err := s.profiles.List(r.Context(), actor, profiles.ListInput{
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Query:  q.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": mapSlice(ps, profileFromDomain)})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	p, err := s.profiles.Get(r.Context(), actor, domain.IdentityID(chi.URLParam(r, "profileID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.profiles.Update(r.Context(), actor, domain.IdentityID(chi.URLParam(r, "profileID")), updateProfileInput(req))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileFromDomain(p))
}

// deleteProfile removes an identity's data: profile, membership, board positions and CRM
// rows. Message logs are kept with the recipient detached.
func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.profiles.Delete(r.Context(), actor, domain.IdentityID(chi.URLParam(r, "profileID"))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if s.roles != nil {
		s.roles.Invalidate(actor)
	}
	w.WriteHeader(http.StatusNoContent)
}

func updateProfileInput(req UpdateProfileRequest) profiles.UpdateInput {
	return profiles.UpdateInput{
		FirstName:     optional(req.FirstName),
		LastName:      optional(req.LastName),
		Email:         optional(req.Email),
		Phone:         optional(req.Phone),
		Language:      optional(req.Language),
		EmailOptIn:    optional(req.EmailOptIn),
		WhatsAppOptIn: optional(req.WhatsAppOptIn),
		Role:          optionalAs(req.Role, func(v string) authz.Role { return authz.Role(v) }),
		Status:        optionalAs(req.Status, func(v string) domain.ProfileStatus { return domain.ProfileStatus(v) }),
	}
}
