package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/app/memberships"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func (s *Server) getMyMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	m, err := s.memberships.GetMine(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) getProfileMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	m, err := s.memberships.GetByProfile(r.Context(), actor, domain.IdentityID(chi.URLParam(r, "profileID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) listMemberships(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ms, err := s.memberships.List(r.Context(), actor, memberships.ListInput{
		Status: r.URL.Query().Get("status"),
		Type:   r.URL.Query().Get("type"),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberships": mapSlice(ms, membershipFromDomain)})
}

func (s *Server) enrollMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req EnrollMembershipRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.idempotent(w, r, actor, "POST /memberships", req, func() (int, any, error) {
		m, err := s.memberships.Enroll(r.Context(), actor, memberships.EnrollInput{
			ProfileID:  domain.IdentityID(req.ProfileID),
			Type:       domain.MembershipType(req.Type),
			Cadence:    domain.PaymentCadence(req.Cadence),
			FeeMinor:   req.FeeMinor,
			Currency:   req.Currency,
			Status:     domain.MembershipStatus(req.Status),
			StartDate:  req.StartDate.Time,
			ExpiryDate: timePtr(req.ExpiryDate),
		})
		if err != nil {
			return 0, nil, err
		}
		return http.StatusCreated, membershipFromDomain(m), nil
	})
}

func (s *Server) getMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	m, err := s.memberships.Get(r.Context(), actor, domain.MembershipID(chi.URLParam(r, "membershipID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) updateMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateMembershipRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	in := memberships.UpdateInput{
		Type:       optionalAs(req.Type, func(v string) domain.MembershipType { return domain.MembershipType(v) }),
		Cadence:    optionalAs(req.Cadence, func(v string) domain.PaymentCadence { return domain.PaymentCadence(v) }),
		FeeMinor:   optional(req.FeeMinor),
		Currency:   optionalAs(req.Currency, strings.TrimSpace),
		Status:     optionalAs(req.Status, func(v string) domain.MembershipStatus { return domain.MembershipStatus(v) }),
		StartDate:  optionalDate(req.StartDate),
		ExpiryDate: optionalDate(req.ExpiryDate),
	}
	m, err := s.memberships.Update(r.Context(), actor, domain.MembershipID(chi.URLParam(r, "membershipID")), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

// renewMembership records a billing event: the membership is extended by one period and
// set active.
func (s *Server) renewMembership(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	m, err := s.memberships.Renew(r.Context(), actor, domain.MembershipID(chi.URLParam(r, "membershipID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, membershipFromDomain(m))
}

func (s *Server) expireMemberships(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	n, err := s.memberships.ExpireDue(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExpireResponse{Expired: n})
}
