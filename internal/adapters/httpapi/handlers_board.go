package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/app/boardpositions"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func (s *Server) listCurrentBoard(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ps, err := s.board.ListCurrent(r.Context(), actor)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": mapSlice(ps, boardPositionFromDomain)})
}

func (s *Server) listProfileBoardPositions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ps, err := s.board.ListByProfile(r.Context(), actor, domain.IdentityID(chi.URLParam(r, "profileID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": mapSlice(ps, boardPositionFromDomain)})
}

func (s *Server) createBoardPosition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req CreateBoardPositionRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.board.Create(r.Context(), actor, boardpositions.CreateInput{
		ProfileID: domain.IdentityID(req.ProfileID),
		Title:     req.Title,
		Level:     domain.PositionLevel(req.Level),
		IsActive:  req.IsActive,
		StartDate: timePtr(req.StartDate),
		EndDate:   timePtr(req.EndDate),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, boardPositionFromDomain(p))
}

func (s *Server) getBoardPosition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	p, err := s.board.Get(r.Context(), actor, domain.BoardPositionID(chi.URLParam(r, "positionID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boardPositionFromDomain(p))
}

func (s *Server) updateBoardPosition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateBoardPositionRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := s.board.Update(r.Context(), actor, domain.BoardPositionID(chi.URLParam(r, "positionID")), boardpositions.UpdateInput{
		Title:     optional(req.Title),
		Level:     optionalAs(req.Level, func(v string) domain.PositionLevel { return domain.PositionLevel(v) }),
		IsActive:  optional(req.IsActive),
		StartDate: optionalDate(req.StartDate),
		EndDate:   optionalDate(req.EndDate),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boardPositionFromDomain(p))
}

func (s *Server) deleteBoardPosition(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.board.Delete(r.Context(), actor, domain.BoardPositionID(chi.URLParam(r, "positionID"))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
