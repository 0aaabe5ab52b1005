package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/app/crm"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func profileParam(r *http.Request) domain.IdentityID {
	return domain.IdentityID(chi.URLParam(r, "profileID"))
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	as, err := s.crm.ListActivities(r.Context(), actor, profileParam(r), limit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": mapSlice(as, activityFromDomain)})
}

func (s *Server) logActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req LogActivityRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	a, err := s.crm.LogActivity(r.Context(), actor, profileParam(r), req.Description)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, activityFromDomain(a))
}

func (s *Server) listInteractions(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	is, err := s.crm.ListInteractions(r.Context(), actor, profileParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": mapSlice(is, interactionFromDomain)})
}

func (s *Server) addInteraction(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AddInteractionRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var occurred time.Time
	if req.OccurredAt != nil {
		occurred = *req.OccurredAt
	}
	i, err := s.crm.AddInteraction(r.Context(), actor, crm.InteractionInput{
		ProfileID:  profileParam(r),
		Channel:    domain.InteractionChannel(req.Channel),
		Summary:    req.Summary,
		OccurredAt: occurred,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, interactionFromDomain(i))
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ns, err := s.crm.ListNotes(r.Context(), actor, profileParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": mapSlice(ns, noteFromDomain)})
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AddNoteRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	n, err := s.crm.AddNote(r.Context(), actor, profileParam(r), req.Body, req.IsPrivate)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, noteFromDomain(n))
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.crm.DeleteNote(r.Context(), actor, domain.NoteID(chi.URLParam(r, "noteID"))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	ts, err := s.crm.ListTags(r.Context(), actor, profileParam(r))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": mapSlice(ts, tagFromDomain)})
}

func (s *Server) addTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AddTagRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	t, err := s.crm.AddTag(r.Context(), actor, profileParam(r), req.Name, req.Color)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tagFromDomain(t))
}

func (s *Server) removeTag(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.crm.RemoveTag(r.Context(), actor, profileParam(r), chi.URLParam(r, "tag")); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addFollowUp(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req AddFollowUpRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	f, err := s.crm.AddFollowUp(r.Context(), actor, crm.FollowUpInput{
		ProfileID:  profileParam(r),
		AssigneeID: idPtr[domain.IdentityID](req.AssigneeID),
		Title:      req.Title,
		DueAt:      req.DueAt,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, followUpFromDomain(f))
}

func (s *Server) listFollowUps(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	open, err := queryBool(r, "open")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	overdue, err := queryBool(r, "overdue")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	fs, err := s.crm.ListFollowUps(r.Context(), actor, crm.FollowUpQuery{
		ProfileID:   queryID[domain.IdentityID](r, "profileId"),
		AssigneeID:  queryID[domain.IdentityID](r, "assigneeId"),
		OpenOnly:    open,
		OverdueOnly: overdue,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"followUps": mapSlice(fs, followUpFromDomain)})
}

func (s *Server) completeFollowUp(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	f, err := s.crm.CompleteFollowUp(r.Context(), actor, domain.FollowUpID(chi.URLParam(r, "followUpID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, followUpFromDomain(f))
}
