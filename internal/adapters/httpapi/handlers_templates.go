package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chapter-connect/membership-api/internal/app/templates"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	activeOnly, err := queryBool(r, "active")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	ts, err := s.templates.List(r.Context(), actor, activeOnly)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": mapSlice(ts, templateFromDomain)})
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req CreateTemplateRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	t, err := s.templates.Create(r.Context(), actor, templates.CreateInput{
		Name:      req.Name,
		Channel:   domain.Channel(req.Channel),
		Subject:   req.Subject,
		Content:   req.Content,
		Variables: req.Variables,
		IsActive:  req.IsActive,
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, templateFromDomain(t))
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	t, err := s.templates.Get(r.Context(), actor, domain.TemplateID(chi.URLParam(r, "templateID")))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templateFromDomain(t))
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req UpdateTemplateRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	t, err := s.templates.Update(r.Context(), actor, domain.TemplateID(chi.URLParam(r, "templateID")), templates.UpdateInput{
		Name:      optional(req.Name),
		Subject:   optional(req.Subject),
		Content:   optional(req.Content),
		Variables: optional(req.Variables),
		IsActive:  optional(req.IsActive),
	})
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templateFromDomain(t))
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	if err := s.templates.Delete(r.Context(), actor, domain.TemplateID(chi.URLParam(r, "templateID"))); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) previewTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req PreviewTemplateRequest
	if _, err := s.decode(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	out, err := s.templates.Preview(r.Context(), actor, domain.TemplateID(chi.URLParam(r, "templateID")), req.Variables)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	missing := out.Missing
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Subject: out.Subject, Content: out.Content, Missing: missing})
}
