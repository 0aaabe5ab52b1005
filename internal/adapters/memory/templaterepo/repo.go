package templaterepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

// Repo is an in-memory implementation of templaterepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.TemplateID]domain.Template
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.TemplateID]domain.Template)}
}

func (r *Repo) Create(ctx context.Context, t domain.Template) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(t) {
		return templaterepo.ErrNameTaken
	}
	r.byID[t.ID] = cloneTemplate(t)
	return nil
}

func (r *Repo) Update(ctx context.Context, t domain.Template) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; !ok {
		return templaterepo.ErrNotFound
	}
	if r.nameTakenLocked(t) {
		return templaterepo.ErrNameTaken
	}
	r.byID[t.ID] = cloneTemplate(t)
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.TemplateID) (domain.Template, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return domain.Template{}, templaterepo.ErrNotFound
	}
	return cloneTemplate(t), nil
}

func (r *Repo) List(ctx context.Context, activeOnly bool) ([]domain.Template, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Template, 0, len(r.byID))
	for _, t := range r.byID {
		if activeOnly && !t.IsActive {
			continue
		}
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.TemplateID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return templaterepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) nameTakenLocked(t domain.Template) bool {
	for id, other := range r.byID {
		if id != t.ID && other.Channel == t.Channel && strings.EqualFold(other.Name, t.Name) {
			return true
		}
	}
	return false
}

func cloneTemplate(t domain.Template) domain.Template {
	out := t
	if t.Subject != nil {
		v := *t.Subject
		out.Subject = &v
	}
	if t.CreatedBy != nil {
		v := *t.CreatedBy
		out.CreatedBy = &v
	}
	out.Variables = append([]string(nil), t.Variables...)
	return out
}
