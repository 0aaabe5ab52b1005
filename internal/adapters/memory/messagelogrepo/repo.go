package messagelogrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
)

// Repo is an in-memory implementation of messagelogrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.MessageLogID]domain.MessageLog
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.MessageLogID]domain.MessageLog)}
}

func (r *Repo) Create(ctx context.Context, l domain.MessageLog) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[l.ID] = cloneLog(l)
	return nil
}

func (r *Repo) Update(ctx context.Context, l domain.MessageLog) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[l.ID]; !ok {
		return messagelogrepo.ErrNotFound
	}
	r.byID[l.ID] = cloneLog(l)
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.MessageLogID) (domain.MessageLog, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return domain.MessageLog{}, messagelogrepo.ErrNotFound
	}
	return cloneLog(l), nil
}

func (r *Repo) GetByProviderMessageID(ctx context.Context, providerID string) (domain.MessageLog, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.byID {
		if l.ProviderMessageID != nil && *l.ProviderMessageID == providerID {
			return cloneLog(l), nil
		}
	}
	return domain.MessageLog{}, messagelogrepo.ErrNotFound
}

func (r *Repo) List(ctx context.Context, f messagelogrepo.Filter) ([]domain.MessageLog, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MessageLog, 0)
	for _, l := range r.byID {
		if f.RecipientID != nil && (l.RecipientID == nil || *l.RecipientID != *f.RecipientID) {
			continue
		}
		if f.TemplateID != nil && (l.TemplateID == nil || *l.TemplateID != *f.TemplateID) {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, cloneLog(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repo) DetachTemplate(ctx context.Context, id domain.TemplateID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, l := range r.byID {
		if l.TemplateID != nil && *l.TemplateID == id {
			l.TemplateID = nil
			r.byID[k] = l
		}
	}
	return nil
}

func (r *Repo) DetachRecipient(ctx context.Context, id domain.IdentityID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, l := range r.byID {
		if l.RecipientID != nil && *l.RecipientID == id {
			l.RecipientID = nil
			r.byID[k] = l
		}
	}
	return nil
}

func cloneLog(l domain.MessageLog) domain.MessageLog {
	out := l
	out.TemplateID = clonePtr(l.TemplateID)
	out.RecipientID = clonePtr(l.RecipientID)
	out.RecipientEmail = clonePtr(l.RecipientEmail)
	out.RecipientPhone = clonePtr(l.RecipientPhone)
	out.Subject = clonePtr(l.Subject)
	out.ErrorMessage = clonePtr(l.ErrorMessage)
	out.ProviderMessageID = clonePtr(l.ProviderMessageID)
	out.SentAt = clonePtr(l.SentAt)
	out.DeliveredAt = clonePtr(l.DeliveredAt)
	if l.VariablesUsed != nil {
		out.VariablesUsed = make(map[string]string, len(l.VariablesUsed))
		for k, v := range l.VariablesUsed {
			out.VariablesUsed[k] = v
		}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
