package settingsrepo

import (
	"context"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
)

// Repo holds the settings singleton in memory.
type Repo struct {
	mu  sync.RWMutex
	cur *domain.OrganizationSettings
}

func NewRepo() *Repo { return &Repo{} }

func (r *Repo) Get(ctx context.Context) (domain.OrganizationSettings, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cur == nil {
		return domain.OrganizationSettings{}, settingsrepo.ErrNotConfigured
	}
	return cloneSettings(*r.cur), nil
}

func (r *Repo) Put(ctx context.Context, s domain.OrganizationSettings) error {
	_ = ctx
	c := cloneSettings(s)
	r.mu.Lock()
	r.cur = &c
	r.mu.Unlock()
	return nil
}

func cloneSettings(s domain.OrganizationSettings) domain.OrganizationSettings {
	out := s
	if s.WhatsApp.WebhookURL != nil {
		v := *s.WhatsApp.WebhookURL
		out.WhatsApp.WebhookURL = &v
	}
	if s.UpdatedBy != nil {
		v := *s.UpdatedBy
		out.UpdatedBy = &v
	}
	return out
}
