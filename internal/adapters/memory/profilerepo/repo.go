package profilerepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

// Repo is an in-memory implementation of profilerepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID map[domain.IdentityID]domain.Profile
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.IdentityID]domain.Profile),
	}
}

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	_ = ctx
	if p.ID == "" {
		return profilerepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return profilerepo.ErrAlreadyExists
	}
	if r.emailTakenLocked(p.Email, p.ID) {
		return profilerepo.ErrEmailTaken
	}
	r.byID[p.ID] = cloneProfile(p)
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; !ok {
		return profilerepo.ErrNotFound
	}
	if r.emailTakenLocked(p.Email, p.ID) {
		return profilerepo.ErrEmailTaken
	}
	r.byID[p.ID] = cloneProfile(p)
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.IdentityID) (domain.Profile, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.Profile{}, profilerepo.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (r *Repo) List(ctx context.Context, f profilerepo.Filter) ([]domain.Profile, error) {
	_ = ctx
	tokens := tokenize(f.Query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Profile, 0, len(r.byID))
	for _, p := range r.byID {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if len(tokens) > 0 && !matchesAllTokens(p.FirstName+" "+p.LastName+" "+p.Email, tokens) {
			continue
		}
		out = append(out, cloneProfile(p))
	}
	sortProfiles(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repo) Delete(ctx context.Context, id domain.IdentityID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return profilerepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) emailTakenLocked(email string, self domain.IdentityID) bool {
	if email == "" {
		return false
	}
	for id, p := range r.byID {
		if id != self && strings.EqualFold(p.Email, email) {
			return true
		}
	}
	return false
}

func cloneProfile(p domain.Profile) domain.Profile {
	out := p
	if p.Phone != nil {
		v := *p.Phone
		out.Phone = &v
	}
	return out
}

func sortProfiles(ps []domain.Profile) {
	sort.Slice(ps, func(i, j int) bool {
		li, lj := strings.ToLower(ps[i].LastName), strings.ToLower(ps[j].LastName)
		if li != lj {
			return li < lj
		}
		fi, fj := strings.ToLower(ps[i].FirstName), strings.ToLower(ps[j].FirstName)
		if fi != fj {
			return fi < fj
		}
		return ps[i].ID < ps[j].ID
	})
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func matchesAllTokens(hay string, tokens []string) bool {
	hay = strings.ToLower(hay)
	for _, t := range tokens {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}
