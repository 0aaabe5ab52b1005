package boardrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
)

// Repo is an in-memory implementation of boardrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.BoardPositionID]domain.BoardPosition
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.BoardPositionID]domain.BoardPosition)}
}

func (r *Repo) Create(ctx context.Context, p domain.BoardPosition) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = clonePosition(p)
	return nil
}

func (r *Repo) Update(ctx context.Context, p domain.BoardPosition) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return boardrepo.ErrNotFound
	}
	r.byID[p.ID] = clonePosition(p)
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.BoardPositionID) (domain.BoardPosition, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return domain.BoardPosition{}, boardrepo.ErrNotFound
	}
	return clonePosition(p), nil
}

func (r *Repo) Delete(ctx context.Context, id domain.BoardPositionID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return boardrepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) ListByProfile(ctx context.Context, profileID domain.IdentityID) ([]domain.BoardPosition, error) {
	return r.list(ctx, func(p domain.BoardPosition) bool { return p.ProfileID == profileID })
}

func (r *Repo) ListActive(ctx context.Context) ([]domain.BoardPosition, error) {
	return r.list(ctx, func(p domain.BoardPosition) bool { return p.IsActive })
}

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.byID {
		if p.ProfileID == profileID {
			delete(r.byID, id)
		}
	}
	return nil
}

func (r *Repo) list(ctx context.Context, keep func(domain.BoardPosition) bool) ([]domain.BoardPosition, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.BoardPosition, 0)
	for _, p := range r.byID {
		if keep(p) {
			out = append(out, clonePosition(p))
		}
	}
	SortPositions(out)
	return out, nil
}

// SortPositions orders by start date descending (undated last), then title, then id.
func SortPositions(ps []domain.BoardPosition) {
	sort.Slice(ps, func(i, j int) bool {
		si, sj := ps[i].StartDate, ps[j].StartDate
		switch {
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		case si != nil && sj != nil && !si.Equal(*sj):
			return si.After(*sj)
		}
		ti, tj := strings.ToLower(ps[i].Title), strings.ToLower(ps[j].Title)
		if ti != tj {
			return ti < tj
		}
		return ps[i].ID < ps[j].ID
	})
}

func clonePosition(p domain.BoardPosition) domain.BoardPosition {
	out := p
	if p.StartDate != nil {
		v := *p.StartDate
		out.StartDate = &v
	}
	if p.EndDate != nil {
		v := *p.EndDate
		out.EndDate = &v
	}
	return out
}
