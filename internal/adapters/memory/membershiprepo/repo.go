package membershiprepo

import (
	"context"
	"sort"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
)

// Repo is an in-memory implementation of membershiprepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.MembershipID]domain.Membership
	idByOwner map[domain.IdentityID]domain.MembershipID
	seq       int
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.MembershipID]domain.Membership),
		idByOwner: make(map[domain.IdentityID]domain.MembershipID),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.Membership) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return membershiprepo.ErrAlreadyExists
	}
	if _, ok := r.idByOwner[m.ProfileID]; ok {
		return membershiprepo.ErrAlreadyExists
	}
	if r.numberTakenLocked(m.MemberNumber, m.ID) {
		return membershiprepo.ErrMemberNumberTaken
	}
	r.byID[m.ID] = m
	r.idByOwner[m.ProfileID] = m.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.Membership) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		return membershiprepo.ErrNotFound
	}
	// The owning profile is immutable.
	m.ProfileID = existing.ProfileID
	if r.numberTakenLocked(m.MemberNumber, m.ID) {
		return membershiprepo.ErrMemberNumberTaken
	}
	r.byID[m.ID] = m
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.Membership{}, membershiprepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) GetByProfile(ctx context.Context, profileID domain.IdentityID) (domain.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByOwner[profileID]
	if !ok {
		return domain.Membership{}, membershiprepo.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *Repo) List(ctx context.Context, f membershiprepo.Filter) ([]domain.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Membership, 0, len(r.byID))
	for _, m := range r.byID {
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Type != "" && m.Type != f.Type {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MemberNumber != out[j].MemberNumber {
			return out[i].MemberNumber < out[j].MemberNumber
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.idByOwner[profileID]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	delete(r.idByOwner, profileID)
	return nil
}

func (r *Repo) NextMemberNumber(ctx context.Context) (string, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		r.seq++
		n := domain.FormatMemberNumber(int64(r.seq))
		if !r.numberTakenLocked(n, "") {
			return n, nil
		}
	}
}


func (r *Repo) numberTakenLocked(number string, self domain.MembershipID) bool {
	if number == "" {
		return false
	}
	for id, m := range r.byID {
		if id != self && m.MemberNumber == number {
			return true
		}
	}
	return false
}
