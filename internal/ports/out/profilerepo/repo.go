package profilerepo

import (
	"context"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Role   authz.Role
	Status domain.ProfileStatus
	// Query is a case-insensitive, tokenized match against first name, last name and email.
	Query string
	Limit int
}

// Repository provides access to persisted profiles.
//
// Result ordering expectations:
// - List returns profiles ordered by last name, first name (case-insensitive), then id.
type Repository interface {
	Create(ctx context.Context, p domain.Profile) error
	Update(ctx context.Context, p domain.Profile) error
	Get(ctx context.Context, id domain.IdentityID) (domain.Profile, error)
	List(ctx context.Context, f Filter) ([]domain.Profile, error)
	Delete(ctx context.Context, id domain.IdentityID) error
}

// Reader is the read-by-id slice of Repository used by role resolution.
type Reader interface {
	Get(ctx context.Context, id domain.IdentityID) (domain.Profile, error)
}
