package membershiprepo

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

var (
	ErrNotFound = errors.New("membership not found")

	// ErrAlreadyExists indicates the profile already holds a membership.
	ErrAlreadyExists = errors.New("membership already exists for profile")

	ErrMemberNumberTaken = errors.New("member number already in use")

	// ErrProfileMissing is returned when the owning profile no longer exists.
	ErrProfileMissing = errors.New("membership profile does not exist")
)

type Filter struct {
	Status domain.MembershipStatus
	Type   domain.MembershipType
}

// Repository provides access to persisted memberships. A profile has at most one.
//
// List returns memberships ordered by member number.
type Repository interface {
	Create(ctx context.Context, m domain.Membership) error
	Update(ctx context.Context, m domain.Membership) error
	Get(ctx context.Context, id domain.MembershipID) (domain.Membership, error)
	GetByProfile(ctx context.Context, profileID domain.IdentityID) (domain.Membership, error)
	List(ctx context.Context, f Filter) ([]domain.Membership, error)
	DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error

	// NextMemberNumber allocates a fresh, never reused member number.
	NextMemberNumber(ctx context.Context) (string, error)
}
