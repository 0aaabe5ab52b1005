package profiles

import (
	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// ProvisionInput carries what the identity provider knows about a new identity.
type ProvisionInput struct {
	Email     string
	FirstName string
	LastName  string
}

type UpdateInput struct {
	FirstName     patch.Optional[string] // cannot be null
	LastName      patch.Optional[string] // cannot be null
	Email         patch.Optional[string] // cannot be null
	Phone         patch.Optional[string] // may be null
	Language      patch.Optional[string] // may be null (resets to default)
	EmailOptIn    patch.Optional[bool]
	WhatsAppOptIn patch.Optional[bool]

	// Role and Status require an admin actor, even on the actor's own profile.
	Role   patch.Optional[authz.Role]
	Status patch.Optional[domain.ProfileStatus]
}

type ListInput struct {
	Role   string
	Status string
	Query  string
	Limit  int
}
