package domain

import (
	"time"

	"github.com/chapter-connect/membership-api/internal/authz"
)

// ProfileStatus is the lifecycle state of a profile.
type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "active"
	ProfileInactive  ProfileStatus = "inactive"
	ProfileSuspended ProfileStatus = "suspended"
	ProfilePending   ProfileStatus = "pending"
)

func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfileActive, ProfileInactive, ProfileSuspended, ProfilePending:
		return true
	}
	return false
}

// Defaults applied when a profile is provisioned for a new identity.
const (
	DefaultProfileRole   = authz.RoleGuest
	DefaultProfileStatus = ProfilePending
)

// Preferences holds member communication preferences.
type Preferences struct {
	Language      string
	EmailOptIn    bool
	WhatsAppOptIn bool
}

// Profile is the per-identity record. Exactly one exists per identity.
type Profile struct {
	ID     IdentityID
	Role   authz.Role
	Status ProfileStatus

	FirstName string
	LastName  string
	Email     string
	Phone     *string

	Preferences Preferences

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	return NormalizeHumanName(p.FirstName + " " + p.LastName)
}
