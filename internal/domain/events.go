package domain

import (
	"time"

	"github.com/chapter-connect/membership-api/internal/authz"
)

// Event is a domain fact published after a state change commits.
type Event interface {
	EventName() string
	Subject() IdentityID
}

// RoleChanged is published when an admin changes a profile's role.
type RoleChanged struct {
	ProfileID IdentityID
	From      authz.Role
	To        authz.Role
	ActorID   IdentityID
	At        time.Time
}

func (e RoleChanged) EventName() string   { return "profile.role_changed" }
func (e RoleChanged) Subject() IdentityID { return e.ProfileID }

// StatusChanged is published when an admin changes a profile's status.
type StatusChanged struct {
	ProfileID IdentityID
	From      ProfileStatus
	To        ProfileStatus
	ActorID   IdentityID
	At        time.Time
}

func (e StatusChanged) EventName() string   { return "profile.status_changed" }
func (e StatusChanged) Subject() IdentityID { return e.ProfileID }

// MembershipCreated is published when a profile is enrolled.
type MembershipCreated struct {
	ProfileID    IdentityID
	MembershipID MembershipID
	Type         MembershipType
	Status       MembershipStatus
	ActorID      IdentityID
	At           time.Time
}

func (e MembershipCreated) EventName() string   { return "membership.created" }
func (e MembershipCreated) Subject() IdentityID { return e.ProfileID }

// MembershipStatusChanged is published when a membership's status moves.
type MembershipStatusChanged struct {
	ProfileID    IdentityID
	MembershipID MembershipID
	From         MembershipStatus
	To           MembershipStatus
	ActorID      IdentityID
	At           time.Time
}

func (e MembershipStatusChanged) EventName() string   { return "membership.status_changed" }
func (e MembershipStatusChanged) Subject() IdentityID { return e.ProfileID }

// ProfileDeleted is published after an identity deletion cascade completes.
type ProfileDeleted struct {
	ProfileID IdentityID
	ActorID   IdentityID
	At        time.Time
}

func (e ProfileDeleted) EventName() string   { return "profile.deleted" }
func (e ProfileDeleted) Subject() IdentityID { return e.ProfileID }
