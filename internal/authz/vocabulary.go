// Package authz holds the role/resource/action vocabulary, the permission table and the
// evaluator shared by storage-boundary enforcement and UI gating.
package authz

import "strings"

// Role is the closed set of identity classifications.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleMember      Role = "member"
	RoleProspective Role = "prospective"
	RoleGuest       Role = "guest"
)

// LeastPrivileged is the role every failed or absent resolution falls back to.
const LeastPrivileged = RoleGuest

// Resource names a category of protected data.
type Resource string

const (
	ResourceMembers        Resource = "members"
	ResourceMemberships    Resource = "memberships"
	ResourceBoardPositions Resource = "board_positions"
	ResourceSettings       Resource = "settings"
	ResourceReports        Resource = "reports"
	ResourceProfile        Resource = "profile"
	ResourceTemplates      Resource = "templates"
)

// Action is one of create/read/update/delete.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

var (
	allRoles     = []Role{RoleAdmin, RoleMember, RoleProspective, RoleGuest}
	allResources = []Resource{
		ResourceMembers,
		ResourceMemberships,
		ResourceBoardPositions,
		ResourceSettings,
		ResourceReports,
		ResourceProfile,
		ResourceTemplates,
	}
	allActions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
)

// Roles returns every known role, most privileged first.
func Roles() []Role { return append([]Role(nil), allRoles...) }

// Resources returns every known resource.
func Resources() []Resource { return append([]Resource(nil), allResources...) }

// Actions returns every known action.
func Actions() []Action { return append([]Action(nil), allActions...) }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, k := range allRoles {
		if k == r {
			return true
		}
	}
	return false
}

func (r Resource) Valid() bool {
	for _, k := range allResources {
		if k == r {
			return true
		}
	}
	return false
}

func (a Action) Valid() bool {
	for _, k := range allActions {
		if k == a {
			return true
		}
	}
	return false
}

// ParseRole maps a stored role string onto the closed vocabulary.
// Unknown values are reported with ok=false so callers can fail closed.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}
