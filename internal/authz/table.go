package authz

import "strings"

// ActionSet is an immutable set of actions.
type ActionSet uint8

const (
	setCreate ActionSet = 1 << iota
	setRead
	setUpdate
	setDelete
)

// CRUD is the full action set.
const CRUD = setCreate | setRead | setUpdate | setDelete

func bit(a Action) ActionSet {
	switch a {
	case ActionCreate:
		return setCreate
	case ActionRead:
		return setRead
	case ActionUpdate:
		return setUpdate
	case ActionDelete:
		return setDelete
	default:
		return 0
	}
}

// SetOf builds an ActionSet. Unknown actions are ignored.
func SetOf(actions ...Action) ActionSet {
	var s ActionSet
	for _, a := range actions {
		s |= bit(a)
	}
	return s
}

// Has reports whether a is in the set. Unknown actions are never members.
func (s ActionSet) Has(a Action) bool {
	b := bit(a)
	return b != 0 && s&b == b
}

func (s ActionSet) Empty() bool { return s == 0 }

// Contains reports whether every action in o is also in s.
func (s ActionSet) Contains(o ActionSet) bool { return s&o == o }

// Actions lists the members in create/read/update/delete order.
func (s ActionSet) Actions() []Action {
	out := make([]Action, 0, 4)
	for _, a := range allActions {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s ActionSet) String() string {
	as := s.Actions()
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = string(a)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// grants is the permission table. Every role lists its grants explicitly; admin is
// written out in full rather than derived. Absence of a role or resource means no access.
var grants = map[Role]map[Resource]ActionSet{
	RoleAdmin: {
		ResourceMembers:        SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceMemberships:    SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceBoardPositions: SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceSettings:       SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceReports:        SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceProfile:        SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
		ResourceTemplates:      SetOf(ActionCreate, ActionRead, ActionUpdate, ActionDelete),
	},
	RoleMember: {
		ResourceMembers:        SetOf(ActionRead),
		ResourceMemberships:    SetOf(ActionRead),
		ResourceBoardPositions: SetOf(ActionRead),
		ResourceReports:        SetOf(ActionRead),
		ResourceProfile:        SetOf(ActionRead, ActionUpdate),
		ResourceTemplates:      SetOf(ActionRead),
	},
	RoleProspective: {
		ResourceBoardPositions: SetOf(ActionRead),
		ResourceProfile:        SetOf(ActionRead, ActionUpdate),
	},
	RoleGuest: {
		ResourceProfile: SetOf(ActionRead),
	},
}

// Grants returns a copy of the grant set declared for role. The table itself is never exposed.
func Grants(role Role) map[Resource]ActionSet {
	src, ok := grants[role]
	if !ok {
		return map[Resource]ActionSet{}
	}
	out := make(map[Resource]ActionSet, len(src))
	for res, set := range src {
		out[res] = set
	}
	return out
}
