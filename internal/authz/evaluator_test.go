package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission_UnknownRoleDeniedEverywhere(t *testing.T) {
	t.Parallel()

	for _, role := range []Role{"", "owner", "ADMIN ", "superuser"} {
		for _, res := range Resources() {
			for _, act := range Actions() {
				assert.Falsef(t, HasPermission(role, res, act), "role=%q res=%s act=%s", role, res, act)
			}
		}
	}
}

func TestHasPermission_UnknownResourceOrActionDenied(t *testing.T) {
	t.Parallel()

	assert.False(t, HasPermission(RoleAdmin, Resource("payments"), ActionRead))
	assert.False(t, HasPermission(RoleAdmin, ResourceMembers, Action("approve")))
	assert.False(t, CanAccessResource(RoleAdmin, Resource("payments")))
	assert.True(t, GetResourceActions(RoleGuest, ResourceTemplates).Empty())
}

func TestCanAccessResource_MatchesActionSet(t *testing.T) {
	t.Parallel()

	for _, role := range append(Roles(), Role("nobody")) {
		for _, res := range Resources() {
			want := !GetResourceActions(role, res).Empty()
			assert.Equalf(t, want, CanAccessResource(role, res), "role=%s res=%s", role, res)
		}
	}
}

func TestAdminIsExplicitSupersetOfEveryRole(t *testing.T) {
	t.Parallel()

	admin := Grants(RoleAdmin)
	for res, set := range admin {
		for _, act := range set.Actions() {
			assert.True(t, HasPermission(RoleAdmin, res, act))
		}
	}
	for _, role := range Roles() {
		for res, set := range Grants(role) {
			assert.Truef(t, admin[res].Contains(set), "admin %s=%s does not cover %s=%s", res, admin[res], role, set)
		}
	}
	for _, res := range Resources() {
		assert.Equalf(t, CRUD, admin[res], "admin grants for %s", res)
	}
}

func TestEveryRoleHasTableEntry(t *testing.T) {
	t.Parallel()

	for _, role := range Roles() {
		require.NotEmptyf(t, Grants(role), "role %s has no grants declared", role)
		for res, set := range Grants(role) {
			assert.Truef(t, res.Valid(), "role %s grants unknown resource %q", role, res)
			assert.Falsef(t, set.Empty(), "role %s lists %s with no actions", role, res)
		}
	}
}

func TestHasPermission_Idempotent(t *testing.T) {
	t.Parallel()

	for _, role := range Roles() {
		for _, res := range Resources() {
			for _, act := range Actions() {
				first := HasPermission(role, res, act)
				second := HasPermission(role, res, act)
				assert.Equal(t, first, second)
			}
		}
	}
}

func TestGrants_ReturnsCopy(t *testing.T) {
	t.Parallel()

	g := Grants(RoleGuest)
	g[ResourceSettings] = CRUD
	assert.False(t, HasPermission(RoleGuest, ResourceSettings, ActionRead))
}

func TestScenarios(t *testing.T) {
	t.Parallel()

	cases := []struct {
		role Role
		res  Resource
		act  Action
		want bool
	}{
		{RoleMember, ResourceBoardPositions, ActionRead, true},
		{RoleMember, ResourceBoardPositions, ActionDelete, false},
		{RoleProspective, ResourceProfile, ActionUpdate, true},
		{RoleProspective, ResourceMembers, ActionRead, false},
		{RoleGuest, ResourceMembers, ActionRead, false},
		{RoleGuest, ResourceProfile, ActionRead, true},
		{RoleMember, ResourceSettings, ActionRead, false},
		{RoleAdmin, ResourceSettings, ActionUpdate, true},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, HasPermission(tc.role, tc.res, tc.act), "%s %s %s", tc.role, tc.res, tc.act)
	}
}

func TestActionSet(t *testing.T) {
	t.Parallel()

	s := SetOf(ActionRead, ActionUpdate, Action("bogus"))
	assert.Equal(t, []Action{ActionRead, ActionUpdate}, s.Actions())
	assert.Equal(t, "{read,update}", s.String())
	assert.True(t, CRUD.Contains(s))
	assert.False(t, s.Contains(CRUD))
	assert.False(t, s.Has(Action("bogus")))
}

func TestCapabilities_OmitsInaccessibleResources(t *testing.T) {
	t.Parallel()

	caps := Capabilities(RoleProspective)
	assert.Equal(t, map[Resource][]Action{
		ResourceBoardPositions: {ActionRead},
		ResourceProfile:        {ActionRead, ActionUpdate},
	}, caps)
	assert.Empty(t, Capabilities(Role("nobody")))
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, ok := ParseRole(" Member ")
	require.True(t, ok)
	assert.Equal(t, RoleMember, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}
