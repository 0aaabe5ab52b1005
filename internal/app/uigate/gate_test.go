package uigate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memidentity "github.com/chapter-connect/membership-api/internal/adapters/memory/identity"
	"github.com/chapter-connect/membership-api/internal/app/roleresolver"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

type heldSource struct {
	mu    sync.Mutex
	roles map[domain.IdentityID]authz.Role
	hold  chan struct{}
}

func (h *heldSource) Resolve(_ context.Context, id domain.IdentityID) authz.Role {
	h.mu.Lock()
	hold := h.hold
	h.mu.Unlock()
	if hold != nil {
		<-hold
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.roles[id]; ok {
		return r
	}
	return authz.LeastPrivileged
}

func (h *heldSource) Invalidate(domain.IdentityID) {}

func (h *heldSource) setRole(id domain.IdentityID, r authz.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roles[id] = r
}

func setup(t *testing.T, req Requirement) (*Gate, *memidentity.Provider, *heldSource, *roleresolver.Session) {
	t.Helper()
	src := &heldSource{roles: map[domain.IdentityID]authz.Role{}, hold: make(chan struct{})}
	p := memidentity.NewProvider()
	sess := roleresolver.NewSession(src, p)
	g := New(sess, req)
	t.Cleanup(func() {
		g.Close()
		sess.Close()
	})
	return g, p, src, sess
}

func waitState(t *testing.T, g *Gate) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := g.Wait(ctx)
	require.NoError(t, err)
	return st
}

func TestGate_LoadingUntilResolved(t *testing.T) {
	g, p, src, _ := setup(t, Requirement{Resource: authz.ResourceSettings})
	src.setRole("admin-1", authz.RoleAdmin)

	p.SignIn("admin-1")
	assert.Equal(t, StateLoading, g.State())
	assert.Empty(t, g.Role())

	close(src.hold)
	assert.Equal(t, StateAuthorized, waitState(t, g))
	assert.Equal(t, authz.RoleAdmin, g.Role())
}

func TestGate_UnauthorizedIsDistinctFromLoading(t *testing.T) {
	g, p, src, _ := setup(t, Requirement{Resource: authz.ResourceMembers, Action: authz.ActionRead})
	src.setRole("p-1", authz.RoleProspective)
	p.SignIn("p-1")
	close(src.hold)

	assert.Equal(t, StateUnauthorized, waitState(t, g))
}

func TestGate_AnonymousResolvesImmediately(t *testing.T) {
	g, _, _, _ := setup(t, Requirement{Resource: authz.ResourceProfile, Action: authz.ActionRead})
	assert.Equal(t, StateAuthorized, g.State())

	g2, _, _, _ := setup(t, Requirement{Resource: authz.ResourceReports})
	assert.Equal(t, StateUnauthorized, g2.State())
}

func TestGate_IdentityChangeReturnsToLoading(t *testing.T) {
	g, p, src, _ := setup(t, Requirement{Resource: authz.ResourceReports})
	src.setRole("m-1", authz.RoleMember)
	close(src.hold)

	p.SignIn("m-1")
	require.Equal(t, StateAuthorized, waitState(t, g))

	src.mu.Lock()
	src.hold = make(chan struct{})
	src.mu.Unlock()
	p.SignIn("g-1")
	assert.Equal(t, StateLoading, g.State())

	src.mu.Lock()
	close(src.hold)
	src.mu.Unlock()
	assert.Equal(t, StateUnauthorized, waitState(t, g))
}

func TestGate_RefreshDoesNotFlashLoading(t *testing.T) {
	g, p, src, sess := setup(t, Requirement{Resource: authz.ResourceTemplates, Action: authz.ActionCreate})
	src.setRole("m-1", authz.RoleMember)
	close(src.hold)
	p.SignIn("m-1")
	require.Equal(t, StateUnauthorized, waitState(t, g))

	src.setRole("m-1", authz.RoleAdmin)
	sess.Refresh()
	assert.NotEqual(t, StateLoading, g.State())

	_, err := sess.Role(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return g.State() == StateAuthorized }, time.Second, time.Millisecond)
}

func TestRequirement_Allows(t *testing.T) {
	assert.True(t, Requirement{Resource: authz.ResourceBoardPositions}.Allows(authz.RoleProspective))
	assert.False(t, Requirement{Resource: authz.ResourceBoardPositions, Action: authz.ActionDelete}.Allows(authz.RoleMember))
	assert.False(t, Requirement{Resource: authz.ResourceMembers}.Allows(authz.Role("root")))
}
