package roleresolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	memidentity "github.com/chapter-connect/membership-api/internal/adapters/memory/identity"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// gatedSource resolves roles from a map, blocking each call until released.
type gatedSource struct {
	mu    sync.Mutex
	roles map[domain.IdentityID]authz.Role
	calls map[domain.IdentityID]int
	gate  chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{
		roles: map[domain.IdentityID]authz.Role{},
		calls: map[domain.IdentityID]int{},
		gate:  make(chan struct{}),
	}
}

func (g *gatedSource) Resolve(_ context.Context, id domain.IdentityID) authz.Role {
	g.mu.Lock()
	g.calls[id]++
	gate := g.gate
	g.mu.Unlock()
	<-gate
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.roles[id]; ok {
		return r
	}
	return authz.LeastPrivileged
}

func (g *gatedSource) Invalidate(domain.IdentityID) {}

func (g *gatedSource) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	close(g.gate)
}

func (g *gatedSource) callsFor(id domain.IdentityID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

func TestSession_AnonymousIsResolvedGuest(t *testing.T) {
	p := memidentity.NewProvider()
	s := NewSession(newGatedSource(), p)
	defer s.Close()

	snap := s.Snapshot()
	assert.True(t, snap.Resolved)
	assert.Equal(t, authz.RoleGuest, snap.Role)
}

func TestSession_PendingIsDistinctFromGuest(t *testing.T) {
	src := newGatedSource()
	src.roles["sub-1"] = authz.RoleMember
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()

	p.SignIn("sub-1")
	snap := s.Snapshot()
	assert.False(t, snap.Resolved)
	assert.Empty(t, snap.Role)

	src.release()
	role, err := s.Role(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, role)
	assert.True(t, s.Snapshot().Resolved)
}

func TestSession_ConcurrentWaitersShareOneFetch(t *testing.T) {
	src := newGatedSource()
	src.roles["sub-1"] = authz.RoleAdmin
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()
	p.SignIn("sub-1")

	const n = 8
	var wg sync.WaitGroup
	roles := make([]authz.Role, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Role(context.Background())
			assert.NoError(t, err)
			roles[i] = r
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	src.release()
	wg.Wait()

	assert.Equal(t, 1, src.callsFor("sub-1"))
	for _, r := range roles {
		assert.Equal(t, authz.RoleAdmin, r)
	}
}

func TestSession_IdentityChangeDiscardsStaleFetch(t *testing.T) {
	src := newGatedSource()
	src.roles["admin-1"] = authz.RoleAdmin
	src.roles["guest-1"] = authz.RoleGuest
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()

	var mu sync.Mutex
	var seen []Snapshot
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap)
		mu.Unlock()
	})

	p.SignIn("admin-1")
	require.Eventually(t, func() bool { return src.callsFor("admin-1") == 1 }, time.Second, time.Millisecond)
	p.SignIn("guest-1")
	src.release()

	role, err := s.Role(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleGuest, role)
	assert.Equal(t, domain.IdentityID("guest-1"), s.Snapshot().Identity.ID)

	mu.Lock()
	defer mu.Unlock()
	for _, snap := range seen {
		if snap.Resolved && snap.Role == authz.RoleAdmin {
			t.Fatalf("stale admin resolution leaked: %+v", snap)
		}
	}
}

func TestSession_SignOutResolvesGuestImmediately(t *testing.T) {
	src := newGatedSource()
	src.roles["sub-1"] = authz.RoleAdmin
	src.release()
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()

	p.SignIn("sub-1")
	role, err := s.Role(context.Background())
	require.NoError(t, err)
	require.Equal(t, authz.RoleAdmin, role)

	p.SignOut()
	snap := s.Snapshot()
	assert.True(t, snap.Resolved)
	assert.Equal(t, authz.RoleGuest, snap.Role)
	assert.False(t, snap.Identity.Authenticated)
}

func TestSession_RoleHonorsContext(t *testing.T) {
	src := newGatedSource()
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()
	p.SignIn("sub-1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Role(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	src.release()
}

func TestSession_RefreshRefetches(t *testing.T) {
	src := newGatedSource()
	src.roles["sub-1"] = authz.RoleMember
	src.release()
	p := memidentity.NewProvider()
	s := NewSession(src, p)
	defer s.Close()

	p.SignIn("sub-1")
	_, err := s.Role(context.Background())
	require.NoError(t, err)

	src.mu.Lock()
	src.roles["sub-1"] = authz.RoleAdmin
	src.mu.Unlock()
	s.Refresh()

	role, err := s.Role(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, role)
	assert.Equal(t, 2, src.callsFor("sub-1"))
}

func TestSession_SignInAgainRefetchesCachedRole(t *testing.T) {
	f := &fakeProfiles{profiles: map[domain.IdentityID]domain.Profile{}}
	f.setRole("u1", authz.RoleMember)
	res, err := New(f, zaptest.NewLogger(t), Options{TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(res.Close)

	p := memidentity.NewProvider()
	s := NewSession(res, p)
	defer s.Close()

	p.SignIn("u1")
	role, err := s.Role(context.Background())
	require.NoError(t, err)
	require.Equal(t, authz.RoleMember, role)

	// Changed in the store without an event reaching the resolver.
	f.setRole("u1", authz.RoleGuest)

	p.SignOut()
	p.SignIn("u1")
	role, err = s.Role(context.Background())
	require.NoError(t, err)
	assert.Equal(t, authz.RoleGuest, role)
}
