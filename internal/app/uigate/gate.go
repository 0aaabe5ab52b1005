// Package uigate drives advisory access gating for front-end surfaces.
//
// A Gate never protects data. It tells a client whether to render a guarded view,
// an access-denied view, or a loading placeholder.
package uigate

import (
	"context"
	"sync"

	"github.com/chapter-connect/membership-api/internal/app/roleresolver"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/ports/out/identity"
)

type State int

const (
	StateLoading State = iota
	StateAuthorized
	StateUnauthorized
)

func (s State) String() string {
	switch s {
	case StateAuthorized:
		return "ready-authorized"
	case StateUnauthorized:
		return "ready-unauthorized"
	default:
		return "loading"
	}
}

// Requirement is what a guarded view needs. An empty Action means any action on Resource.
type Requirement struct {
	Resource authz.Resource
	Action   authz.Action
}

// Allows evaluates the requirement for role.
func (r Requirement) Allows(role authz.Role) bool {
	if r.Action == "" {
		return authz.CanAccessResource(role, r.Resource)
	}
	return authz.HasPermission(role, r.Resource, r.Action)
}

// Gate follows a roleresolver.Session.
//
// It starts in StateLoading and leaves it exactly once per identity, when that
// identity's role resolves. It returns to StateLoading only when the identity
// changes; a role refresh for the same identity keeps the last decision until the
// new role settles.
type Gate struct {
	req Requirement

	mu       sync.Mutex
	state    State
	identity identity.State
	role     authz.Role
	lastSeq  uint64
	changed  chan struct{}

	unsubscribe func()
}

func New(sess *roleresolver.Session, req Requirement) *Gate {
	g := &Gate{req: req, changed: make(chan struct{})}
	g.unsubscribe = sess.Subscribe(g.apply)
	g.apply(sess.Snapshot())
	return g
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Role is the role the current decision was made with; empty while loading.
func (g *Gate) Role() authz.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.role
}

// Wait blocks until the gate leaves StateLoading.
func (g *Gate) Wait(ctx context.Context) (State, error) {
	for {
		g.mu.Lock()
		st, ch := g.state, g.changed
		g.mu.Unlock()
		if st != StateLoading {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return StateLoading, ctx.Err()
		}
	}
}

func (g *Gate) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}

func (g *Gate) apply(snap roleresolver.Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if snap.Seq != 0 && snap.Seq <= g.lastSeq {
		return
	}
	g.lastSeq = snap.Seq

	next := g.state
	switch {
	case snap.Identity != g.identity:
		g.identity = snap.Identity
		g.role = ""
		next = StateLoading
		if snap.Resolved {
			g.role = snap.Role
			next = g.decide(snap.Role)
		}
	case snap.Resolved:
		g.role = snap.Role
		next = g.decide(snap.Role)
	}
	if next != g.state {
		g.state = next
		close(g.changed)
		g.changed = make(chan struct{})
	}
}

func (g *Gate) decide(role authz.Role) State {
	if g.req.Allows(role) {
		return StateAuthorized
	}
	return StateUnauthorized
}
