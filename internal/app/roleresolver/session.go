package roleresolver

import (
	"context"
	"sync"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/identity"
)

// Snapshot is the session's view of its identity's role at one instant.
// While Resolved is false the role is unknown and Role is empty; callers must not
// treat that as guest.
//
// Seq increases with every transition. Listeners may observe snapshots out of order
// and should drop any older than one already seen.
type Snapshot struct {
	Identity identity.State
	Role     authz.Role
	Resolved bool
	Seq      uint64
}

type fetch struct {
	done chan struct{}
	once sync.Once
}

func (f *fetch) finish() { f.once.Do(func() { close(f.done) }) }

// Session tracks the role of the identity signed in to one identity.Provider.
//
// A fetch starts as soon as an identity signs in. Concurrent callers share that fetch
// and all observe the same settled value. Sign-in and sign-out discard the previous
// result, including a fetch still in flight, and drop the source's cached role for the
// identities involved.
type Session struct {
	src      CachingSource
	provider identity.Provider

	mu        sync.Mutex
	cur       Snapshot
	pending   *fetch
	listeners map[int]func(Snapshot)
	order     []int
	nextID    int

	unsubscribe func()
}

func NewSession(src CachingSource, provider identity.Provider) *Session {
	s := &Session{
		src:       src,
		provider:  provider,
		listeners: make(map[int]func(Snapshot)),
	}
	s.mu.Lock()
	s.resetLocked(provider.Current())
	s.mu.Unlock()
	s.unsubscribe = provider.Subscribe(s.onIdentity)
	return s
}

// Snapshot returns the current state without blocking.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Role blocks until the current identity's role is resolved. If the identity changes
// while waiting, it waits for the new identity instead.
func (s *Session) Role(ctx context.Context) (authz.Role, error) {
	for {
		s.mu.Lock()
		if s.cur.Resolved {
			role := s.cur.Role
			s.mu.Unlock()
			return role, nil
		}
		f := s.startLocked()
		s.mu.Unlock()

		select {
		case <-f.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Refresh discards the resolved role for the current identity and fetches it again.
// Used after the identity's role is known to have changed.
func (s *Session) Refresh() {
	s.mu.Lock()
	if !s.cur.Identity.Authenticated {
		s.mu.Unlock()
		return
	}
	if s.pending != nil {
		s.pending.finish()
		s.pending = nil
	}
	s.cur.Role = ""
	s.cur.Resolved = false
	s.cur.Seq++
	s.startLocked()
	snap := s.cur
	fns := s.listenersLocked()
	s.mu.Unlock()
	notify(fns, snap)
}

// Subscribe registers fn for every state transition and returns a function that removes it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Close stops following the identity provider.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) onIdentity(st identity.State) {
	s.mu.Lock()
	if st == s.cur.Identity {
		s.mu.Unlock()
		return
	}
	s.resetLocked(st)
	snap := s.cur
	fns := s.listenersLocked()
	s.mu.Unlock()
	notify(fns, snap)
}

func (s *Session) resetLocked(st identity.State) {
	if s.pending != nil {
		s.pending.finish()
		s.pending = nil
	}
	if prev := s.cur.Identity; prev.Authenticated {
		s.src.Invalidate(prev.ID)
	}
	if st.Authenticated {
		s.src.Invalidate(st.ID)
	}
	s.cur = Snapshot{Identity: st, Seq: s.cur.Seq + 1}
	if !st.Authenticated {
		s.cur.Role = authz.LeastPrivileged
		s.cur.Resolved = true
		return
	}
	s.startLocked()
}

func (s *Session) startLocked() *fetch {
	if s.pending != nil {
		return s.pending
	}
	f := &fetch{done: make(chan struct{})}
	s.pending = f
	id := s.cur.Identity.ID
	go s.run(f, id)
	return f
}

func (s *Session) run(f *fetch, id domain.IdentityID) {
	role := s.src.Resolve(context.Background(), id)

	s.mu.Lock()
	if s.pending != f {
		// Superseded by an identity change or refresh.
		s.mu.Unlock()
		f.finish()
		return
	}
	s.pending = nil
	s.cur.Role = role
	s.cur.Resolved = true
	s.cur.Seq++
	snap := s.cur
	fns := s.listenersLocked()
	f.finish()
	s.mu.Unlock()
	notify(fns, snap)
}

func (s *Session) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.listeners[id])
	}
	return out
}

func notify(fns []func(Snapshot), snap Snapshot) {
	for _, fn := range fns {
		fn(snap)
	}
}
