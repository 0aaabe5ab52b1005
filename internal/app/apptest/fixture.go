// Package apptest wires in-memory collaborators for app service tests.
package apptest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	memclock "github.com/chapter-connect/membership-api/internal/adapters/memory/clock"
	memprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/memory/profilerepo"
	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/roleresolver"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// Recorder is an events.Publisher that records events and forwards them to handlers
// synchronously.
type Recorder struct {
	mu       sync.Mutex
	events   []domain.Event
	handlers []func(context.Context, domain.Event)
}

func (r *Recorder) On(fn func(context.Context, domain.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

func (r *Recorder) Publish(ctx context.Context, evs ...domain.Event) {
	r.mu.Lock()
	r.events = append(r.events, evs...)
	hs := append([]func(context.Context, domain.Event){}, r.handlers...)
	r.mu.Unlock()
	for _, ev := range evs {
		for _, h := range hs {
			h(ctx, ev)
		}
	}
}

func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Fixture is the shared authorization stack: profiles, a caching role resolver kept
// fresh through events, and the storage guard.
type Fixture struct {
	Profiles *memprofilerepo.Repo
	Resolver *roleresolver.Resolver
	Guard    *access.Guard
	Events   *Recorder
	Clock    *memclock.ManualClock
}

func New(t *testing.T) *Fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	profiles := memprofilerepo.NewRepo()
	res, err := roleresolver.New(profiles, log, roleresolver.Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("roleresolver.New: %v", err)
	}
	t.Cleanup(res.Close)

	rec := &Recorder{}
	rec.On(res.HandleEvent)
	return &Fixture{
		Profiles: profiles,
		Resolver: res,
		Guard:    access.NewGuard(res, log),
		Events:   rec,
		Clock:    memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
}

// Seed stores a profile with the given role and returns its id.
func (f *Fixture) Seed(t *testing.T, role authz.Role, first, last string) domain.IdentityID {
	t.Helper()
	id := domain.IdentityID(uuid.NewString())
	now := f.Clock.Now()
	p := domain.Profile{
		ID:          id,
		Role:        role,
		Status:      domain.ProfileActive,
		FirstName:   first,
		LastName:    last,
		Email:       string(id) + "@example.com",
		Preferences: domain.Preferences{Language: "en", EmailOptIn: true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.Profiles.Create(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return id
}
