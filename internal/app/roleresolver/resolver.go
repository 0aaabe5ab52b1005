// Package roleresolver answers "what role does this identity act with".
//
// Resolution never fails: a missing profile, a store error, an unrecognized role
// string or an anonymous caller all resolve to authz.LeastPrivileged.
package roleresolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

// Source is anything that can resolve a role. *Resolver implements it.
type Source interface {
	Resolve(ctx context.Context, id domain.IdentityID) authz.Role
}

// CachingSource is a Source whose cached result for one identity can be dropped.
type CachingSource interface {
	Source
	Invalidate(id domain.IdentityID)
}

type Options struct {
	// TTL bounds how long a resolved role is trusted without a refetch.
	TTL time.Duration
	// FetchTimeout bounds one shared store round trip.
	FetchTimeout time.Duration
	// MaxEntries caps the number of cached identities.
	MaxEntries int64
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 5 * time.Second
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = 10_000
	}
	return o
}

// Resolver resolves identity roles from the profile store. Concurrent lookups for the
// same identity share one store fetch; successful lookups are cached until TTL,
// Invalidate, or a RoleChanged/ProfileDeleted event.
type Resolver struct {
	profiles profilerepo.Reader
	log      *zap.Logger
	opts     Options

	cache *ristretto.Cache
	group singleflight.Group

	mu   sync.Mutex
	gens map[domain.IdentityID]uint64
}

func New(profiles profilerepo.Reader, log *zap.Logger, opts Options) (*Resolver, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.withDefaults()
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.MaxEntries * 10,
		MaxCost:     opts.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Resolver{
		profiles: profiles,
		log:      log,
		opts:     opts,
		cache:    cache,
		gens:     make(map[domain.IdentityID]uint64),
	}, nil
}

// Resolve returns the role for id. An empty id is anonymous.
func (r *Resolver) Resolve(ctx context.Context, id domain.IdentityID) authz.Role {
	if id == "" {
		return authz.LeastPrivileged
	}
	if v, ok := r.cache.Get(string(id)); ok {
		if role, ok := v.(authz.Role); ok {
			return role
		}
	}

	gen := r.generation(id)
	v, err, _ := r.group.Do(string(id), func() (any, error) {
		// The fetch is shared; one caller's cancellation must not fail the others.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.FetchTimeout)
		defer cancel()
		role, err := r.lookup(fctx, id)
		if err != nil {
			return authz.LeastPrivileged, err
		}
		r.store(id, gen, role)
		return role, nil
	})
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			r.log.Debug("role resolution: no profile", zap.String("identity", string(id)))
		} else {
			r.log.Warn("role resolution failed; using least-privileged role",
				zap.String("identity", string(id)), zap.Error(err))
		}
		return authz.LeastPrivileged
	}
	role, ok := v.(authz.Role)
	if !ok {
		return authz.LeastPrivileged
	}
	return role
}

// Invalidate drops any cached role for id. In-flight fetches started before the
// call will not repopulate the cache.
func (r *Resolver) Invalidate(id domain.IdentityID) {
	r.mu.Lock()
	r.gens[id]++
	r.mu.Unlock()
	r.cache.Del(string(id))
	r.group.Forget(string(id))
}

// HandleEvent invalidates cached roles affected by ev. It is registered on the event bus.
func (r *Resolver) HandleEvent(_ context.Context, ev domain.Event) {
	switch ev.(type) {
	case domain.RoleChanged, domain.ProfileDeleted:
		r.Invalidate(ev.Subject())
	}
}

func (r *Resolver) Close() {
	r.cache.Close()
}

var errUnknownRole = errors.New("unknown role")

func (r *Resolver) lookup(ctx context.Context, id domain.IdentityID) (authz.Role, error) {
	p, err := r.profiles.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.Role.Valid() {
		return "", errUnknownRole
	}
	return p.Role, nil
}

func (r *Resolver) generation(id domain.IdentityID) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gens[id]
}

func (r *Resolver) store(id domain.IdentityID, gen uint64, role authz.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gens[id] != gen {
		return
	}
	r.cache.SetWithTTL(string(id), role, 1, r.opts.TTL)
}
