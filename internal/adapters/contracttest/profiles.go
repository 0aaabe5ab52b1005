package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

func RunProfileRepo(t *testing.T, newRepo ProfileRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	suffix := uuid.NewString()[:8]
	aID := domain.IdentityID(uuid.NewString())
	phone := "15551234567"
	a := domain.Profile{
		ID:        aID,
		Role:      domain.DefaultProfileRole,
		Status:    domain.DefaultProfileStatus,
		FirstName: "Alice",
		LastName:  "Zephyr" + suffix,
		Email:     "alice-" + suffix + "@example.com",
		Phone:     &phone,
		Preferences: domain.Preferences{
			Language:      "es",
			WhatsAppOptIn: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}
	got, err := repo.Get(ctx, aID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != authz.RoleGuest || got.Status != domain.ProfilePending || got.Phone == nil || *got.Phone != phone {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if got.Preferences.Language != "es" || !got.Preferences.WhatsAppOptIn || got.Preferences.EmailOptIn {
		t.Fatalf("unexpected preferences: %+v", got.Preferences)
	}

	// One profile per identity.
	dup := a
	dup.Email = "other-" + suffix + "@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, profilerepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Email uniqueness (case-insensitive).
	bID := domain.IdentityID(uuid.NewString())
	b := domain.Profile{
		ID:        bID,
		Role:      authz.RoleMember,
		Status:    domain.ProfileActive,
		FirstName: "Bob",
		LastName:  "Anders" + suffix,
		Email:     "ALICE-" + suffix + "@example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, b); !errors.Is(err, profilerepoport.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	b.Email = "bob-" + suffix + "@example.com"
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	// Update persists role/status changes.
	got.Role = authz.RoleAdmin
	got.Status = domain.ProfileActive
	got.Phone = nil
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = repo.Get(ctx, aID)
	if got.Role != authz.RoleAdmin || got.Status != domain.ProfileActive || got.Phone != nil {
		t.Fatalf("update not persisted: %+v", got)
	}
	if err := repo.Update(ctx, domain.Profile{ID: domain.IdentityID(uuid.NewString()), Email: "x-" + suffix + "@example.com"}); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}

	// Ordering by last name and filtering.
	ps, err := repo.List(ctx, profilerepoport.Filter{Query: suffix})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ps) != 2 || ps[0].ID != bID || ps[1].ID != aID {
		t.Fatalf("unexpected ordering: %#v", ps)
	}
	ps, err = repo.List(ctx, profilerepoport.Filter{Query: "alice " + suffix, Role: authz.RoleAdmin})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(ps) != 1 || ps[0].ID != aID {
		t.Fatalf("unexpected filter result: %#v", ps)
	}

	if err := repo.Delete(ctx, bID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, bID); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, bID); !errors.Is(err, profilerepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
