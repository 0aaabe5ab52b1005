package contracttest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	boardrepoport "github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	crmrepoport "github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
	idempotencyport "github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
	membershiprepoport "github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	messagelogrepoport "github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	settingsrepoport "github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
	templaterepoport "github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

type CleanupFunc = func()

type ProfileRepoFactory func(t *testing.T) (profilerepoport.Repository, CleanupFunc)
type MembershipRepoFactory func(t *testing.T) (membershiprepoport.Repository, CleanupFunc)
type BoardRepoFactory func(t *testing.T) (boardrepoport.Repository, CleanupFunc)
type TemplateRepoFactory func(t *testing.T) (templaterepoport.Repository, CleanupFunc)
type MessageLogRepoFactory func(t *testing.T) (messagelogrepoport.Repository, CleanupFunc)
type CRMRepoFactory func(t *testing.T) (crmrepoport.Repository, CleanupFunc)
type SettingsRepoFactory func(t *testing.T) (settingsrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  domain.IdentityID("sub-1"),
		Method:   "POST",
		Route:    "/messages",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Scoped by identity.
	other := fp
	other.Subject = "sub-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for other identity, got ok=%v err=%v", ok, err)
	}

	// Reserve is insert-if-absent.
	resFP := fp
	resFP.BodyHash = "hash-res"
	pending := idempotencyport.Record{ContentType: "application/json", CreatedAt: time.Now().UTC()}
	if _, created, err := store.Reserve(ctx, resFP, pending); err != nil || !created {
		t.Fatalf("first Reserve: created=%v err=%v", created, err)
	}
	existing, created, err := store.Reserve(ctx, resFP, pending)
	if err != nil || created {
		t.Fatalf("second Reserve: created=%v err=%v", created, err)
	}
	if !existing.Pending() {
		t.Fatalf("expected pending reservation, got %+v", existing)
	}
	if err := store.Delete(ctx, resFP); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, created, err := store.Reserve(ctx, resFP, pending); err != nil || !created {
		t.Fatalf("Reserve after Delete: created=%v err=%v", created, err)
	}
}

// seedProfile creates a minimal profile so dependent rows satisfy foreign keys.
func seedProfile(t *testing.T, repo profilerepoport.Repository, first, last string) domain.IdentityID {
	t.Helper()
	id := domain.IdentityID(uuid.NewString())
	now := time.Unix(1000, 0).UTC()
	if err := repo.Create(context.Background(), domain.Profile{
		ID:        id,
		Role:      authz.RoleMember,
		Status:    domain.ProfileActive,
		FirstName: first,
		LastName:  last,
		Email:     string(id) + "@example.com",
		Preferences: domain.Preferences{
			Language:   "en",
			EmailOptIn: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return id
}

func strPtr(s string) *string { return &s }

func idPtr(id domain.IdentityID) *domain.IdentityID { return &id }

func timePtr(t time.Time) *time.Time { return &t }
