package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/domain"
	membershiprepoport "github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
)

// RunMembershipRepo needs a profile repository backed by the same store so that
// seeded owners satisfy foreign keys.
func RunMembershipRepo(t *testing.T, newProfiles ProfileRepoFactory, newRepo MembershipRepoFactory) {
	t.Helper()
	ctx := context.Background()

	profiles, pCleanup := newProfiles(t)
	if pCleanup != nil {
		t.Cleanup(pCleanup)
	}
	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	owner := seedProfile(t, profiles, "Mia", "Owner")
	other := seedProfile(t, profiles, "Ned", "Other")

	n1, err := repo.NextMemberNumber(ctx)
	if err != nil {
		t.Fatalf("NextMemberNumber: %v", err)
	}
	n2, err := repo.NextMemberNumber(ctx)
	if err != nil {
		t.Fatalf("NextMemberNumber: %v", err)
	}
	if n1 == "" || n1 == n2 {
		t.Fatalf("member numbers must be unique: %q %q", n1, n2)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := domain.Membership{
		ID:           domain.MembershipID(uuid.NewString()),
		ProfileID:    owner,
		Type:         domain.MembershipLocal,
		Cadence:      domain.CadenceYearly,
		Fee:          domain.Money{AmountMinor: 5000, Currency: "USD"},
		Status:       domain.MembershipPending,
		StartDate:    start,
		ExpiryDate:   start.AddDate(1, 0, 0),
		MemberNumber: n1,
		CreatedAt:    start,
		UpdatedAt:    start,
	}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByProfile(ctx, owner)
	if err != nil {
		t.Fatalf("GetByProfile: %v", err)
	}
	if got.ID != m.ID || got.Fee != m.Fee || !got.ExpiryDate.Equal(m.ExpiryDate) || got.MemberNumber != n1 {
		t.Fatalf("unexpected membership: %+v", got)
	}

	// One membership per profile.
	dup := m
	dup.ID = domain.MembershipID(uuid.NewString())
	dup.MemberNumber = n2
	if err := repo.Create(ctx, dup); !errors.Is(err, membershiprepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// Member numbers are unique.
	clash := m
	clash.ID = domain.MembershipID(uuid.NewString())
	clash.ProfileID = other
	if err := repo.Create(ctx, clash); !errors.Is(err, membershiprepoport.ErrMemberNumberTaken) {
		t.Fatalf("expected ErrMemberNumberTaken, got %v", err)
	}
	clash.MemberNumber = n2
	if err := repo.Create(ctx, clash); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	got.Status = domain.MembershipActive
	got.UpdatedAt = start.Add(time.Hour)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if g, _ := repo.Get(ctx, got.ID); g.Status != domain.MembershipActive {
		t.Fatalf("status not persisted: %+v", g)
	}

	active, err := repo.List(ctx, membershiprepoport.Filter{Status: domain.MembershipActive})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, a := range active {
		if a.Status != domain.MembershipActive {
			t.Fatalf("filter leaked status %q", a.Status)
		}
		if a.ID == got.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("active membership missing from list")
	}

	if err := repo.DeleteByProfile(ctx, owner); err != nil {
		t.Fatalf("DeleteByProfile: %v", err)
	}
	if _, err := repo.GetByProfile(ctx, owner); !errors.Is(err, membershiprepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteByProfile(ctx, owner); err != nil {
		t.Fatalf("DeleteByProfile must be idempotent: %v", err)
	}
}
