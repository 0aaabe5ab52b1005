package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/domain"
	boardrepoport "github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
)

func RunBoardRepo(t *testing.T, newProfiles ProfileRepoFactory, newRepo BoardRepoFactory) {
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

	holder := seedProfile(t, profiles, "Pat", "Holder")
	now := time.Unix(5000, 0).UTC()
	d2025 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d2026 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mk := func(title string, active bool, start *time.Time) domain.BoardPosition {
		p := domain.BoardPosition{
			ID:        domain.BoardPositionID(uuid.NewString()),
			ProfileID: holder,
			Title:     title,
			Level:     domain.LevelLocal,
			IsActive:  active,
			StartDate: start,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, p); err != nil {
			t.Fatalf("Create %s: %v", title, err)
		}
		return p
	}
	old := mk("Treasurer", false, timePtr(d2025))
	cur := mk("President", true, timePtr(d2026))
	undated := mk("Advisor", true, nil)

	// Overlapping active positions are allowed.
	ps, err := repo.ListByProfile(ctx, holder)
	if err != nil {
		t.Fatalf("ListByProfile: %v", err)
	}
	if len(ps) != 3 || ps[0].ID != cur.ID || ps[1].ID != old.ID || ps[2].ID != undated.ID {
		t.Fatalf("unexpected ordering: %#v", ps)
	}

	old.EndDate = timePtr(d2026)
	old.Title = "Treasurer (former)"
	if err := repo.Update(ctx, old); err != nil {
		t.Fatalf("Update: %v", err)
	}
	g, err := repo.Get(ctx, old.ID)
	if err != nil || g.EndDate == nil || !g.EndDate.Equal(d2026) || g.Title != "Treasurer (former)" {
		t.Fatalf("update not persisted: %+v err=%v", g, err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	for _, a := range active {
		if !a.IsActive {
			t.Fatalf("inactive position in ListActive: %+v", a)
		}
		if a.ID == old.ID {
			t.Fatalf("inactive position returned")
		}
	}

	if err := repo.Delete(ctx, undated.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, undated.ID); !errors.Is(err, boardrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteByProfile(ctx, holder); err != nil {
		t.Fatalf("DeleteByProfile: %v", err)
	}
	if ps, _ := repo.ListByProfile(ctx, holder); len(ps) != 0 {
		t.Fatalf("expected no positions after cascade, got %d", len(ps))
	}
}
