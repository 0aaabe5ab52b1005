package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/domain"
	crmrepoport "github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
)

func RunCRMRepo(t *testing.T, newProfiles ProfileRepoFactory, newRepo CRMRepoFactory) {
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

	subject := seedProfile(t, profiles, "Sam", "Subject")
	staff := seedProfile(t, profiles, "Ada", "Staff")
	now := time.Unix(20000, 0).UTC()

	// Activities, newest first.
	for i, kind := range []domain.ActivityKind{domain.ActivityMembershipCreated, domain.ActivityRoleChanged} {
		if err := repo.AddActivity(ctx, domain.Activity{
			ID:          domain.ActivityID(uuid.NewString()),
			ProfileID:   subject,
			Kind:        kind,
			Description: string(kind),
			Metadata:    map[string]string{"i": string(rune('0' + i))},
			ActorID:     idPtr(staff),
			CreatedAt:   now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("AddActivity: %v", err)
		}
	}
	acts, err := repo.ListActivities(ctx, subject, 0)
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(acts) != 2 || acts[0].Kind != domain.ActivityRoleChanged || acts[0].Metadata["i"] != "1" {
		t.Fatalf("unexpected activities: %#v", acts)
	}
	if acts, _ := repo.ListActivities(ctx, subject, 1); len(acts) != 1 {
		t.Fatalf("limit not applied")
	}

	if err := repo.AddInteraction(ctx, domain.Interaction{
		ID:         domain.InteractionID(uuid.NewString()),
		ProfileID:  subject,
		Channel:    domain.InteractionCall,
		Summary:    "Intro call",
		OccurredAt: now,
		ActorID:    staff,
		CreatedAt:  now,
	}); err != nil {
		t.Fatalf("AddInteraction: %v", err)
	}
	if is, err := repo.ListInteractions(ctx, subject); err != nil || len(is) != 1 || is[0].Channel != domain.InteractionCall {
		t.Fatalf("unexpected interactions: %#v err=%v", is, err)
	}

	noteID := domain.NoteID(uuid.NewString())
	if err := repo.AddNote(ctx, domain.Note{ID: noteID, ProfileID: subject, AuthorID: staff, Body: "private", IsPrivate: true, CreatedAt: now}); err != nil {
		t.Fatalf("AddNote: %v", err)
	}
	if n, err := repo.GetNote(ctx, noteID); err != nil || !n.IsPrivate || n.AuthorID != staff {
		t.Fatalf("unexpected note: %+v err=%v", n, err)
	}
	if ns, _ := repo.ListNotes(ctx, subject); len(ns) != 1 {
		t.Fatalf("expected 1 note, got %d", len(ns))
	}
	if err := repo.DeleteNote(ctx, noteID); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if err := repo.DeleteNote(ctx, noteID); !errors.Is(err, crmrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.AddTag(ctx, domain.Tag{ProfileID: subject, Name: "volunteer", Color: strPtr("#00ff00"), CreatedAt: now}); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if err := repo.AddTag(ctx, domain.Tag{ProfileID: subject, Name: "alumni", CreatedAt: now}); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if err := repo.AddTag(ctx, domain.Tag{ProfileID: subject, Name: "volunteer", CreatedAt: now}); !errors.Is(err, crmrepoport.ErrTagExists) {
		t.Fatalf("expected ErrTagExists, got %v", err)
	}
	tags, err := repo.ListTags(ctx, subject)
	if err != nil || len(tags) != 2 || tags[0].Name != "alumni" || tags[1].Color == nil {
		t.Fatalf("unexpected tags: %#v err=%v", tags, err)
	}
	if err := repo.RemoveTag(ctx, subject, "alumni"); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	if err := repo.RemoveTag(ctx, subject, "alumni"); !errors.Is(err, crmrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	early := domain.FollowUp{ID: domain.FollowUpID(uuid.NewString()), ProfileID: subject, AssigneeID: idPtr(staff), Title: "Call back", DueAt: now.Add(time.Hour), CreatedAt: now}
	late := domain.FollowUp{ID: domain.FollowUpID(uuid.NewString()), ProfileID: subject, Title: "Renewal", DueAt: now.Add(48 * time.Hour), CreatedAt: now}
	for _, f := range []domain.FollowUp{late, early} {
		if err := repo.AddFollowUp(ctx, f); err != nil {
			t.Fatalf("AddFollowUp: %v", err)
		}
	}
	fs, err := repo.ListFollowUps(ctx, crmrepoport.FollowUpFilter{ProfileID: idPtr(subject)})
	if err != nil || len(fs) != 2 || fs[0].ID != early.ID {
		t.Fatalf("unexpected follow-ups: %#v err=%v", fs, err)
	}
	early.CompletedAt = timePtr(now.Add(30 * time.Minute))
	if err := repo.UpdateFollowUp(ctx, early); err != nil {
		t.Fatalf("UpdateFollowUp: %v", err)
	}
	open, err := repo.ListFollowUps(ctx, crmrepoport.FollowUpFilter{ProfileID: idPtr(subject), OpenOnly: true})
	if err != nil || len(open) != 1 || open[0].ID != late.ID {
		t.Fatalf("unexpected open follow-ups: %#v err=%v", open, err)
	}
	mine, err := repo.ListFollowUps(ctx, crmrepoport.FollowUpFilter{AssigneeID: idPtr(staff)})
	if err != nil || len(mine) != 1 || mine[0].ID != early.ID {
		t.Fatalf("unexpected assignee filter: %#v err=%v", mine, err)
	}

	if err := repo.DeleteByProfile(ctx, subject); err != nil {
		t.Fatalf("DeleteByProfile: %v", err)
	}
	if acts, _ := repo.ListActivities(ctx, subject, 0); len(acts) != 0 {
		t.Fatalf("activities survived cascade")
	}
	if tags, _ := repo.ListTags(ctx, subject); len(tags) != 0 {
		t.Fatalf("tags survived cascade")
	}
	if fs, _ := repo.ListFollowUps(ctx, crmrepoport.FollowUpFilter{ProfileID: idPtr(subject)}); len(fs) != 0 {
		t.Fatalf("follow-ups survived cascade")
	}
}
