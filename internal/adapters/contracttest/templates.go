package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/domain"
	templaterepoport "github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

func RunTemplateRepo(t *testing.T, newRepo TemplateRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(7000, 0).UTC()
	suffix := uuid.NewString()[:8]
	welcome := domain.Template{
		ID:        domain.TemplateID(uuid.NewString()),
		Name:      "Welcome " + suffix,
		Channel:   domain.ChannelEmail,
		Subject:   strPtr("Hi {{ first_name }}"),
		Content:   "<p>Welcome {{ first_name }}</p>",
		Variables: []string{"first_name"},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, welcome); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.Get(ctx, welcome.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Subject == nil || *got.Subject != "Hi {{ first_name }}" || len(got.Variables) != 1 || got.Variables[0] != "first_name" {
		t.Fatalf("unexpected template: %+v", got)
	}

	// Names are unique per channel.
	dup := welcome
	dup.ID = domain.TemplateID(uuid.NewString())
	if err := repo.Create(ctx, dup); !errors.Is(err, templaterepoport.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	dup.Channel = domain.ChannelWhatsApp
	dup.Subject = nil
	dup.IsActive = false
	if err := repo.Create(ctx, dup); err != nil {
		t.Fatalf("same name on another channel: %v", err)
	}

	active, err := repo.List(ctx, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, a := range active {
		if a.ID == dup.ID {
			t.Fatalf("inactive template in active list")
		}
	}

	got.Content = "<p>Welcome aboard {{ first_name }}</p>"
	got.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if g, _ := repo.Get(ctx, got.ID); g.Content != got.Content {
		t.Fatalf("update not persisted: %+v", g)
	}

	if err := repo.Delete(ctx, dup.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, dup.ID); !errors.Is(err, templaterepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, dup.ID); !errors.Is(err, templaterepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
