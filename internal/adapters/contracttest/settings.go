package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chapter-connect/membership-api/internal/domain"
	settingsrepoport "github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
)

// RunSettingsRepo expects an empty store.
func RunSettingsRepo(t *testing.T, newRepo SettingsRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := repo.Get(ctx); !errors.Is(err, settingsrepoport.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	s := domain.OrganizationSettings{
		ChapterName: "Downtown Chapter",
		Email: domain.SMTPConfig{
			Host:      "smtp.example.com",
			Port:      domain.DefaultSMTPPort,
			Username:  "mailer",
			Password:  "s3cret",
			UseTLS:    true,
			FromEmail: "noreply@example.com",
			FromName:  "Downtown",
		},
		WhatsApp: domain.WhatsAppConfig{
			APIURL:       "https://evo.example.com",
			APIKey:       "k3y",
			InstanceName: "chapter",
			WebhookURL:   strPtr("https://api.example.com/webhooks/whatsapp"),
		},
		UpdatedAt: time.Unix(30000, 0).UTC(),
	}
	if err := repo.Put(ctx, s); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != s.Email || got.WhatsApp.APIKey != "k3y" || got.WhatsApp.WebhookURL == nil || got.ChapterName != s.ChapterName {
		t.Fatalf("unexpected settings: %+v", got)
	}

	s.ChapterName = "Uptown Chapter"
	s.WhatsApp.WebhookURL = nil
	if err := repo.Put(ctx, s); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _ = repo.Get(ctx)
	if got.ChapterName != "Uptown Chapter" || got.WhatsApp.WebhookURL != nil {
		t.Fatalf("overwrite not persisted: %+v", got)
	}
}
