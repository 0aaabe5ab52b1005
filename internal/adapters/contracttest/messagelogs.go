package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/domain"
	messagelogrepoport "github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
)

func RunMessageLogRepo(t *testing.T, newProfiles ProfileRepoFactory, newTemplates TemplateRepoFactory, newRepo MessageLogRepoFactory) {
	t.Helper()
	ctx := context.Background()

	profiles, pCleanup := newProfiles(t)
	if pCleanup != nil {
		t.Cleanup(pCleanup)
	}
	templates, tCleanup := newTemplates(t)
	if tCleanup != nil {
		t.Cleanup(tCleanup)
	}
	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	recipient := seedProfile(t, profiles, "Rae", "Recipient")
	now := time.Unix(9000, 0).UTC()
	tplID := domain.TemplateID(uuid.NewString())
	if err := templates.Create(ctx, domain.Template{
		ID:        tplID,
		Name:      "Reminder " + uuid.NewString()[:8],
		Channel:   domain.ChannelWhatsApp,
		Content:   "Dues due {{ date }}",
		Variables: []string{"date"},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	providerID := "prov-" + uuid.NewString()
	first := domain.MessageLog{
		ID:             domain.MessageLogID(uuid.NewString()),
		TemplateID:     &tplID,
		RecipientID:    idPtr(recipient),
		RecipientPhone: strPtr("15551234567"),
		Channel:        domain.ChannelWhatsApp,
		Content:        "Dues due Friday",
		VariablesUsed:  map[string]string{"date": "Friday"},
		Status:         domain.DeliveryPending,
		CreatedAt:      now,
	}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}
	second := first
	second.ID = domain.MessageLogID(uuid.NewString())
	second.CreatedAt = now.Add(time.Minute)
	second.Status = domain.DeliveryFailed
	second.ErrorMessage = strPtr("gateway timeout")
	second.VariablesUsed = map[string]string{"date": "Monday"}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	// Delivery-status transition.
	sentAt := now.Add(2 * time.Second)
	first.Status = domain.DeliverySent
	first.ProviderMessageID = &providerID
	first.SentAt = &sentAt
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByProviderMessageID(ctx, providerID)
	if err != nil {
		t.Fatalf("GetByProviderMessageID: %v", err)
	}
	if got.ID != first.ID || got.Status != domain.DeliverySent || got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Fatalf("unexpected log: %+v", got)
	}
	if got.VariablesUsed["date"] != "Friday" {
		t.Fatalf("variables not persisted: %+v", got.VariablesUsed)
	}
	if _, err := repo.GetByProviderMessageID(ctx, "missing-"+providerID); !errors.Is(err, messagelogrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	logs, err := repo.List(ctx, messagelogrepoport.Filter{RecipientID: idPtr(recipient)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(logs) != 2 || logs[0].ID != second.ID || logs[1].ID != first.ID {
		t.Fatalf("expected newest first, got %#v", logs)
	}
	failed, err := repo.List(ctx, messagelogrepoport.Filter{RecipientID: idPtr(recipient), Status: domain.DeliveryFailed})
	if err != nil || len(failed) != 1 || failed[0].ErrorMessage == nil {
		t.Fatalf("unexpected failed filter: %#v err=%v", failed, err)
	}

	// Template deletion keeps history with the template detached.
	if err := repo.DetachTemplate(ctx, tplID); err != nil {
		t.Fatalf("DetachTemplate: %v", err)
	}
	if err := templates.Delete(ctx, tplID); err != nil {
		t.Fatalf("delete template: %v", err)
	}
	g, err := repo.Get(ctx, first.ID)
	if err != nil || g.TemplateID != nil {
		t.Fatalf("expected detached template, got %+v err=%v", g, err)
	}

	// Identity deletion keeps history with the recipient detached.
	if err := repo.DetachRecipient(ctx, recipient); err != nil {
		t.Fatalf("DetachRecipient: %v", err)
	}
	g, err = repo.Get(ctx, second.ID)
	if err != nil || g.RecipientID != nil || g.RecipientPhone == nil {
		t.Fatalf("expected detached recipient with contact kept, got %+v err=%v", g, err)
	}
}
