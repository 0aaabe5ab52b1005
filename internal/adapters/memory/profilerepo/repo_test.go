package profilerepo

import (
	"context"
	"testing"
	"time"

	"github.com/chapter-connect/membership-api/internal/domain"
)

func TestRepo_ReturnsClones(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	phone := "5551234567"
	now := time.Unix(100, 0).UTC()
	if err := r.Create(context.Background(), domain.Profile{
		ID:        "sub-1",
		Role:      domain.DefaultProfileRole,
		Status:    domain.DefaultProfileStatus,
		Email:     "a@example.com",
		Phone:     &phone,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Create err=%v", err)
	}
	phone = "mutated"

	got, err := r.Get(context.Background(), "sub-1")
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if got.Phone == nil || *got.Phone != "5551234567" {
		t.Fatalf("phone=%v, want stored copy", got.Phone)
	}
	*got.Phone = "changed"

	again, _ := r.Get(context.Background(), "sub-1")
	if *again.Phone != "5551234567" {
		t.Fatalf("repo state mutated through returned value")
	}
}
