package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
)

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{
		Key:      "k1",
		Subject:  domain.IdentityID("sub-1"),
		Method:   "POST",
		Route:    "/messages",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"success":true}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}

	if err := s.Put(context.Background(), fp, rec); err != nil {
		t.Fatalf("Put() err=%v", err)
	}

	got, ok, err := s.Get(context.Background(), fp)
	if err != nil {
		t.Fatalf("Get() err=%v", err)
	}
	if !ok {
		t.Fatalf("Get() ok=false, want true")
	}
	if got.StatusCode != rec.StatusCode || got.ContentType != rec.ContentType || string(got.Body) != string(rec.Body) {
		t.Fatalf("Get()=%+v, want %+v", got, rec)
	}

	other := fp
	other.Subject = "sub-2"
	if _, ok, _ := s.Get(context.Background(), other); ok {
		t.Fatalf("record leaked across identities")
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0).UTC()
	s := NewStoreWithTTL(time.Minute, func() time.Time { return now })
	fp := idempotency.Fingerprint{Key: "k1", Subject: "sub-1", Method: "POST", Route: "/messages"}

	if err := s.Put(context.Background(), fp, idempotency.Record{StatusCode: 201}); err != nil {
		t.Fatalf("Put() err=%v", err)
	}
	if _, ok, _ := s.Get(context.Background(), fp); !ok {
		t.Fatalf("expected record before ttl")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.Get(context.Background(), fp); ok {
		t.Fatalf("expected record to expire")
	}
}
