package idempotency

import (
	"context"
	"time"

	"github.com/chapter-connect/membership-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a request uniquely for idempotency purposes:
// key + route + identity + request body hash.
// Route is represented as HTTP method + path template (e.g. "POST /messages").
type Fingerprint struct {
	Key      Key
	Subject  domain.IdentityID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response we can replay for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Pending reports whether the record is a reservation for a request still being handled.
func (r Record) Pending() bool { return r.StatusCode == 0 }

// Store persists idempotency records for replaying safe responses on retries.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	// Reserve stores rec under fp only if no live record exists. created is false when
	// another caller got there first, in which case the existing record is returned.
	Reserve(ctx context.Context, fp Fingerprint, rec Record) (existing Record, created bool, err error)
	Delete(ctx context.Context, fp Fingerprint) error
}
