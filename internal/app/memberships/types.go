package memberships

import (
	"time"

	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/domain"
)

type EnrollInput struct {
	ProfileID domain.IdentityID
	Type      domain.MembershipType
	Cadence   domain.PaymentCadence
	FeeMinor  int64
	Currency  string

	// Status defaults to pending.
	Status    domain.MembershipStatus
	StartDate time.Time
	// ExpiryDate defaults to one billing period after StartDate.
	ExpiryDate *time.Time
}

type UpdateInput struct {
	Type       patch.Optional[domain.MembershipType]
	Cadence    patch.Optional[domain.PaymentCadence]
	FeeMinor   patch.Optional[int64]
	Currency   patch.Optional[string]
	Status     patch.Optional[domain.MembershipStatus]
	StartDate  patch.Optional[time.Time]
	ExpiryDate patch.Optional[time.Time]
}

type ListInput struct {
	Status string
	Type   string
}
