package domain

import (
	"errors"
	"fmt"
	"time"
)

type MembershipType string

const (
	MembershipLocal         MembershipType = "local"
	MembershipNational      MembershipType = "national"
	MembershipInternational MembershipType = "international"
)

func (t MembershipType) Valid() bool {
	switch t {
	case MembershipLocal, MembershipNational, MembershipInternational:
		return true
	}
	return false
}

// PaymentCadence is how often a membership fee is billed.
type PaymentCadence string

const (
	CadenceMonthly   PaymentCadence = "monthly"
	CadenceQuarterly PaymentCadence = "quarterly"
	CadenceYearly    PaymentCadence = "yearly"
)

func (c PaymentCadence) Valid() bool {
	switch c {
	case CadenceMonthly, CadenceQuarterly, CadenceYearly:
		return true
	}
	return false
}

// Advance returns the end of one billing period starting at t. A day past the end of the
// target month lands on its last day: Jan 31 advances monthly to Feb 28 (or 29).
func (c PaymentCadence) Advance(t time.Time) time.Time {
	switch c {
	case CadenceMonthly:
		return addMonths(t, 1)
	case CadenceQuarterly:
		return addMonths(t, 3)
	default:
		return addMonths(t, 12)
	}
}

func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location()).AddDate(0, n, 0)
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}

type MembershipStatus string

const (
	MembershipPending   MembershipStatus = "pending"
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipSuspended MembershipStatus = "suspended"
	MembershipCancelled MembershipStatus = "cancelled"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case MembershipPending, MembershipActive, MembershipExpired, MembershipSuspended, MembershipCancelled:
		return true
	}
	return false
}

// Money is an amount in minor units (cents) with an ISO-4217 currency code.
type Money struct {
	AmountMinor int64
	Currency    string
}

// ErrInvalidValidityWindow indicates expiry_date is not after start_date.
var ErrInvalidValidityWindow = errors.New("expiry date must be after start date")

// Membership is one-to-one with a Profile.
type Membership struct {
	ID        MembershipID
	ProfileID IdentityID

	Type         MembershipType
	Cadence      PaymentCadence
	Fee          Money
	Status       MembershipStatus
	StartDate    time.Time
	ExpiryDate   time.Time
	MemberNumber string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateWindow enforces expiry_date > start_date on calendar dates.
func ValidateWindow(start, expiry time.Time) error {
	if !DateOnly(expiry).After(DateOnly(start)) {
		return ErrInvalidValidityWindow
	}
	return nil
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatMemberNumber renders the n-th allocated member number.
func FormatMemberNumber(n int64) string {
	return fmt.Sprintf("M-%06d", n)
}
