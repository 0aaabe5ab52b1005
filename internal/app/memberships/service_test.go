package memberships

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memmembershiprepo "github.com/chapter-connect/membership-api/internal/adapters/memory/membershiprepo"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/apptest"
	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func newService(t *testing.T) (*Service, *apptest.Fixture) {
	t.Helper()
	f := apptest.New(t)
	return NewService(memmembershiprepo.NewRepo(), f.Profiles, f.Guard, f.Clock, f.Events, nil), f
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEnroll_DefaultsAndMemberNumber(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	a := f.Seed(t, authz.RoleProspective, "Pat", "One")
	b := f.Seed(t, authz.RoleProspective, "Pia", "Two")

	m1, err := svc.Enroll(ctx, admin, EnrollInput{
		ProfileID: a, Type: domain.MembershipLocal, Cadence: domain.CadenceQuarterly,
		FeeMinor: 2500, StartDate: date(2025, 1, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipPending, m1.Status)
	assert.Equal(t, DefaultCurrency, m1.Fee.Currency)
	assert.Equal(t, date(2025, 5, 1), m1.ExpiryDate, "AddDate normalizes April 31")
	assert.NotEmpty(t, m1.MemberNumber)

	m2, err := svc.Enroll(ctx, admin, EnrollInput{
		ProfileID: b, Type: domain.MembershipNational, Cadence: domain.CadenceYearly,
		Currency: "eur", StartDate: date(2025, 1, 1),
	})
	require.NoError(t, err)
	assert.NotEqual(t, m1.MemberNumber, m2.MemberNumber)
	assert.Equal(t, "EUR", m2.Fee.Currency)

	evs := f.Events.Events()
	require.Len(t, evs, 2)
	created, ok := evs[0].(domain.MembershipCreated)
	require.True(t, ok)
	assert.Equal(t, a, created.ProfileID)
}

func TestEnroll_OnePerProfile(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	p := f.Seed(t, authz.RoleMember, "Mia", "Member")
	in := EnrollInput{ProfileID: p, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: date(2025, 1, 1)}

	_, err := svc.Enroll(ctx, admin, in)
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, admin, in)
	assert.True(t, apperr.HasCode(err, "MEMBERSHIP_ALREADY_EXISTS"))
}

func TestEnroll_Validation(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	p := f.Seed(t, authz.RoleMember, "Mia", "Member")

	_, err := svc.Enroll(ctx, admin, EnrollInput{ProfileID: p, Type: "galactic", Cadence: "weekly", Currency: "dollars"})
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, ae.Code)
	for _, field := range []string{"type", "paymentCadence", "currency", "startDate"} {
		assert.Contains(t, ae.Details, field)
	}

	same := date(2025, 1, 1)
	_, err = svc.Enroll(ctx, admin, EnrollInput{ProfileID: p, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: same, ExpiryDate: &same})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = svc.Enroll(ctx, admin, EnrollInput{ProfileID: "missing", Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: same})
	assert.True(t, apperr.HasCode(err, "PROFILE_NOT_FOUND"))
}

func TestEnroll_RequiresAdmin(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	member := f.Seed(t, authz.RoleMember, "Mia", "Member")

	_, err := svc.Enroll(context.Background(), member, EnrollInput{ProfileID: member, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: date(2025, 1, 1)})
	assert.True(t, apperr.IsForbidden(err))
}

func TestGetMine_SelfAccessForProspect(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	prospect := f.Seed(t, authz.RoleProspective, "Pat", "Prospect")
	other := f.Seed(t, authz.RoleProspective, "Pia", "Other")

	m, err := svc.Enroll(ctx, admin, EnrollInput{ProfileID: prospect, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: date(2025, 1, 1)})
	require.NoError(t, err)

	mine, err := svc.GetMine(ctx, prospect)
	require.NoError(t, err)
	assert.Equal(t, m.ID, mine.ID)

	byID, err := svc.Get(ctx, prospect, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.MemberNumber, byID.MemberNumber)

	_, err = svc.Get(ctx, other, m.ID)
	assert.True(t, apperr.IsForbidden(err), "prospects cannot read other memberships")

	_, err = svc.List(ctx, prospect, ListInput{})
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.GetMine(ctx, other)
	assert.True(t, apperr.HasCode(err, "MEMBERSHIP_NOT_FOUND"))
}

func TestUpdate_StatusChangePublishes(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	p := f.Seed(t, authz.RoleMember, "Mia", "Member")
	m, err := svc.Enroll(ctx, admin, EnrollInput{ProfileID: p, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, StartDate: date(2025, 1, 1)})
	require.NoError(t, err)

	got, err := svc.Update(ctx, admin, m.ID, UpdateInput{Status: patch.Some(domain.MembershipSuspended), FeeMinor: patch.Some(int64(1000))})
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipSuspended, got.Status)
	assert.Equal(t, int64(1000), got.Fee.AmountMinor)

	evs := f.Events.Events()
	changed, ok := evs[len(evs)-1].(domain.MembershipStatusChanged)
	require.True(t, ok)
	assert.Equal(t, domain.MembershipPending, changed.From)
	assert.Equal(t, domain.MembershipSuspended, changed.To)

	_, err = svc.Update(ctx, admin, m.ID, UpdateInput{ExpiryDate: patch.Some(date(2024, 12, 1))})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = svc.Update(ctx, p, m.ID, UpdateInput{FeeMinor: patch.Some(int64(0))})
	assert.True(t, apperr.IsForbidden(err), "own membership is read-only")
}

func TestRenew_ExtendsFromLaterOfTodayAndExpiry(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	p := f.Seed(t, authz.RoleMember, "Mia", "Member")

	// Clock is 2025-03-01; membership already lapsed.
	lapsedExpiry := date(2025, 1, 15)
	m, err := svc.Enroll(ctx, admin, EnrollInput{ProfileID: p, Type: domain.MembershipLocal, Cadence: domain.CadenceMonthly, StartDate: date(2024, 12, 15), ExpiryDate: &lapsedExpiry})
	require.NoError(t, err)

	r, err := svc.Renew(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipActive, r.Status)
	assert.Equal(t, date(2025, 4, 1), r.ExpiryDate)

	r, err = svc.Renew(ctx, admin, m.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2025, 5, 1), r.ExpiryDate)
}

func TestExpireDue(t *testing.T) {
	t.Parallel()
	svc, f := newService(t)
	ctx := context.Background()
	admin := f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	p := f.Seed(t, authz.RoleMember, "Mia", "Member")
	q := f.Seed(t, authz.RoleMember, "Max", "Member")

	past := date(2025, 2, 1)
	_, err := svc.Enroll(ctx, admin, EnrollInput{ProfileID: p, Type: domain.MembershipLocal, Cadence: domain.CadenceMonthly, Status: domain.MembershipActive, StartDate: date(2025, 1, 1), ExpiryDate: &past})
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, admin, EnrollInput{ProfileID: q, Type: domain.MembershipLocal, Cadence: domain.CadenceYearly, Status: domain.MembershipActive, StartDate: date(2025, 1, 1)})
	require.NoError(t, err)

	n, err := svc.ExpireDue(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.GetByProfile(ctx, admin, p)
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipExpired, got.Status)
}

func TestExpiringWithin(t *testing.T) {
	now := date(2025, 3, 1)
	m := domain.Membership{Status: domain.MembershipActive, ExpiryDate: date(2025, 3, 20)}
	assert.True(t, ExpiringWithin(m, now, 30*24*time.Hour))
	assert.False(t, ExpiringWithin(m, now, 7*24*time.Hour))

	m.Status = domain.MembershipPending
	assert.False(t, ExpiringWithin(m, now, 30*24*time.Hour))
}
