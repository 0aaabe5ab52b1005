package memberships

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/events"
	"github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

const DefaultCurrency = "USD"

type Service struct {
	repo     membershiprepo.Repository
	profiles profilerepo.Reader
	guard    *access.Guard
	clk      clockport.Clock
	events   events.Publisher
	log      *zap.Logger

	newID func() domain.MembershipID
}

func NewService(repo membershiprepo.Repository, profiles profilerepo.Reader, guard *access.Guard, clk clockport.Clock, pub events.Publisher, log *zap.Logger) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		profiles: profiles,
		guard:    guard,
		clk:      clk,
		events:   pub,
		log:      log,
		newID: func() domain.MembershipID {
			return domain.MembershipID(uuid.NewString())
		},
	}
}

func (s *Service) Enroll(ctx context.Context, actor domain.IdentityID, in EnrollInput) (domain.Membership, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionCreate, ""); err != nil {
		return domain.Membership{}, err
	}

	problems := map[string]any{}
	if in.ProfileID == "" {
		problems["profileId"] = "must be non-empty"
	}
	if !in.Type.Valid() {
		problems["type"] = "must be one of: local, national, international"
	}
	if !in.Cadence.Valid() {
		problems["paymentCadence"] = "must be one of: monthly, quarterly, yearly"
	}
	if in.FeeMinor < 0 {
		problems["fee"] = "must be zero or positive"
	}
	currency, ok := normalizeCurrency(in.Currency)
	if !ok {
		problems["currency"] = "must be a three-letter ISO 4217 code"
	}
	status := in.Status
	if status == "" {
		status = domain.MembershipPending
	}
	if !status.Valid() {
		problems["status"] = "must be one of: pending, active, expired, suspended, cancelled"
	}
	if in.StartDate.IsZero() {
		problems["startDate"] = "must be set"
	}
	if len(problems) > 0 {
		return domain.Membership{}, apperr.Validation("invalid membership", problems)
	}

	start := domain.DateOnly(in.StartDate)
	expiry := in.Cadence.Advance(start)
	if in.ExpiryDate != nil {
		expiry = domain.DateOnly(*in.ExpiryDate)
	}
	if err := domain.ValidateWindow(start, expiry); err != nil {
		return domain.Membership{}, apperr.Field("expiryDate", err.Error())
	}

	if _, err := s.profiles.Get(ctx, in.ProfileID); err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Membership{}, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return domain.Membership{}, err
	}

	number, err := s.repo.NextMemberNumber(ctx)
	if err != nil {
		return domain.Membership{}, err
	}
	now := s.clk.Now()
	m := domain.Membership{
		ID:           s.newID(),
		ProfileID:    in.ProfileID,
		Type:         in.Type,
		Cadence:      in.Cadence,
		Fee:          domain.Money{AmountMinor: in.FeeMinor, Currency: currency},
		Status:       status,
		StartDate:    start,
		ExpiryDate:   expiry,
		MemberNumber: number,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, membershiprepo.ErrAlreadyExists) {
			return domain.Membership{}, apperr.Conflict("MEMBERSHIP_ALREADY_EXISTS", "profile already holds a membership")
		}
		if errors.Is(err, membershiprepo.ErrProfileMissing) {
			return domain.Membership{}, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return domain.Membership{}, err
	}

	s.log.Info("membership created",
		zap.String("membership", string(m.ID)),
		zap.String("profile", string(m.ProfileID)),
		zap.String("memberNumber", m.MemberNumber),
	)
	s.events.Publish(ctx, domain.MembershipCreated{
		ProfileID:    m.ProfileID,
		MembershipID: m.ID,
		Type:         m.Type,
		Status:       m.Status,
		ActorID:      actor,
		At:           now,
	})
	return m, nil
}

func (s *Service) Get(ctx context.Context, actor domain.IdentityID, id domain.MembershipID) (domain.Membership, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, membershiprepo.ErrNotFound) {
			// Unknown rows are indistinguishable from unreadable ones for non-readers.
			if cerr := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionRead, ""); cerr != nil {
				return domain.Membership{}, cerr
			}
		}
		return domain.Membership{}, mapNotFound(err)
	}
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionRead, m.ProfileID); err != nil {
		return domain.Membership{}, err
	}
	return m, nil
}

// GetByProfile returns the membership held by profileID.
func (s *Service) GetByProfile(ctx context.Context, actor, profileID domain.IdentityID) (domain.Membership, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionRead, profileID); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.repo.GetByProfile(ctx, profileID)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	return m, nil
}

func (s *Service) GetMine(ctx context.Context, actor domain.IdentityID) (domain.Membership, error) {
	return s.GetByProfile(ctx, actor, actor)
}

func (s *Service) List(ctx context.Context, actor domain.IdentityID, in ListInput) ([]domain.Membership, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	f := membershiprepo.Filter{}
	if in.Status != "" {
		f.Status = domain.MembershipStatus(strings.ToLower(in.Status))
		if !f.Status.Valid() {
			return nil, apperr.Field("status", "must be one of: pending, active, expired, suspended, cancelled")
		}
	}
	if in.Type != "" {
		f.Type = domain.MembershipType(strings.ToLower(in.Type))
		if !f.Type.Valid() {
			return nil, apperr.Field("type", "must be one of: local, national, international")
		}
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, actor domain.IdentityID, id domain.MembershipID, in UpdateInput) (domain.Membership, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionUpdate, ""); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	before := m

	if in.Type.IsSpecified() {
		if in.Type.IsNull() || !in.Type.Value().Valid() {
			return domain.Membership{}, apperr.Field("type", "must be one of: local, national, international")
		}
		m.Type = in.Type.Value()
	}
	if in.Cadence.IsSpecified() {
		if in.Cadence.IsNull() || !in.Cadence.Value().Valid() {
			return domain.Membership{}, apperr.Field("paymentCadence", "must be one of: monthly, quarterly, yearly")
		}
		m.Cadence = in.Cadence.Value()
	}
	if in.FeeMinor.IsSpecified() {
		if in.FeeMinor.IsNull() || in.FeeMinor.Value() < 0 {
			return domain.Membership{}, apperr.Field("fee", "must be zero or positive")
		}
		m.Fee.AmountMinor = in.FeeMinor.Value()
	}
	if in.Currency.IsSpecified() {
		c, ok := normalizeCurrency(in.Currency.Value())
		if in.Currency.IsNull() || !ok {
			return domain.Membership{}, apperr.Field("currency", "must be a three-letter ISO 4217 code")
		}
		m.Fee.Currency = c
	}
	if in.Status.IsSpecified() {
		if in.Status.IsNull() || !in.Status.Value().Valid() {
			return domain.Membership{}, apperr.Field("status", "must be one of: pending, active, expired, suspended, cancelled")
		}
		m.Status = in.Status.Value()
	}
	if in.StartDate.IsSpecified() {
		if in.StartDate.IsNull() {
			return domain.Membership{}, apperr.Field("startDate", "cannot be null")
		}
		m.StartDate = domain.DateOnly(in.StartDate.Value())
	}
	if in.ExpiryDate.IsSpecified() {
		if in.ExpiryDate.IsNull() {
			return domain.Membership{}, apperr.Field("expiryDate", "cannot be null")
		}
		m.ExpiryDate = domain.DateOnly(in.ExpiryDate.Value())
	}
	if err := domain.ValidateWindow(m.StartDate, m.ExpiryDate); err != nil {
		return domain.Membership{}, apperr.Field("expiryDate", err.Error())
	}

	return s.save(ctx, actor, before, m)
}

// Renew records a billing event: the membership becomes active and its expiry moves one
// billing period past the later of today and the current expiry.
func (s *Service) Renew(ctx context.Context, actor domain.IdentityID, id domain.MembershipID) (domain.Membership, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionUpdate, ""); err != nil {
		return domain.Membership{}, err
	}
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	before := m

	from := domain.DateOnly(s.clk.Now())
	if m.ExpiryDate.After(from) {
		from = m.ExpiryDate
	}
	m.ExpiryDate = m.Cadence.Advance(from)
	m.Status = domain.MembershipActive
	return s.save(ctx, actor, before, m)
}

// ExpireDue marks active memberships whose expiry date has passed as expired.
func (s *Service) ExpireDue(ctx context.Context, actor domain.IdentityID) (int, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMemberships, authz.ActionUpdate, ""); err != nil {
		return 0, err
	}
	active, err := s.repo.List(ctx, membershiprepo.Filter{Status: domain.MembershipActive})
	if err != nil {
		return 0, err
	}
	today := domain.DateOnly(s.clk.Now())
	n := 0
	for _, m := range active {
		if !m.ExpiryDate.Before(today) {
			continue
		}
		next := m
		next.Status = domain.MembershipExpired
		if _, err := s.save(ctx, actor, m, next); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) save(ctx context.Context, actor domain.IdentityID, before, m domain.Membership) (domain.Membership, error) {
	now := s.clk.Now()
	m.UpdatedAt = now
	if err := s.repo.Update(ctx, m); err != nil {
		return domain.Membership{}, mapNotFound(err)
	}
	if m.Status != before.Status {
		s.events.Publish(ctx, domain.MembershipStatusChanged{
			ProfileID:    m.ProfileID,
			MembershipID: m.ID,
			From:         before.Status,
			To:           m.Status,
			ActorID:      actor,
			At:           now,
		})
	}
	return m, nil
}

// ExpiringWithin reports whether m is active and expires within d of now.
func ExpiringWithin(m domain.Membership, now time.Time, d time.Duration) bool {
	if m.Status != domain.MembershipActive {
		return false
	}
	today := domain.DateOnly(now)
	return !m.ExpiryDate.Before(today) && !m.ExpiryDate.After(today.Add(d))
}

func normalizeCurrency(c string) (string, bool) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return DefaultCurrency, true
	}
	if len(c) != 3 {
		return "", false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return c, true
}

func mapNotFound(err error) error {
	if errors.Is(err, membershiprepo.ErrNotFound) {
		return apperr.NotFound("MEMBERSHIP_NOT_FOUND", "membership not found")
	}
	return err
}
