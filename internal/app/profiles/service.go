package profiles

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/events"
	"github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

const DefaultLanguage = "en"

// Deps are the collaborators of Service. Memberships, Board, CRM and Logs are only
// used by the identity deletion cascade.
type Deps struct {
	Profiles    profilerepo.Repository
	Memberships membershiprepo.Repository
	Board       boardrepo.Repository
	CRM         crmrepo.Repository
	Logs        messagelogrepo.Repository

	Guard  *access.Guard
	Clock  clockport.Clock
	Events events.Publisher
	Log    *zap.Logger
}

type Service struct {
	repo        profilerepo.Repository
	memberships membershiprepo.Repository
	board       boardrepo.Repository
	crm         crmrepo.Repository
	logs        messagelogrepo.Repository

	guard  *access.Guard
	clk    clockport.Clock
	events events.Publisher
	log    *zap.Logger

	// MaxListLimit bounds list result size.
	MaxListLimit int
}

func NewService(d Deps) *Service {
	s := &Service{
		repo:         d.Profiles,
		memberships:  d.Memberships,
		board:        d.Board,
		crm:          d.CRM,
		logs:         d.Logs,
		guard:        d.Guard,
		clk:          d.Clock,
		events:       d.Events,
		log:          d.Log,
		MaxListLimit: 200,
	}
	if s.events == nil {
		s.events = events.Discard{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// EnsureProvisioned returns the identity's profile, creating it with the default role and
// status on first sight. It runs on behalf of the platform, not the actor, so it is not guarded.
func (s *Service) EnsureProvisioned(ctx context.Context, id domain.IdentityID, in ProvisionInput) (domain.Profile, bool, error) {
	if id == "" {
		return domain.Profile{}, false, &apperr.Error{Status: 401, Code: apperr.CodeUnauthorized, Message: "authentication required"}
	}
	p, err := s.repo.Get(ctx, id)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, profilerepo.ErrNotFound) {
		return domain.Profile{}, false, err
	}

	email := strings.TrimSpace(in.Email)
	if email != "" && validateEmail(email) != nil {
		email = ""
	}
	now := s.clk.Now()
	p = domain.Profile{
		ID:          id,
		Role:        domain.DefaultProfileRole,
		Status:      domain.DefaultProfileStatus,
		FirstName:   domain.NormalizeHumanName(in.FirstName),
		LastName:    domain.NormalizeHumanName(in.LastName),
		Email:       email,
		Preferences: domain.Preferences{Language: DefaultLanguage, EmailOptIn: true},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.repo.Create(ctx, p)
	if errors.Is(err, profilerepo.ErrEmailTaken) {
		s.log.Warn("provisioning profile without email: address already in use", zap.String("identity", string(id)))
		p.Email = ""
		err = s.repo.Create(ctx, p)
	}
	if errors.Is(err, profilerepo.ErrAlreadyExists) {
		// Lost a race with a concurrent first request.
		got, gerr := s.repo.Get(ctx, id)
		return got, false, gerr
	}
	if err != nil {
		return domain.Profile{}, false, err
	}
	s.log.Info("profile provisioned", zap.String("identity", string(id)))
	return p, true, nil
}

func (s *Service) GetMine(ctx context.Context, actor domain.IdentityID) (domain.Profile, error) {
	if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionRead, actor); err != nil {
		return domain.Profile{}, err
	}
	p, err := s.repo.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.Profile{}, notProvisioned()
		}
		return domain.Profile{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, actor, id domain.IdentityID) (domain.Profile, error) {
	if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionRead, id); err != nil {
		return domain.Profile{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, actor domain.IdentityID, in ListInput) ([]domain.Profile, error) {
	if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	f := profilerepo.Filter{Query: strings.TrimSpace(in.Query), Limit: in.Limit}
	if in.Role != "" {
		r, ok := authz.ParseRole(in.Role)
		if !ok {
			return nil, apperr.Field("role", "must be one of: admin, member, prospective, guest")
		}
		f.Role = r
	}
	if in.Status != "" {
		st := domain.ProfileStatus(strings.ToLower(strings.TrimSpace(in.Status)))
		if !st.Valid() {
			return nil, apperr.Field("status", "must be one of: active, inactive, suspended, pending")
		}
		f.Status = st
	}
	if f.Limit < 0 {
		return nil, apperr.Field("limit", "must be positive")
	}
	if f.Limit == 0 || f.Limit > s.MaxListLimit {
		f.Limit = s.MaxListLimit
	}
	return s.repo.List(ctx, f)
}

func (s *Service) UpdateMine(ctx context.Context, actor domain.IdentityID, in UpdateInput) (domain.Profile, error) {
	p, err := s.Update(ctx, actor, actor, in)
	if apperr.HasCode(err, "PROFILE_NOT_FOUND") {
		return domain.Profile{}, notProvisioned()
	}
	return p, err
}

func (s *Service) Update(ctx context.Context, actor, id domain.IdentityID, in UpdateInput) (domain.Profile, error) {
	if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionUpdate, id); err != nil {
		return domain.Profile{}, err
	}
	if in.Role.IsSpecified() {
		if err := s.guard.RequireAdmin(ctx, actor, "role"); err != nil {
			return domain.Profile{}, err
		}
	}
	if in.Status.IsSpecified() {
		if err := s.guard.RequireAdmin(ctx, actor, "status"); err != nil {
			return domain.Profile{}, err
		}
	}

	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Profile{}, mapNotFound(err)
	}
	before := p

	if err := applyUpdate(&p, in); err != nil {
		return domain.Profile{}, err
	}

	now := s.clk.Now()
	p.UpdatedAt = now
	if err := s.repo.Update(ctx, p); err != nil {
		switch {
		case errors.Is(err, profilerepo.ErrEmailTaken):
			return domain.Profile{}, apperr.Conflict("EMAIL_ALREADY_IN_USE", "email address is already in use")
		case errors.Is(err, profilerepo.ErrNotFound):
			return domain.Profile{}, mapNotFound(err)
		}
		return domain.Profile{}, err
	}

	var evs []domain.Event
	if p.Role != before.Role {
		evs = append(evs, domain.RoleChanged{ProfileID: id, From: before.Role, To: p.Role, ActorID: actor, At: now})
	}
	if p.Status != before.Status {
		evs = append(evs, domain.StatusChanged{ProfileID: id, From: before.Status, To: p.Status, ActorID: actor, At: now})
	}
	if len(evs) > 0 {
		s.events.Publish(ctx, evs...)
	}
	return p, nil
}

func applyUpdate(p *domain.Profile, in UpdateInput) error {
	if in.FirstName.IsSpecified() {
		v, err := requiredName("firstName", in.FirstName.IsNull(), in.FirstName.Value())
		if err != nil {
			return err
		}
		p.FirstName = v
	}
	if in.LastName.IsSpecified() {
		v, err := requiredName("lastName", in.LastName.IsNull(), in.LastName.Value())
		if err != nil {
			return err
		}
		p.LastName = v
	}
	if in.Email.IsSpecified() {
		if in.Email.IsNull() {
			return apperr.Field("email", "cannot be null")
		}
		email := strings.TrimSpace(in.Email.Value())
		if err := validateEmail(email); err != nil {
			return apperr.Field("email", err.Error())
		}
		p.Email = email
	}
	if in.Phone.IsSpecified() {
		if in.Phone.IsNull() || strings.TrimSpace(in.Phone.Value()) == "" {
			p.Phone = nil
		} else {
			phone := strings.TrimSpace(in.Phone.Value())
			if _, err := domain.NormalizePhone(phone); err != nil {
				return apperr.Field("phone", "must contain at least 10 digits")
			}
			p.Phone = &phone
		}
	}
	if in.Language.IsSpecified() {
		lang := strings.ToLower(strings.TrimSpace(in.Language.Value()))
		if in.Language.IsNull() || lang == "" {
			lang = DefaultLanguage
		}
		p.Preferences.Language = lang
	}
	if in.EmailOptIn.IsSpecified() && !in.EmailOptIn.IsNull() {
		p.Preferences.EmailOptIn = in.EmailOptIn.Value()
	}
	if in.WhatsAppOptIn.IsSpecified() && !in.WhatsAppOptIn.IsNull() {
		p.Preferences.WhatsAppOptIn = in.WhatsAppOptIn.Value()
	}
	if in.Role.IsSpecified() {
		r, ok := authz.ParseRole(string(in.Role.Value()))
		if in.Role.IsNull() || !ok {
			return apperr.Field("role", "must be one of: admin, member, prospective, guest")
		}
		p.Role = r
	}
	if in.Status.IsSpecified() {
		st := in.Status.Value()
		if in.Status.IsNull() || !st.Valid() {
			return apperr.Field("status", "must be one of: active, inactive, suspended, pending")
		}
		p.Status = st
	}
	return nil
}

// Delete removes an identity's profile and everything attached to it. Message logs are
// kept with the recipient detached.
//
// The profile row goes first. Postgres cascades to the child tables in that same
// statement; the sweeps below only matter for stores without foreign keys, and a sweep
// failure leaves orphans rather than a profile stripped of its membership.
func (s *Service) Delete(ctx context.Context, actor, id domain.IdentityID) error {
	if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionDelete, id); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return mapNotFound(err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.log.Info("profile deleted", zap.String("identity", string(id)), zap.String("actor", string(actor)))
	s.events.Publish(ctx, domain.ProfileDeleted{ProfileID: id, ActorID: actor, At: s.clk.Now()})

	for _, sw := range s.sweeps() {
		if err := sw.run(ctx, id); err != nil {
			s.log.Error("profile cascade incomplete",
				zap.String("identity", string(id)),
				zap.String("store", sw.name),
				zap.Error(err),
			)
		}
	}
	return nil
}

type sweep struct {
	name string
	run  func(context.Context, domain.IdentityID) error
}

func (s *Service) sweeps() []sweep {
	var out []sweep
	if s.memberships != nil {
		out = append(out, sweep{"memberships", s.memberships.DeleteByProfile})
	}
	if s.board != nil {
		out = append(out, sweep{"board_positions", s.board.DeleteByProfile})
	}
	if s.crm != nil {
		out = append(out, sweep{"crm", s.crm.DeleteByProfile})
	}
	if s.logs != nil {
		out = append(out, sweep{"message_logs", s.logs.DetachRecipient})
	}
	return out
}

func requiredName(field string, isNull bool, v string) (string, error) {
	if isNull {
		return "", apperr.Field(field, "cannot be null")
	}
	n := domain.NormalizeHumanName(v)
	if n == "" {
		return "", apperr.Field(field, "must be non-empty")
	}
	return n, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func notProvisioned() *apperr.Error {
	return apperr.NotFound(apperr.CodeNotProvisioned, "No profile exists for the authenticated identity.")
}

func mapNotFound(err error) error {
	if errors.Is(err, profilerepo.ErrNotFound) {
		return apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
	}
	return err
}
