package boardpositions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/patch"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

type CreateInput struct {
	ProfileID domain.IdentityID
	Title     string
	Level     domain.PositionLevel
	// IsActive defaults to true.
	IsActive  *bool
	StartDate *time.Time
	EndDate   *time.Time
}

type UpdateInput struct {
	Title     patch.Optional[string]
	Level     patch.Optional[domain.PositionLevel]
	IsActive  patch.Optional[bool]
	StartDate patch.Optional[time.Time]
	EndDate   patch.Optional[time.Time]
}

// Service manages board positions. Overlapping active positions are allowed.
type Service struct {
	repo     boardrepo.Repository
	profiles profilerepo.Reader
	guard    *access.Guard
	clk      clockport.Clock

	newID func() domain.BoardPositionID
}

func NewService(repo boardrepo.Repository, profiles profilerepo.Reader, guard *access.Guard, clk clockport.Clock) *Service {
	return &Service{
		repo:     repo,
		profiles: profiles,
		guard:    guard,
		clk:      clk,
		newID: func() domain.BoardPositionID {
			return domain.BoardPositionID(uuid.NewString())
		},
	}
}

func (s *Service) Create(ctx context.Context, actor domain.IdentityID, in CreateInput) (domain.BoardPosition, error) {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionCreate, ""); err != nil {
		return domain.BoardPosition{}, err
	}
	title := domain.NormalizeHumanName(in.Title)
	problems := map[string]any{}
	if in.ProfileID == "" {
		problems["profileId"] = "must be non-empty"
	}
	if title == "" {
		problems["title"] = "must be non-empty"
	}
	if !in.Level.Valid() {
		problems["level"] = "must be one of: local, national, international"
	}
	if len(problems) > 0 {
		return domain.BoardPosition{}, apperr.Validation("invalid board position", problems)
	}
	if _, err := s.profiles.Get(ctx, in.ProfileID); err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return domain.BoardPosition{}, apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return domain.BoardPosition{}, err
	}

	now := s.clk.Now()
	p := domain.BoardPosition{
		ID:        s.newID(),
		ProfileID: in.ProfileID,
		Title:     title,
		Level:     in.Level,
		IsActive:  in.IsActive == nil || *in.IsActive,
		StartDate: dateOnlyPtr(in.StartDate),
		EndDate:   dateOnlyPtr(in.EndDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateDates(p); err != nil {
		return domain.BoardPosition{}, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return domain.BoardPosition{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, actor domain.IdentityID, id domain.BoardPositionID) (domain.BoardPosition, error) {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionRead, ""); err != nil {
		return domain.BoardPosition{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.BoardPosition{}, mapNotFound(err)
	}
	return p, nil
}

func (s *Service) ListByProfile(ctx context.Context, actor, profileID domain.IdentityID) ([]domain.BoardPosition, error) {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	return s.repo.ListByProfile(ctx, profileID)
}

// ListCurrent returns the active positions across the chapter: the current board.
func (s *Service) ListCurrent(ctx context.Context, actor domain.IdentityID) ([]domain.BoardPosition, error) {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	return s.repo.ListActive(ctx)
}

func (s *Service) Update(ctx context.Context, actor domain.IdentityID, id domain.BoardPositionID, in UpdateInput) (domain.BoardPosition, error) {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionUpdate, ""); err != nil {
		return domain.BoardPosition{}, err
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.BoardPosition{}, mapNotFound(err)
	}

	if in.Title.IsSpecified() {
		title := domain.NormalizeHumanName(in.Title.Value())
		if in.Title.IsNull() || title == "" {
			return domain.BoardPosition{}, apperr.Field("title", "must be non-empty")
		}
		p.Title = title
	}
	if in.Level.IsSpecified() {
		if in.Level.IsNull() || !in.Level.Value().Valid() {
			return domain.BoardPosition{}, apperr.Field("level", "must be one of: local, national, international")
		}
		p.Level = in.Level.Value()
	}
	if in.IsActive.IsSpecified() && !in.IsActive.IsNull() {
		p.IsActive = in.IsActive.Value()
	}
	patch.ApplyPtr(&p.StartDate, in.StartDate)
	patch.ApplyPtr(&p.EndDate, in.EndDate)
	p.StartDate = dateOnlyPtr(p.StartDate)
	p.EndDate = dateOnlyPtr(p.EndDate)
	if err := validateDates(p); err != nil {
		return domain.BoardPosition{}, err
	}

	p.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return domain.BoardPosition{}, mapNotFound(err)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.IdentityID, id domain.BoardPositionID) error {
	if err := s.guard.Check(ctx, actor, authz.TableBoardPositions, authz.ActionDelete, ""); err != nil {
		return err
	}
	return mapNotFound(s.repo.Delete(ctx, id))
}

func validateDates(p domain.BoardPosition) error {
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return apperr.Field("endDate", "must not be before startDate")
	}
	return nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOnly(*t)
	return &d
}

func mapNotFound(err error) error {
	if errors.Is(err, boardrepo.ErrNotFound) {
		return apperr.NotFound("BOARD_POSITION_NOT_FOUND", "board position not found")
	}
	return err
}

