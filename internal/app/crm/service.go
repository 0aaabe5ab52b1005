package crm

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
	"github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

const maxTagLen = 40

type Service struct {
	repo     crmrepo.Repository
	profiles profilerepo.Reader
	guard    *access.Guard
	clk      clockport.Clock
	log      *zap.Logger
}

func NewService(repo crmrepo.Repository, profiles profilerepo.Reader, guard *access.Guard, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, profiles: profiles, guard: guard, clk: clk, log: log}
}

// Activities

func (s *Service) ListActivities(ctx context.Context, actor, profileID domain.IdentityID, limit int) ([]domain.Activity, error) {
	if err := s.guard.Check(ctx, actor, authz.TableActivities, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	return s.repo.ListActivities(ctx, profileID, limit)
}

// LogActivity adds a manual timeline entry.
func (s *Service) LogActivity(ctx context.Context, actor, profileID domain.IdentityID, description string) (domain.Activity, error) {
	if err := s.guard.Check(ctx, actor, authz.TableActivities, authz.ActionCreate, ""); err != nil {
		return domain.Activity{}, err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return domain.Activity{}, apperr.Field("description", "must be non-empty")
	}
	if err := s.ensureProfile(ctx, profileID); err != nil {
		return domain.Activity{}, err
	}
	a := domain.Activity{
		ID:          domain.ActivityID(uuid.NewString()),
		ProfileID:   profileID,
		Kind:        domain.ActivityManual,
		Description: description,
		ActorID:     actorPtr(actor),
		CreatedAt:   s.clk.Now(),
	}
	if err := s.repo.AddActivity(ctx, a); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

// Interactions

type InteractionInput struct {
	ProfileID  domain.IdentityID
	Channel    domain.InteractionChannel
	Summary    string
	OccurredAt time.Time
}

func (s *Service) AddInteraction(ctx context.Context, actor domain.IdentityID, in InteractionInput) (domain.Interaction, error) {
	if err := s.guard.Check(ctx, actor, authz.TableInteractions, authz.ActionCreate, ""); err != nil {
		return domain.Interaction{}, err
	}
	problems := map[string]any{}
	if !in.Channel.Valid() {
		problems["channel"] = "must be one of: call, email, meeting, whatsapp, other"
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		problems["summary"] = "must be non-empty"
	}
	now := s.clk.Now()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	if occurred.After(now) {
		problems["occurredAt"] = "must not be in the future"
	}
	if len(problems) > 0 {
		return domain.Interaction{}, apperr.Validation("invalid interaction", problems)
	}
	if err := s.ensureProfile(ctx, in.ProfileID); err != nil {
		return domain.Interaction{}, err
	}
	i := domain.Interaction{
		ID:         domain.InteractionID(uuid.NewString()),
		ProfileID:  in.ProfileID,
		Channel:    in.Channel,
		Summary:    summary,
		OccurredAt: occurred,
		ActorID:    actor,
		CreatedAt:  now,
	}
	if err := s.repo.AddInteraction(ctx, i); err != nil {
		return domain.Interaction{}, err
	}
	return i, nil
}

func (s *Service) ListInteractions(ctx context.Context, actor, profileID domain.IdentityID) ([]domain.Interaction, error) {
	if err := s.guard.Check(ctx, actor, authz.TableInteractions, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	return s.repo.ListInteractions(ctx, profileID)
}

// Notes

func (s *Service) AddNote(ctx context.Context, actor, profileID domain.IdentityID, body string, private bool) (domain.Note, error) {
	if err := s.guard.Check(ctx, actor, authz.TableNotes, authz.ActionCreate, ""); err != nil {
		return domain.Note{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Note{}, apperr.Field("body", "must be non-empty")
	}
	if err := s.ensureProfile(ctx, profileID); err != nil {
		return domain.Note{}, err
	}
	now := s.clk.Now()
	n := domain.Note{
		ID:        domain.NoteID(uuid.NewString()),
		ProfileID: profileID,
		AuthorID:  actor,
		Body:      body,
		IsPrivate: private,
		CreatedAt: now,
	}
	if err := s.repo.AddNote(ctx, n); err != nil {
		return domain.Note{}, err
	}
	if !private {
		err := s.repo.AddActivity(ctx, domain.Activity{
			ID:          domain.ActivityID(uuid.NewString()),
			ProfileID:   profileID,
			Kind:        domain.ActivityNote,
			Description: "Note added",
			Metadata:    map[string]string{"noteId": string(n.ID)},
			ActorID:     actorPtr(actor),
			CreatedAt:   now,
		})
		// The note is already stored; failing here would make a retry duplicate it.
		if err != nil {
			s.log.Warn("recording note activity failed",
				zap.String("note", string(n.ID)),
				zap.String("profile", string(profileID)),
				zap.Error(err),
			)
		}
	}
	return n, nil
}

// ListNotes returns the notes on a profile that actor may see: shared notes plus the
// actor's own private ones.
func (s *Service) ListNotes(ctx context.Context, actor, profileID domain.IdentityID) ([]domain.Note, error) {
	if err := s.guard.Check(ctx, actor, authz.TableNotes, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	all, err := s.repo.ListNotes(ctx, profileID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Note, 0, len(all))
	for _, n := range all {
		if n.VisibleTo(actor) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Service) DeleteNote(ctx context.Context, actor domain.IdentityID, id domain.NoteID) error {
	if err := s.guard.Check(ctx, actor, authz.TableNotes, authz.ActionDelete, ""); err != nil {
		return err
	}
	n, err := s.repo.GetNote(ctx, id)
	if err != nil {
		return mapNotFound(err, "NOTE_NOT_FOUND")
	}
	if !n.VisibleTo(actor) {
		return apperr.NotFound("NOTE_NOT_FOUND", "not found")
	}
	return mapNotFound(s.repo.DeleteNote(ctx, id), "NOTE_NOT_FOUND")
}

// Tags

func (s *Service) AddTag(ctx context.Context, actor, profileID domain.IdentityID, name string, color *string) (domain.Tag, error) {
	if err := s.guard.Check(ctx, actor, authz.TableTags, authz.ActionCreate, ""); err != nil {
		return domain.Tag{}, err
	}
	name = domain.NormalizeHumanName(name)
	if name == "" || len([]rune(name)) > maxTagLen {
		return domain.Tag{}, apperr.Field("name", "must be 1 to 40 characters")
	}
	if color != nil && !validColor(*color) {
		return domain.Tag{}, apperr.Field("color", "must be a hex color like #1a2b3c")
	}
	if err := s.ensureProfile(ctx, profileID); err != nil {
		return domain.Tag{}, err
	}
	t := domain.Tag{ProfileID: profileID, Name: name, Color: color, CreatedAt: s.clk.Now()}
	if err := s.repo.AddTag(ctx, t); err != nil {
		if errors.Is(err, crmrepo.ErrTagExists) {
			return domain.Tag{}, apperr.Conflict("TAG_ALREADY_APPLIED", "tag already applied to profile")
		}
		return domain.Tag{}, err
	}
	return t, nil
}

func (s *Service) ListTags(ctx context.Context, actor, profileID domain.IdentityID) ([]domain.Tag, error) {
	if err := s.guard.Check(ctx, actor, authz.TableTags, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	return s.repo.ListTags(ctx, profileID)
}

func (s *Service) RemoveTag(ctx context.Context, actor, profileID domain.IdentityID, name string) error {
	if err := s.guard.Check(ctx, actor, authz.TableTags, authz.ActionDelete, ""); err != nil {
		return err
	}
	return mapNotFound(s.repo.RemoveTag(ctx, profileID, domain.NormalizeHumanName(name)), "TAG_NOT_FOUND")
}

// Follow-ups

type FollowUpInput struct {
	ProfileID  domain.IdentityID
	AssigneeID *domain.IdentityID
	Title      string
	DueAt      time.Time
}

func (s *Service) AddFollowUp(ctx context.Context, actor domain.IdentityID, in FollowUpInput) (domain.FollowUp, error) {
	if err := s.guard.Check(ctx, actor, authz.TableFollowUps, authz.ActionCreate, ""); err != nil {
		return domain.FollowUp{}, err
	}
	title := strings.TrimSpace(in.Title)
	problems := map[string]any{}
	if title == "" {
		problems["title"] = "must be non-empty"
	}
	if in.DueAt.IsZero() {
		problems["dueAt"] = "must be set"
	}
	if len(problems) > 0 {
		return domain.FollowUp{}, apperr.Validation("invalid follow-up", problems)
	}
	if err := s.ensureProfile(ctx, in.ProfileID); err != nil {
		return domain.FollowUp{}, err
	}
	if in.AssigneeID != nil {
		if err := s.ensureProfile(ctx, *in.AssigneeID); err != nil {
			return domain.FollowUp{}, err
		}
	}
	f := domain.FollowUp{
		ID:         domain.FollowUpID(uuid.NewString()),
		ProfileID:  in.ProfileID,
		AssigneeID: in.AssigneeID,
		Title:      title,
		DueAt:      in.DueAt.UTC(),
		CreatedAt:  s.clk.Now(),
	}
	if err := s.repo.AddFollowUp(ctx, f); err != nil {
		return domain.FollowUp{}, err
	}
	return f, nil
}

// CompleteFollowUp marks a follow-up done. Completing twice keeps the first completion time.
func (s *Service) CompleteFollowUp(ctx context.Context, actor domain.IdentityID, id domain.FollowUpID) (domain.FollowUp, error) {
	if err := s.guard.Check(ctx, actor, authz.TableFollowUps, authz.ActionUpdate, ""); err != nil {
		return domain.FollowUp{}, err
	}
	f, err := s.repo.GetFollowUp(ctx, id)
	if err != nil {
		return domain.FollowUp{}, mapNotFound(err, "FOLLOW_UP_NOT_FOUND")
	}
	if f.Done() {
		return f, nil
	}
	now := s.clk.Now()
	f.CompletedAt = &now
	if err := s.repo.UpdateFollowUp(ctx, f); err != nil {
		return domain.FollowUp{}, mapNotFound(err, "FOLLOW_UP_NOT_FOUND")
	}
	return f, nil
}

type FollowUpQuery struct {
	ProfileID  *domain.IdentityID
	AssigneeID *domain.IdentityID
	OpenOnly   bool
	// OverdueOnly lists open follow-ups due before now.
	OverdueOnly bool
}

func (s *Service) ListFollowUps(ctx context.Context, actor domain.IdentityID, q FollowUpQuery) ([]domain.FollowUp, error) {
	if err := s.guard.Check(ctx, actor, authz.TableFollowUps, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	f := crmrepo.FollowUpFilter{ProfileID: q.ProfileID, AssigneeID: q.AssigneeID, OpenOnly: q.OpenOnly}
	if q.OverdueOnly {
		now := s.clk.Now()
		f.OpenOnly = true
		f.DueBefore = &now
	}
	return s.repo.ListFollowUps(ctx, f)
}

func (s *Service) ensureProfile(ctx context.Context, id domain.IdentityID) error {
	if id == "" {
		return apperr.Field("profileId", "must be non-empty")
	}
	if _, err := s.profiles.Get(ctx, id); err != nil {
		if errors.Is(err, profilerepo.ErrNotFound) {
			return apperr.NotFound("PROFILE_NOT_FOUND", "profile not found")
		}
		return err
	}
	return nil
}

func validColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range strings.ToLower(c[1:]) {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func mapNotFound(err error, code string) error {
	if errors.Is(err, crmrepo.ErrNotFound) {
		return apperr.NotFound(code, "not found")
	}
	return err
}
