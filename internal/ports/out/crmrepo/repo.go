package crmrepo

import (
	"context"
	"errors"
	"time"

	"github.com/chapter-connect/membership-api/internal/domain"
)

var (
	ErrNotFound  = errors.New("crm record not found")
	ErrTagExists = errors.New("tag already applied to profile")
)

// FollowUpFilter narrows follow-up listings. Zero values match everything.
type FollowUpFilter struct {
	ProfileID  *domain.IdentityID
	AssigneeID *domain.IdentityID
	OpenOnly   bool
	DueBefore  *time.Time
}

// Repository persists CRM records attached to profiles.
//
// Timeline listings (activities, interactions, notes) are newest first.
// Tags are ordered by name; follow-ups by due date.
type Repository interface {
	AddActivity(ctx context.Context, a domain.Activity) error
	ListActivities(ctx context.Context, profileID domain.IdentityID, limit int) ([]domain.Activity, error)

	AddInteraction(ctx context.Context, i domain.Interaction) error
	ListInteractions(ctx context.Context, profileID domain.IdentityID) ([]domain.Interaction, error)

	AddNote(ctx context.Context, n domain.Note) error
	GetNote(ctx context.Context, id domain.NoteID) (domain.Note, error)
	ListNotes(ctx context.Context, profileID domain.IdentityID) ([]domain.Note, error)
	DeleteNote(ctx context.Context, id domain.NoteID) error

	AddTag(ctx context.Context, t domain.Tag) error
	ListTags(ctx context.Context, profileID domain.IdentityID) ([]domain.Tag, error)
	RemoveTag(ctx context.Context, profileID domain.IdentityID, name string) error

	AddFollowUp(ctx context.Context, f domain.FollowUp) error
	GetFollowUp(ctx context.Context, id domain.FollowUpID) (domain.FollowUp, error)
	UpdateFollowUp(ctx context.Context, f domain.FollowUp) error
	ListFollowUps(ctx context.Context, f FollowUpFilter) ([]domain.FollowUp, error)

	// DeleteByProfile removes every CRM record attached to a profile.
	DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error
}
