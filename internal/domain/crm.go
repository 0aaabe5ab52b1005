package domain

import "time"

// ActivityKind classifies a timeline entry on a profile.
type ActivityKind string

const (
	ActivityRoleChanged             ActivityKind = "role_changed"
	ActivityStatusChanged           ActivityKind = "status_changed"
	ActivityMembershipStatusChanged ActivityKind = "membership_status_changed"
	ActivityMembershipCreated       ActivityKind = "membership_created"
	ActivityNote                    ActivityKind = "note"
	ActivityManual                  ActivityKind = "manual"
)

// Activity is an entry in a profile's CRM timeline. Most are emitted from domain events.
type Activity struct {
	ID          ActivityID
	ProfileID   IdentityID
	Kind        ActivityKind
	Description string
	Metadata    map[string]string
	ActorID     *IdentityID
	CreatedAt   time.Time
}

type InteractionChannel string

const (
	InteractionCall     InteractionChannel = "call"
	InteractionEmail    InteractionChannel = "email"
	InteractionMeeting  InteractionChannel = "meeting"
	InteractionWhatsApp InteractionChannel = "whatsapp"
	InteractionOther    InteractionChannel = "other"
)

func (c InteractionChannel) Valid() bool {
	switch c {
	case InteractionCall, InteractionEmail, InteractionMeeting, InteractionWhatsApp, InteractionOther:
		return true
	}
	return false
}

// Interaction records a touchpoint with a profile.
type Interaction struct {
	ID         InteractionID
	ProfileID  IdentityID
	Channel    InteractionChannel
	Summary    string
	OccurredAt time.Time
	ActorID    IdentityID
	CreatedAt  time.Time
}

// Note is a free-text note on a profile. Private notes are visible only to their author.
type Note struct {
	ID        NoteID
	ProfileID IdentityID
	AuthorID  IdentityID
	Body      string
	IsPrivate bool
	CreatedAt time.Time
}

// VisibleTo reports whether viewer may see the note.
func (n Note) VisibleTo(viewer IdentityID) bool {
	return !n.IsPrivate || n.AuthorID == viewer
}

// Tag labels a profile. Name is unique per profile.
type Tag struct {
	ProfileID IdentityID
	Name      string
	Color     *string
	CreatedAt time.Time
}

// FollowUp is a reminder to act on a profile.
type FollowUp struct {
	ID          FollowUpID
	ProfileID   IdentityID
	AssigneeID  *IdentityID
	Title       string
	DueAt       time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}

func (f FollowUp) Done() bool { return f.CompletedAt != nil }

// Overdue reports whether the follow-up is open and past due at now.
func (f FollowUp) Overdue(now time.Time) bool {
	return !f.Done() && now.After(f.DueAt)
}
