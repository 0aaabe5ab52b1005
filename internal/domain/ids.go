package domain

// IdentityID is the authenticated principal extracted from JWT claims (typically "sub").
// A Profile shares its identity's id.
// We model it as an opaque identifier: its format is controlled by the IdP.
type IdentityID string

// MembershipID is an internal identifier for a membership record.
type MembershipID string

// BoardPositionID is an internal identifier for a board position.
type BoardPositionID string

// TemplateID is an internal identifier for a message template.
type TemplateID string

// MessageLogID is an internal identifier for a message log entry.
type MessageLogID string

type ActivityID string

type InteractionID string

type NoteID string

type FollowUpID string
