package domain

import "time"

// PositionLevel is the organizational level a board position belongs to.
type PositionLevel string

const (
	LevelLocal         PositionLevel = "local"
	LevelNational      PositionLevel = "national"
	LevelInternational PositionLevel = "international"
)

func (l PositionLevel) Valid() bool {
	switch l {
	case LevelLocal, LevelNational, LevelInternational:
		return true
	}
	return false
}

// BoardPosition is a current or historical position held by a profile.
// No overlap rule is enforced between active positions.
type BoardPosition struct {
	ID        BoardPositionID
	ProfileID IdentityID

	Title     string
	Level     PositionLevel
	IsActive  bool
	StartDate *time.Time
	EndDate   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
