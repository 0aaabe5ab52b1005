package boardrepo

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

var ErrNotFound = errors.New("board position not found")

// Repository provides access to persisted board positions.
//
// List methods order by start date descending (undated last), then title.
type Repository interface {
	Create(ctx context.Context, p domain.BoardPosition) error
	Update(ctx context.Context, p domain.BoardPosition) error
	Get(ctx context.Context, id domain.BoardPositionID) (domain.BoardPosition, error)
	Delete(ctx context.Context, id domain.BoardPositionID) error

	ListByProfile(ctx context.Context, profileID domain.IdentityID) ([]domain.BoardPosition, error)
	ListActive(ctx context.Context) ([]domain.BoardPosition, error)
	DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error
}
