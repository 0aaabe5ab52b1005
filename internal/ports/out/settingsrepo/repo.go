package settingsrepo

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

// ErrNotConfigured indicates the settings singleton has never been saved.
var ErrNotConfigured = errors.New("organization settings not configured")

type Repository interface {
	Get(ctx context.Context) (domain.OrganizationSettings, error)
	Put(ctx context.Context, s domain.OrganizationSettings) error
}
