package templaterepo

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

var (
	ErrNotFound  = errors.New("template not found")
	ErrNameTaken = errors.New("template name already in use")
)

// Repository provides access to persisted message templates. Names are unique per channel.
//
// List orders by name then id.
type Repository interface {
	Create(ctx context.Context, t domain.Template) error
	Update(ctx context.Context, t domain.Template) error
	Get(ctx context.Context, id domain.TemplateID) (domain.Template, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Template, error)
	Delete(ctx context.Context, id domain.TemplateID) error
}
