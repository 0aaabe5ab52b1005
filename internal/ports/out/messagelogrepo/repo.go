package messagelogrepo

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

var ErrNotFound = errors.New("message log not found")

type Filter struct {
	RecipientID *domain.IdentityID
	TemplateID  *domain.TemplateID
	Status      domain.DeliveryStatus
	Limit       int
}

// Repository persists message logs. Logs are never deleted by normal flows.
//
// List orders by created_at descending, then id.
type Repository interface {
	Create(ctx context.Context, l domain.MessageLog) error
	Update(ctx context.Context, l domain.MessageLog) error
	Get(ctx context.Context, id domain.MessageLogID) (domain.MessageLog, error)
	GetByProviderMessageID(ctx context.Context, providerID string) (domain.MessageLog, error)
	List(ctx context.Context, f Filter) ([]domain.MessageLog, error)

	// DetachTemplate clears template_id on logs rendered from a deleted template.
	DetachTemplate(ctx context.Context, id domain.TemplateID) error
	// DetachRecipient clears recipient_id on logs addressed to a deleted identity.
	DetachRecipient(ctx context.Context, id domain.IdentityID) error
}
