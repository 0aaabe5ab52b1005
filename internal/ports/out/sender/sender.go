package sender

import (
	"context"
	"errors"

	"github.com/chapter-connect/membership-api/internal/domain"
)

// ErrNotConfigured indicates the channel has no usable provider configuration.
var ErrNotConfigured = errors.New("sender not configured")

// Email is a rendered email ready for delivery.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Receipt is what a provider returns for an accepted message.
type Receipt struct {
	ProviderMessageID string
}

// EmailSender delivers email using organization SMTP settings.
type EmailSender interface {
	SendEmail(ctx context.Context, cfg domain.SMTPConfig, msg Email) (Receipt, error)
}

// WhatsAppSender delivers text messages through a WhatsApp gateway.
// phone must already be normalized to digits.
type WhatsAppSender interface {
	SendText(ctx context.Context, cfg domain.WhatsAppConfig, phone, text string) (Receipt, error)
	ConnectionState(ctx context.Context, cfg domain.WhatsAppConfig) (Connection, error)
}

// Connection is the gateway's view of the paired WhatsApp session.
type Connection struct {
	Instance string
	State    string
}

// Connected reports whether the session can deliver messages.
func (c Connection) Connected() bool { return c.State == "open" }
