package domain

import "time"

// DefaultSMTPPort is used when settings omit the SMTP port.
const DefaultSMTPPort = 587

// SMTPConfig configures outbound email.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	UseTLS    bool
	FromEmail string
	FromName  string
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.FromEmail != ""
}

// WhatsAppConfig configures the Evolution API gateway.
type WhatsAppConfig struct {
	APIURL       string
	APIKey       string
	InstanceName string
	WebhookURL   *string
}

func (c WhatsAppConfig) Configured() bool {
	return c.APIURL != "" && c.APIKey != "" && c.InstanceName != ""
}

// OrganizationSettings is the singleton chapter configuration.
type OrganizationSettings struct {
	ChapterName string
	Email       SMTPConfig
	WhatsApp    WhatsAppConfig
	UpdatedAt   time.Time
	UpdatedBy   *IdentityID
}

// RedactedSecret replaces stored secrets on read.
const RedactedSecret = "********"

// Redacted returns a copy safe to return to clients.
func (s OrganizationSettings) Redacted() OrganizationSettings {
	out := s
	if out.Email.Password != "" {
		out.Email.Password = RedactedSecret
	}
	if out.WhatsApp.APIKey != "" {
		out.WhatsApp.APIKey = RedactedSecret
	}
	if s.WhatsApp.WebhookURL != nil {
		v := *s.WhatsApp.WebhookURL
		out.WhatsApp.WebhookURL = &v
	}
	return out
}
