package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/templates"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
	"github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
	"github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

// DefaultEmailSubject is used for email templates without a subject.
const DefaultEmailSubject = "Message from the chapter"

type SendInput struct {
	TemplateID domain.TemplateID
	// RecipientID resolves contact details from the profile when RecipientEmail or
	// RecipientPhone is not given.
	RecipientID    *domain.IdentityID
	RecipientEmail *string
	RecipientPhone *string
	Variables      map[string]string
}

// Result reports a send attempt. A provider failure is not an error: it is recorded on
// the log and reported with Success false.
type Result struct {
	Success bool
	Log     domain.MessageLog
}

type Deps struct {
	Templates templaterepo.Repository
	Logs      messagelogrepo.Repository
	Settings  settingsrepo.Repository
	Profiles  profilerepo.Reader
	Email     sender.EmailSender
	WhatsApp  sender.WhatsAppSender

	Guard *access.Guard
	Clock clockport.Clock
	Log   *zap.Logger
}

type Service struct {
	templates templaterepo.Repository
	logs      messagelogrepo.Repository
	settings  settingsrepo.Repository
	profiles  profilerepo.Reader
	email     sender.EmailSender
	whatsapp  sender.WhatsAppSender

	guard *access.Guard
	clk   clockport.Clock
	log   *zap.Logger

	newID func() domain.MessageLogID
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		templates: d.Templates,
		logs:      d.Logs,
		settings:  d.Settings,
		profiles:  d.Profiles,
		email:     d.Email,
		whatsapp:  d.WhatsApp,
		guard:     d.Guard,
		clk:       d.Clock,
		log:       log,
		newID: func() domain.MessageLogID {
			return domain.MessageLogID(uuid.NewString())
		},
	}
}

// Send renders a template for one recipient, dispatches it on the template's channel and
// records the attempt.
func (s *Service) Send(ctx context.Context, actor domain.IdentityID, in SendInput) (Result, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageLogs, authz.ActionCreate, ""); err != nil {
		return Result{}, err
	}

	tpl, err := s.templates.Get(ctx, in.TemplateID)
	if err != nil {
		if errors.Is(err, templaterepo.ErrNotFound) {
			return Result{}, apperr.NotFound("TEMPLATE_NOT_FOUND", "template not found")
		}
		return Result{}, err
	}
	if !tpl.IsActive {
		return Result{}, apperr.Conflict("TEMPLATE_INACTIVE", "template is not active")
	}

	recipient, err := s.recipient(ctx, actor, tpl.Channel, in)
	if err != nil {
		return Result{}, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil && !errors.Is(err, settingsrepo.ErrNotConfigured) {
		return Result{}, err
	}
	switch tpl.Channel {
	case domain.ChannelEmail:
		if !settings.Email.Configured() {
			return Result{}, notConfigured(tpl.Channel)
		}
	case domain.ChannelWhatsApp:
		if !settings.WhatsApp.Configured() {
			return Result{}, notConfigured(tpl.Channel)
		}
	}

	values := in.Variables
	if values == nil {
		values = map[string]string{}
	}
	rendered := templates.Render(tpl, values)
	tid := tpl.ID
	entry := domain.MessageLog{
		ID:             s.newID(),
		TemplateID:     &tid,
		RecipientID:    recipient.id,
		RecipientEmail: recipient.email,
		RecipientPhone: recipient.phone,
		Channel:        tpl.Channel,
		Subject:        rendered.Subject,
		Content:        rendered.Content,
		VariablesUsed:  cloneValues(values),
		Status:         domain.DeliveryPending,
		CreatedAt:      s.clk.Now(),
	}

	var receipt sender.Receipt
	var sendErr error
	switch tpl.Channel {
	case domain.ChannelEmail:
		subject := DefaultEmailSubject
		if rendered.Subject != nil {
			subject = *rendered.Subject
		} else {
			entry.Subject = &subject
		}
		receipt, sendErr = s.email.SendEmail(ctx, settings.Email, sender.Email{
			To:      *recipient.email,
			ToName:  recipient.name,
			Subject: subject,
			HTML:    rendered.Content,
		})
	case domain.ChannelWhatsApp:
		receipt, sendErr = s.whatsapp.SendText(ctx, settings.WhatsApp, *recipient.phone, rendered.Content)
	}

	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = domain.DeliveryFailed
		entry.ErrorMessage = &msg
		s.log.Warn("message send failed",
			zap.String("template", string(tpl.ID)),
			zap.String("channel", string(tpl.Channel)),
			zap.Error(sendErr),
		)
	} else {
		now := s.clk.Now()
		entry.Status = domain.DeliverySent
		entry.SentAt = &now
		if receipt.ProviderMessageID != "" {
			pid := receipt.ProviderMessageID
			entry.ProviderMessageID = &pid
		}
	}

	if err := s.logs.Create(ctx, entry); err != nil {
		return Result{}, err
	}
	return Result{Success: sendErr == nil, Log: entry}, nil
}

type recipient struct {
	id    *domain.IdentityID
	name  string
	email *string
	phone *string
}

func (s *Service) recipient(ctx context.Context, actor domain.IdentityID, channel domain.Channel, in SendInput) (recipient, error) {
	var r recipient
	if in.RecipientEmail != nil {
		v := strings.TrimSpace(*in.RecipientEmail)
		if v != "" {
			r.email = &v
		}
	}
	if in.RecipientPhone != nil {
		v := strings.TrimSpace(*in.RecipientPhone)
		if v != "" {
			r.phone = &v
		}
	}

	if in.RecipientID != nil {
		if err := s.guard.Check(ctx, actor, authz.TableProfiles, authz.ActionRead, *in.RecipientID); err != nil {
			return recipient{}, err
		}
		p, err := s.profiles.Get(ctx, *in.RecipientID)
		if err != nil {
			if errors.Is(err, profilerepo.ErrNotFound) {
				return recipient{}, apperr.NotFound("PROFILE_NOT_FOUND", "recipient profile not found")
			}
			return recipient{}, err
		}
		id := p.ID
		r.id = &id
		r.name = p.DisplayName()
		switch channel {
		case domain.ChannelEmail:
			if !p.Preferences.EmailOptIn {
				return recipient{}, apperr.Conflict("RECIPIENT_OPTED_OUT", "recipient has opted out of email")
			}
			if r.email == nil && p.Email != "" {
				v := p.Email
				r.email = &v
			}
		case domain.ChannelWhatsApp:
			if !p.Preferences.WhatsAppOptIn {
				return recipient{}, apperr.Conflict("RECIPIENT_OPTED_OUT", "recipient has opted out of WhatsApp")
			}
			if r.phone == nil && p.Phone != nil {
				v := *p.Phone
				r.phone = &v
			}
		}
	}

	switch channel {
	case domain.ChannelEmail:
		if r.email == nil {
			return recipient{}, apperr.Field("recipientEmail", "is required for email templates")
		}
	case domain.ChannelWhatsApp:
		if r.phone == nil {
			return recipient{}, apperr.Field("recipientPhone", "is required for WhatsApp templates")
		}
		normalized, err := domain.NormalizePhone(*r.phone)
		if err != nil {
			return recipient{}, apperr.Field("recipientPhone", "must contain at least 10 digits")
		}
		r.phone = &normalized
	}
	return r, nil
}

// DeliveryUpdate is a provider callback about a previously sent message.
type DeliveryUpdate struct {
	ProviderMessageID string
	Status            domain.DeliveryStatus
	Error             string
}

// ApplyDeliveryUpdate moves a log along the delivery lifecycle. Callbacks are authenticated
// at the edge, not by role. Repeated or out-of-order callbacks are ignored and reported
// with applied false.
func (s *Service) ApplyDeliveryUpdate(ctx context.Context, u DeliveryUpdate) (domain.MessageLog, bool, error) {
	if !u.Status.Valid() {
		return domain.MessageLog{}, false, apperr.Field("status", "must be one of: pending, sent, failed, delivered")
	}
	l, err := s.logs.GetByProviderMessageID(ctx, u.ProviderMessageID)
	if err != nil {
		if errors.Is(err, messagelogrepo.ErrNotFound) {
			return domain.MessageLog{}, false, apperr.NotFound("MESSAGE_NOT_FOUND", "no message with that provider id")
		}
		return domain.MessageLog{}, false, err
	}
	if !l.Status.CanTransition(u.Status) {
		s.log.Debug("ignoring delivery update",
			zap.String("log", string(l.ID)),
			zap.String("from", string(l.Status)),
			zap.String("to", string(u.Status)),
		)
		return l, false, nil
	}

	now := s.clk.Now()
	l.Status = u.Status
	switch u.Status {
	case domain.DeliverySent:
		if l.SentAt == nil {
			l.SentAt = &now
		}
	case domain.DeliveryDelivered:
		if l.SentAt == nil {
			l.SentAt = &now
		}
		l.DeliveredAt = &now
	case domain.DeliveryFailed:
		msg := u.Error
		if msg == "" {
			msg = "delivery failed"
		}
		l.ErrorMessage = &msg
	}
	if err := s.logs.Update(ctx, l); err != nil {
		return domain.MessageLog{}, false, err
	}
	return l, true, nil
}

type ListInput struct {
	RecipientID *domain.IdentityID
	TemplateID  *domain.TemplateID
	Status      string
	Limit       int
}

func (s *Service) ListLogs(ctx context.Context, actor domain.IdentityID, in ListInput) ([]domain.MessageLog, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageLogs, authz.ActionRead, ""); err != nil {
		return nil, err
	}
	f := messagelogrepo.Filter{RecipientID: in.RecipientID, TemplateID: in.TemplateID, Limit: in.Limit}
	if in.Status != "" {
		f.Status = domain.DeliveryStatus(strings.ToLower(in.Status))
		if !f.Status.Valid() {
			return nil, apperr.Field("status", "must be one of: pending, sent, failed, delivered")
		}
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	return s.logs.List(ctx, f)
}

func (s *Service) GetLog(ctx context.Context, actor domain.IdentityID, id domain.MessageLogID) (domain.MessageLog, error) {
	if err := s.guard.Check(ctx, actor, authz.TableMessageLogs, authz.ActionRead, ""); err != nil {
		return domain.MessageLog{}, err
	}
	l, err := s.logs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, messagelogrepo.ErrNotFound) {
			return domain.MessageLog{}, apperr.NotFound("MESSAGE_NOT_FOUND", "message log not found")
		}
		return domain.MessageLog{}, err
	}
	return l, nil
}

// TestSubject is the subject line of a channel test email.
const TestSubject = "Chapter Connect - delivery test"

const (
	testEmailBody = "<h1>Delivery test</h1><p>Your email settings are working.</p>"
	testTextBody  = "Delivery test: your WhatsApp settings are working."
)

// TestChannel sends a fixed message on ch using the stored settings. Nothing is logged
// and a provider failure is returned as a 502.
func (s *Service) TestChannel(ctx context.Context, actor domain.IdentityID, ch domain.Channel, to string) (sender.Receipt, error) {
	if err := s.guard.Check(ctx, actor, authz.TableOrganizationSettings, authz.ActionUpdate, ""); err != nil {
		return sender.Receipt{}, err
	}
	if !ch.Valid() {
		return sender.Receipt{}, apperr.Field("channel", "must be one of: email, whatsapp")
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return sender.Receipt{}, apperr.Field("to", "is required")
	}
	settings, err := s.settings.Get(ctx)
	if err != nil && !errors.Is(err, settingsrepo.ErrNotConfigured) {
		return sender.Receipt{}, err
	}

	var receipt sender.Receipt
	switch ch {
	case domain.ChannelEmail:
		if !settings.Email.Configured() {
			return sender.Receipt{}, notConfigured(ch)
		}
		receipt, err = s.email.SendEmail(ctx, settings.Email, sender.Email{To: to, Subject: TestSubject, HTML: testEmailBody})
	case domain.ChannelWhatsApp:
		if !settings.WhatsApp.Configured() {
			return sender.Receipt{}, notConfigured(ch)
		}
		phone, perr := domain.NormalizePhone(to)
		if perr != nil {
			return sender.Receipt{}, apperr.Field("to", "must contain at least 10 digits")
		}
		receipt, err = s.whatsapp.SendText(ctx, settings.WhatsApp, phone, testTextBody)
	}
	if err != nil {
		s.log.Warn("channel test failed", zap.String("channel", string(ch)), zap.Error(err))
		return sender.Receipt{}, providerFailed(ch, err)
	}
	s.log.Info("channel test sent", zap.String("channel", string(ch)))
	return receipt, nil
}

// WhatsAppStatus reports whether the configured gateway instance is paired.
func (s *Service) WhatsAppStatus(ctx context.Context, actor domain.IdentityID) (sender.Connection, error) {
	if err := s.guard.Check(ctx, actor, authz.TableOrganizationSettings, authz.ActionUpdate, ""); err != nil {
		return sender.Connection{}, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil && !errors.Is(err, settingsrepo.ErrNotConfigured) {
		return sender.Connection{}, err
	}
	if !settings.WhatsApp.Configured() {
		return sender.Connection{}, notConfigured(domain.ChannelWhatsApp)
	}
	conn, err := s.whatsapp.ConnectionState(ctx, settings.WhatsApp)
	if err != nil {
		s.log.Warn("whatsapp status check failed", zap.Error(err))
		return sender.Connection{}, providerFailed(domain.ChannelWhatsApp, err)
	}
	return conn, nil
}

func providerFailed(ch domain.Channel, err error) *apperr.Error {
	return &apperr.Error{
		Status:  502,
		Code:    "PROVIDER_ERROR",
		Message: string(ch) + " provider rejected the request",
		Details: map[string]any{"channel": string(ch), "error": err.Error()},
	}
}

func notConfigured(ch domain.Channel) *apperr.Error {
	return &apperr.Error{
		Status:  409,
		Code:    "CHANNEL_NOT_CONFIGURED",
		Message: string(ch) + " delivery is not configured",
		Details: map[string]any{"channel": string(ch)},
	}
}

func cloneValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
