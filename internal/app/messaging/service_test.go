package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memmessagelogrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/outbox"
	memsettingsrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/settingsrepo"
	memtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/memory/templaterepo"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/apptest"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
)

type harness struct {
	*apptest.Fixture
	svc       *Service
	templates *memtemplaterepo.Repo
	logs      *memmessagelogrepo.Repo
	settings  *memsettingsrepo.Repo
	outbox    *outbox.Outbox
	admin     domain.IdentityID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := apptest.New(t)
	h := &harness{
		Fixture:   f,
		templates: memtemplaterepo.NewRepo(),
		logs:      memmessagelogrepo.NewRepo(),
		settings:  memsettingsrepo.NewRepo(),
		outbox:    outbox.New(),
	}
	h.svc = NewService(Deps{
		Templates: h.templates,
		Logs:      h.logs,
		Settings:  h.settings,
		Profiles:  f.Profiles,
		Email:     h.outbox,
		WhatsApp:  h.outbox,
		Guard:     f.Guard,
		Clock:     f.Clock,
	})
	h.admin = f.Seed(t, authz.RoleAdmin, "Ann", "Admin")
	return h
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	require.NoError(t, h.settings.Put(context.Background(), domain.OrganizationSettings{
		ChapterName: "Test Chapter",
		Email:       domain.SMTPConfig{Host: "smtp.example.com", Port: 587, FromEmail: "noreply@example.com"},
		WhatsApp:    domain.WhatsAppConfig{APIURL: "https://wa.example.com", APIKey: "k", InstanceName: "chapter"},
	}))
}

func (h *harness) template(t *testing.T, ch domain.Channel, subject *string, content string) domain.TemplateID {
	t.Helper()
	vars, err := domain.Placeholders(content)
	require.NoError(t, err)
	id := domain.TemplateID(string(ch) + "-tpl")
	require.NoError(t, h.templates.Create(context.Background(), domain.Template{
		ID: id, Name: string(id), Channel: ch, Subject: subject, Content: content, Variables: vars, IsActive: true,
		CreatedAt: h.Clock.Now(), UpdatedAt: h.Clock.Now(),
	}))
	return id
}

func strPtr(s string) *string { return &s }

func TestSend_EmailDefaultSubjectAndEscaping(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	tid := h.template(t, domain.ChannelEmail, nil, "<p>Hello {{name}}</p>")

	res, err := h.svc.Send(context.Background(), h.admin, SendInput{
		TemplateID:     tid,
		RecipientEmail: strPtr("bob@example.com"),
		Variables:      map[string]string{"name": "<script>"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.DeliverySent, res.Log.Status)
	require.NotNil(t, res.Log.SentAt)
	require.NotNil(t, res.Log.Subject)
	assert.Equal(t, DefaultEmailSubject, *res.Log.Subject)

	sent := h.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob@example.com", sent[0].To)
	assert.Equal(t, DefaultEmailSubject, sent[0].Subject)
	assert.Equal(t, "<p>Hello &lt;script&gt;</p>", sent[0].Body)
	assert.Equal(t, "<script>", res.Log.VariablesUsed["name"])
}

func TestSend_WhatsAppNormalizesPhoneFromProfile(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	tid := h.template(t, domain.ChannelWhatsApp, nil, "Hi {{name}} & welcome")

	member := h.Seed(t, authz.RoleMember, "Mia", "Member")
	p, err := h.Profiles.Get(ctx, member)
	require.NoError(t, err)
	p.Phone = strPtr("(555) 010-9999")
	p.Preferences.WhatsAppOptIn = true
	require.NoError(t, h.Profiles.Update(ctx, p))

	res, err := h.svc.Send(ctx, h.admin, SendInput{TemplateID: tid, RecipientID: &member, Variables: map[string]string{"name": "Mia & Co"}})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Log.RecipientPhone)
	assert.Equal(t, "15550109999", *res.Log.RecipientPhone)
	require.NotNil(t, res.Log.RecipientID)
	assert.Equal(t, member, *res.Log.RecipientID)
	require.NotNil(t, res.Log.ProviderMessageID)

	sent := h.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi Mia & Co & welcome", sent[0].Body)
}

func TestSend_RecipientValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	wa := h.template(t, domain.ChannelWhatsApp, nil, "Hi")
	email := h.template(t, domain.ChannelEmail, strPtr("S"), "Hi")

	_, err := h.svc.Send(ctx, h.admin, SendInput{TemplateID: wa, RecipientPhone: strPtr("555-1234")})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = h.svc.Send(ctx, h.admin, SendInput{TemplateID: email})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	member := h.Seed(t, authz.RoleMember, "Mia", "Member")
	_, err = h.svc.Send(ctx, h.admin, SendInput{TemplateID: wa, RecipientID: &member})
	assert.True(t, apperr.HasCode(err, "RECIPIENT_OPTED_OUT"))

	_, err = h.svc.Send(ctx, h.admin, SendInput{TemplateID: "missing", RecipientEmail: strPtr("a@b.c")})
	assert.True(t, apperr.HasCode(err, "TEMPLATE_NOT_FOUND"))

	assert.Empty(t, h.outbox.Messages())
	logs, err := h.logs.List(ctx, messagelogrepo.Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs, "rejected requests are not attempts")
}

func TestSend_NotConfigured(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tid := h.template(t, domain.ChannelEmail, nil, "Hi")

	_, err := h.svc.Send(context.Background(), h.admin, SendInput{TemplateID: tid, RecipientEmail: strPtr("a@example.com")})
	assert.True(t, apperr.HasCode(err, "CHANNEL_NOT_CONFIGURED"))
}

func TestSend_ProviderFailureIsLogged(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	h.outbox.Fail = errors.New("smtp: connection refused")
	tid := h.template(t, domain.ChannelEmail, strPtr("Subject"), "Hi")

	res, err := h.svc.Send(context.Background(), h.admin, SendInput{TemplateID: tid, RecipientEmail: strPtr("a@example.com")})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, domain.DeliveryFailed, res.Log.Status)
	require.NotNil(t, res.Log.ErrorMessage)
	assert.Contains(t, *res.Log.ErrorMessage, "connection refused")
	assert.Nil(t, res.Log.SentAt)

	stored, err := h.logs.Get(context.Background(), res.Log.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryFailed, stored.Status)
}

func TestSend_OnlyAdmins(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	member := h.Seed(t, authz.RoleMember, "Mia", "Member")
	tid := h.template(t, domain.ChannelEmail, nil, "Hi")

	_, err := h.svc.Send(context.Background(), member, SendInput{TemplateID: tid, RecipientEmail: strPtr("a@example.com")})
	assert.True(t, apperr.IsForbidden(err))

	_, err = h.svc.ListLogs(context.Background(), member, ListInput{})
	assert.True(t, apperr.IsForbidden(err))
}

func TestApplyDeliveryUpdate_Transitions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	tid := h.template(t, domain.ChannelWhatsApp, nil, "Hi")

	res, err := h.svc.Send(ctx, h.admin, SendInput{TemplateID: tid, RecipientPhone: strPtr("5550109999")})
	require.NoError(t, err)
	pid := *res.Log.ProviderMessageID

	l, applied, err := h.svc.ApplyDeliveryUpdate(ctx, DeliveryUpdate{ProviderMessageID: pid, Status: domain.DeliveryDelivered})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, domain.DeliveryDelivered, l.Status)
	require.NotNil(t, l.DeliveredAt)

	l, applied, err = h.svc.ApplyDeliveryUpdate(ctx, DeliveryUpdate{ProviderMessageID: pid, Status: domain.DeliveryFailed, Error: "late"})
	require.NoError(t, err)
	assert.False(t, applied, "delivered is terminal")
	assert.Equal(t, domain.DeliveryDelivered, l.Status)

	_, _, err = h.svc.ApplyDeliveryUpdate(ctx, DeliveryUpdate{ProviderMessageID: "nope", Status: domain.DeliverySent})
	assert.True(t, apperr.HasCode(err, "MESSAGE_NOT_FOUND"))

	_, _, err = h.svc.ApplyDeliveryUpdate(ctx, DeliveryUpdate{ProviderMessageID: pid, Status: "read"})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestListLogs_FilterByStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	tid := h.template(t, domain.ChannelEmail, nil, "Hi")

	_, err := h.svc.Send(ctx, h.admin, SendInput{TemplateID: tid, RecipientEmail: strPtr("a@example.com")})
	require.NoError(t, err)
	h.outbox.Fail = errors.New("boom")
	_, err = h.svc.Send(ctx, h.admin, SendInput{TemplateID: tid, RecipientEmail: strPtr("b@example.com")})
	require.NoError(t, err)

	failed, err := h.svc.ListLogs(ctx, h.admin, ListInput{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b@example.com", *failed[0].RecipientEmail)

	_, err = h.svc.ListLogs(ctx, h.admin, ListInput{Status: "bounced"})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

func TestTestChannel_SendsWithoutLogging(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.TestChannel(ctx, h.admin, domain.ChannelEmail, "ops@example.com")
	assert.True(t, apperr.HasCode(err, "CHANNEL_NOT_CONFIGURED"))

	h.configure(t)
	rcpt, err := h.svc.TestChannel(ctx, h.admin, domain.ChannelEmail, "ops@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, rcpt.ProviderMessageID)

	_, err = h.svc.TestChannel(ctx, h.admin, domain.ChannelWhatsApp, "(555) 123-4567")
	require.NoError(t, err)

	sent := h.outbox.Messages()
	require.Len(t, sent, 2)
	assert.Equal(t, TestSubject, sent[0].Subject)
	assert.Equal(t, "15551234567", sent[1].To)

	logs, err := h.logs.List(ctx, messagelogrepo.Filter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestTestChannel_Rejections(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.configure(t)
	ctx := context.Background()
	member := h.Seed(t, authz.RoleMember, "Mia", "Member")

	_, err := h.svc.TestChannel(ctx, member, domain.ChannelEmail, "a@example.com")
	assert.True(t, apperr.IsForbidden(err))

	_, err = h.svc.TestChannel(ctx, h.admin, domain.Channel("sms"), "a@example.com")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	_, err = h.svc.TestChannel(ctx, h.admin, domain.ChannelWhatsApp, "123")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	h.outbox.Fail = errors.New("smtp: auth failed")
	_, err = h.svc.TestChannel(ctx, h.admin, domain.ChannelEmail, "a@example.com")
	assert.True(t, apperr.HasCode(err, "PROVIDER_ERROR"))
}

func TestWhatsAppStatus(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.WhatsAppStatus(ctx, h.admin)
	assert.True(t, apperr.HasCode(err, "CHANNEL_NOT_CONFIGURED"))

	h.configure(t)
	conn, err := h.svc.WhatsAppStatus(ctx, h.admin)
	require.NoError(t, err)
	assert.Equal(t, "chapter", conn.Instance)
	assert.True(t, conn.Connected())

	member := h.Seed(t, authz.RoleMember, "Mia", "Member")
	_, err = h.svc.WhatsAppStatus(ctx, member)
	assert.True(t, apperr.IsForbidden(err))
}
