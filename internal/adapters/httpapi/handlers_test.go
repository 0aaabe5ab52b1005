package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

func TestRequestWithoutIdentity_401(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(call{method: http.MethodGet, path: "/me"})
	expectStatus(t, rec, http.StatusUnauthorized)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error.Code)
}

func TestHealthzAndUnknownRoute(t *testing.T) {
	a := newTestAPI(t)
	expectStatus(t, a.do(call{method: http.MethodGet, path: "/healthz"}), http.StatusOK)

	rec := a.do(call{method: http.MethodGet, path: "/nope", as: "someone"})
	expectStatus(t, rec, http.StatusNotFound)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Error.Code)
}

func TestMe_ProvisionsGuestOnFirstRequest(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(call{method: http.MethodGet, path: "/me", as: "new-user", headers: map[string]string{"X-Debug-Email": "new@example.com"}})
	expectStatus(t, rec, http.StatusOK)
	p := decodeInto[Profile](t, rec)
	assert.Equal(t, "new-user", p.ID)
	assert.Equal(t, string(authz.RoleGuest), p.Role)
	assert.Equal(t, string(domain.ProfilePending), p.Status)
	assert.Equal(t, "new@example.com", p.Email)
}

func TestMeAccess_ReportsResolvedRoleAndActions(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	rec := a.do(call{method: http.MethodGet, path: "/me/access", as: member})
	expectStatus(t, rec, http.StatusOK)
	got := decodeInto[AccessResponse](t, rec)
	assert.Equal(t, string(member), got.Identity)
	assert.Equal(t, authz.RoleMember, got.Role)
	assert.Equal(t, []authz.Action{authz.ActionRead}, got.Capabilities[authz.ResourceMembers])
	assert.NotContains(t, got.Capabilities, authz.ResourceSettings)
}

func TestProfiles_DenialIsExplicit(t *testing.T) {
	a := newTestAPI(t)
	guest := a.fx.Seed(t, authz.RoleGuest, "Gus", "Guest")

	rec := a.do(call{method: http.MethodGet, path: "/profiles", as: guest})
	expectStatus(t, rec, http.StatusForbidden)
	er := decodeError(t, rec)
	assert.Equal(t, "FORBIDDEN", er.Error.Code)
	details, err := er.Error.Details.Get()
	require.NoError(t, err)
	assert.Equal(t, "profiles", details["table"])
}

func TestUpdateMe_PatchSemantics(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	rec := a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"phone": "(555) 123-4567"}})
	expectStatus(t, rec, http.StatusOK)
	p := decodeInto[Profile](t, rec)
	require.NotNil(t, p.Phone)
	assert.Equal(t, "Mel", p.FirstName)

	rec = a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"lastName": "Jones"}})
	expectStatus(t, rec, http.StatusOK)
	p = decodeInto[Profile](t, rec)
	assert.NotNil(t, p.Phone, "omitted fields are left untouched")
	assert.Equal(t, "Jones", p.LastName)

	rec = a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"phone": nil}})
	expectStatus(t, rec, http.StatusOK)
	assert.Nil(t, decodeInto[Profile](t, rec).Phone)

	rec = a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"firstName": nil}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestUpdateMe_RoleChangeRequiresAdmin(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	rec := a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"role": "admin"}})
	expectStatus(t, rec, http.StatusForbidden)

	p, err := a.fx.Profiles.Get(t.Context(), member)
	require.NoError(t, err)
	assert.Equal(t, authz.RoleMember, p.Role)
}

func TestAdminRoleChange_TakesEffectOnNextRequest(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	guest := a.fx.Seed(t, authz.RoleGuest, "Gus", "Guest")

	// Warm the role cache.
	rec := a.do(call{method: http.MethodGet, path: "/profiles", as: guest})
	expectStatus(t, rec, http.StatusForbidden)

	rec = a.do(call{method: http.MethodPatch, path: "/profiles/" + string(guest), as: admin, body: map[string]any{"role": "member"}})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, "member", decodeInto[Profile](t, rec).Role)

	rec = a.do(call{method: http.MethodGet, path: "/profiles", as: guest})
	expectStatus(t, rec, http.StatusOK)
}

func TestMalformedBody_422(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	rec := a.do(call{method: http.MethodPatch, path: "/me", as: member, body: "{"})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Error.Code)

	rec = a.do(call{method: http.MethodPatch, path: "/me", as: member, body: map[string]any{"nickname": "x"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func enrollBody(profile domain.IdentityID, fee int64) map[string]any {
	return map[string]any{
		"profileId":      string(profile),
		"type":           "local",
		"paymentCadence": "yearly",
		"feeMinor":       fee,
		"startDate":      "2025-03-01",
	}
}

func TestEnrollMembership_IdempotencyKeyReplay(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")
	key := map[string]string{IdempotencyKeyHeader: "enroll-1"}

	first := a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: enrollBody(member, 5000), headers: key})
	expectStatus(t, first, http.StatusCreated)
	m := decodeInto[Membership](t, first)
	assert.Equal(t, "2026-03-01", m.ExpiryDate.Format(time.DateOnly))
	assert.Equal(t, "USD", m.Currency)
	assert.NotEmpty(t, m.MemberNumber)

	replay := a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: enrollBody(member, 5000), headers: key})
	expectStatus(t, replay, http.StatusCreated)
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, m.ID, decodeInto[Membership](t, replay).ID)

	reuse := a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: enrollBody(member, 9000), headers: key})
	expectStatus(t, reuse, http.StatusConflict)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSE", decodeError(t, reuse).Error.Code)

	// Without a key a second enrollment hits the one-per-profile rule.
	dup := a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: enrollBody(member, 5000)})
	expectStatus(t, dup, http.StatusConflict)
}

func TestEnrollMembership_ValidationDetails(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")

	rec := a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: map[string]any{"type": "lifetime"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
	details, err := decodeError(t, rec).Error.Details.Get()
	require.NoError(t, err)
	assert.Contains(t, details, "profileId")
	assert.Contains(t, details, "type")
	assert.Contains(t, details, "startDate")
}

func TestMyMembership_SelfAccess(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	prospect := a.fx.Seed(t, authz.RoleProspective, "Pat", "Prospect")

	expectStatus(t, a.do(call{method: http.MethodPost, path: "/memberships", as: admin, body: enrollBody(prospect, 0)}), http.StatusCreated)

	rec := a.do(call{method: http.MethodGet, path: "/me/membership", as: prospect})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, string(prospect), decodeInto[Membership](t, rec).ProfileID)

	expectStatus(t, a.do(call{method: http.MethodGet, path: "/memberships", as: prospect}), http.StatusForbidden)
}

func TestSendMessage_AndDeliveryWebhook(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")

	rec := a.do(call{method: http.MethodPut, path: "/settings", as: admin, body: map[string]any{
		"chapterName": "Downtown",
		"email":       map[string]any{},
		"whatsapp":    map[string]any{"apiUrl": "https://wa.example.com", "apiKey": "k-1", "instanceName": "chapter"},
	}})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, domain.RedactedSecret, decodeInto[Settings](t, rec).WhatsApp.APIKey)

	rec = a.do(call{method: http.MethodPost, path: "/templates", as: admin, body: map[string]any{
		"name": "Welcome", "channel": "whatsapp", "content": "Hi {{name}}!",
	}})
	expectStatus(t, rec, http.StatusCreated)
	tpl := decodeInto[Template](t, rec)
	assert.Equal(t, []string{"name"}, tpl.Variables)

	rec = a.do(call{method: http.MethodPost, path: "/messages", as: admin, body: map[string]any{
		"templateId":     tpl.ID,
		"recipientPhone": "(555) 123-4567",
		"variables":      map[string]string{"name": "Mel"},
	}})
	expectStatus(t, rec, http.StatusOK)
	sent := decodeInto[SendMessageResponse](t, rec)
	require.True(t, sent.Success)
	assert.Equal(t, "sent", sent.Log.Status)
	require.NotNil(t, sent.Log.RecipientPhone)
	assert.Equal(t, "15551234567", *sent.Log.RecipientPhone)
	require.NotNil(t, sent.Log.ProviderMessageID)

	msgs := a.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi Mel!", msgs[0].Body)

	hook := map[string]any{
		"event": "messages.update",
		"data":  map[string]any{"keyId": *sent.Log.ProviderMessageID, "status": "DELIVERY_ACK"},
	}
	rec = a.do(call{method: http.MethodPost, path: "/webhooks/whatsapp", body: hook, headers: map[string]string{WebhookSecretHeader: "wrong"}})
	expectStatus(t, rec, http.StatusUnauthorized)

	rec = a.do(call{method: http.MethodPost, path: "/webhooks/whatsapp", body: hook, headers: map[string]string{WebhookSecretHeader: testWebhookSecret}})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, WebhookResponse{Applied: true, Status: "delivered"}, decodeInto[WebhookResponse](t, rec))

	rec = a.do(call{method: http.MethodPost, path: "/webhooks/whatsapp", body: hook, headers: map[string]string{WebhookSecretHeader: testWebhookSecret}})
	expectStatus(t, rec, http.StatusOK)
	assert.False(t, decodeInto[WebhookResponse](t, rec).Applied, "delivered is terminal")

	rec = a.do(call{method: http.MethodGet, path: "/message-logs/" + sent.Log.ID, as: admin})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, "delivered", decodeInto[MessageLog](t, rec).Status)
}

func TestSendMessage_NotConfigured(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")

	rec := a.do(call{method: http.MethodPost, path: "/templates", as: admin, body: map[string]any{
		"name": "Dues", "channel": "email", "content": "<p>Dues are due</p>",
	}})
	expectStatus(t, rec, http.StatusCreated)
	tpl := decodeInto[Template](t, rec)

	rec = a.do(call{method: http.MethodPost, path: "/messages", as: admin, body: map[string]any{
		"templateId": tpl.ID, "recipientEmail": "mel@example.com",
	}})
	expectStatus(t, rec, http.StatusConflict)
	assert.Empty(t, a.outbox.Messages())
}

func TestSettings_ChannelTestAndWhatsAppStatus(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	rec := a.do(call{method: http.MethodGet, path: "/settings/whatsapp/status", as: admin})
	expectStatus(t, rec, http.StatusConflict)

	rec = a.do(call{method: http.MethodPut, path: "/settings", as: admin, body: map[string]any{
		"chapterName": "Downtown",
		"email":       map[string]any{"host": "smtp.example.com", "port": 587, "fromEmail": "noreply@example.com"},
		"whatsapp":    map[string]any{"apiUrl": "https://wa.example.com", "apiKey": "k-1", "instanceName": "chapter"},
	}})
	expectStatus(t, rec, http.StatusOK)

	rec = a.do(call{method: http.MethodPost, path: "/settings/test/email", as: admin, body: map[string]any{"to": "ops@example.com"}})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, "email", decodeInto[TestChannelResponse](t, rec).Channel)

	rec = a.do(call{method: http.MethodPost, path: "/settings/test/sms", as: admin, body: map[string]any{"to": "x"}})
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	rec = a.do(call{method: http.MethodPost, path: "/settings/test/email", as: member, body: map[string]any{"to": "ops@example.com"}})
	expectStatus(t, rec, http.StatusForbidden)

	rec = a.do(call{method: http.MethodGet, path: "/settings/whatsapp/status", as: admin})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, WhatsAppStatusResponse{Instance: "chapter", State: "open", Connected: true}, decodeInto[WhatsAppStatusResponse](t, rec))

	msgs := a.outbox.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ops@example.com", msgs[0].To)
}

func TestReports_GuardedByReportRule(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")
	prospect := a.fx.Seed(t, authz.RoleProspective, "Pat", "Prospect")

	expectStatus(t, a.do(call{method: http.MethodGet, path: "/reports/membership-summary", as: prospect}), http.StatusForbidden)

	rec := a.do(call{method: http.MethodGet, path: "/reports/membership-summary?withinDays=60", as: member})
	expectStatus(t, rec, http.StatusOK)
	assert.Equal(t, 60, decodeInto[MembershipSummary](t, rec).WithinDays)

	rec = a.do(call{method: http.MethodGet, path: "/reports/membership-summary?withinDays=abc", as: member})
	expectStatus(t, rec, http.StatusUnprocessableEntity)
}

func TestCRM_RoleChangeRecordedOnTimeline(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	guest := a.fx.Seed(t, authz.RoleGuest, "Gus", "Guest")

	expectStatus(t, a.do(call{method: http.MethodPatch, path: "/profiles/" + string(guest), as: admin, body: map[string]any{"role": "prospective"}}), http.StatusOK)

	rec := a.do(call{method: http.MethodGet, path: "/profiles/" + string(guest) + "/activities", as: admin})
	expectStatus(t, rec, http.StatusOK)
	got := decodeInto[struct {
		Activities []Activity `json:"activities"`
	}](t, rec)
	kinds := make([]string, 0, len(got.Activities))
	for _, act := range got.Activities {
		kinds = append(kinds, act.Kind)
	}
	assert.Contains(t, kinds, string(domain.ActivityRoleChanged))

	rec = a.do(call{method: http.MethodPost, path: "/profiles/" + string(guest) + "/tags", as: admin, body: map[string]any{"name": "volunteer"}})
	expectStatus(t, rec, http.StatusCreated)
	expectStatus(t, a.do(call{method: http.MethodDelete, path: "/profiles/" + string(guest) + "/tags/volunteer", as: admin}), http.StatusNoContent)
}

func TestDeleteProfile_AdminOnly(t *testing.T) {
	a := newTestAPI(t)
	admin := a.fx.Seed(t, authz.RoleAdmin, "Ada", "Admin")
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")

	expectStatus(t, a.do(call{method: http.MethodDelete, path: "/profiles/" + string(admin), as: member}), http.StatusForbidden)
	expectStatus(t, a.do(call{method: http.MethodDelete, path: "/profiles/" + string(member), as: admin}), http.StatusNoContent)
	expectStatus(t, a.do(call{method: http.MethodGet, path: "/profiles/" + string(member), as: admin}), http.StatusNotFound)
}

func TestSignOut(t *testing.T) {
	a := newTestAPI(t)
	member := a.fx.Seed(t, authz.RoleMember, "Mel", "Member")
	expectStatus(t, a.do(call{method: http.MethodPost, path: "/auth/signout", as: member}), http.StatusNoContent)
}
