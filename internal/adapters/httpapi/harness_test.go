package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"

	memboardrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/boardrepo"
	memcrmrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/crmrepo"
	memidempotency "github.com/chapter-connect/membership-api/internal/adapters/memory/idempotency"
	memmembershiprepo "github.com/chapter-connect/membership-api/internal/adapters/memory/membershiprepo"
	memmessagelogrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/outbox"
	memsettingsrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/settingsrepo"
	memtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/memory/templaterepo"
	"github.com/chapter-connect/membership-api/internal/app/apptest"
	"github.com/chapter-connect/membership-api/internal/app/boardpositions"
	"github.com/chapter-connect/membership-api/internal/app/crm"
	"github.com/chapter-connect/membership-api/internal/app/memberships"
	"github.com/chapter-connect/membership-api/internal/app/messaging"
	"github.com/chapter-connect/membership-api/internal/app/profiles"
	"github.com/chapter-connect/membership-api/internal/app/reports"
	"github.com/chapter-connect/membership-api/internal/app/settings"
	"github.com/chapter-connect/membership-api/internal/app/templates"
	"github.com/chapter-connect/membership-api/internal/domain"
)

const testWebhookSecret = "hook-secret"

type testAPI struct {
	t       *testing.T
	handler http.Handler
	fx      *apptest.Fixture
	outbox  *outbox.Outbox
}

// newTestAPI wires the full router over in-memory storage with dev auth, so requests
// authenticate as whatever identity X-Debug-Subject names.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zaptest.NewLogger(t)
	fx := apptest.New(t)

	membershipRepo := memmembershiprepo.NewRepo()
	boardRepo := memboardrepo.NewRepo()
	templateRepo := memtemplaterepo.NewRepo()
	logRepo := memmessagelogrepo.NewRepo()
	settingsRepo := memsettingsrepo.NewRepo()
	crmRepo := memcrmrepo.NewRepo()
	box := outbox.New()

	fx.Events.On(crm.NewRecorder(crmRepo, fx.Clock, log).HandleEvent)

	profileSvc := profiles.NewService(profiles.Deps{
		Profiles:    fx.Profiles,
		Memberships: membershipRepo,
		Board:       boardRepo,
		CRM:         crmRepo,
		Logs:        logRepo,
		Guard:       fx.Guard,
		Clock:       fx.Clock,
		Events:      fx.Events,
		Log:         log,
	})
	api := NewServer(Deps{
		Profiles:    profileSvc,
		Memberships: memberships.NewService(membershipRepo, fx.Profiles, fx.Guard, fx.Clock, fx.Events, log),
		Board:       boardpositions.NewService(boardRepo, fx.Profiles, fx.Guard, fx.Clock),
		Templates:   templates.NewService(templateRepo, logRepo, fx.Guard, fx.Clock, log),
		Messaging: messaging.NewService(messaging.Deps{
			Templates: templateRepo,
			Logs:      logRepo,
			Settings:  settingsRepo,
			Profiles:  fx.Profiles,
			Email:     box,
			WhatsApp:  box,
			Guard:     fx.Guard,
			Clock:     fx.Clock,
			Log:       log,
		}),
		Settings:      settings.NewService(settingsRepo, fx.Guard, fx.Clock, log),
		Reports:       reports.NewService(membershipRepo, fx.Profiles, fx.Guard, fx.Clock),
		CRM:           crm.NewService(crmRepo, fx.Profiles, fx.Guard, fx.Clock, log),
		Guard:         fx.Guard,
		Roles:         fx.Resolver,
		Idem:          memidempotency.NewStore(),
		WebhookSecret: testWebhookSecret,
		Clock:         fx.Clock,
		Log:           log,
	})
	h := NewRouter(api, RouterOptions{
		AuthMiddleware: NewDevAuthMiddleware("", profileSvc, log),
		Logger:         log,
	})
	return &testAPI{t: t, handler: h, fx: fx, outbox: box}
}

type call struct {
	method  string
	path    string
	as      domain.IdentityID
	body    any
	headers map[string]string
}

func (a *testAPI) do(c call) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := c.body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.as != "" {
		req.Header.Set("X-Debug-Subject", string(c.as))
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v body=%s", v, err, rec.Body.String())
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status: got %d want %d body=%s", rec.Code, want, rec.Body.String())
	}
}
