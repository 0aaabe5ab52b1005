package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/chapter-connect/membership-api/internal/adapters/httpapi"
	memboardrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/boardrepo"
	memclock "github.com/chapter-connect/membership-api/internal/adapters/memory/clock"
	memcrmrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/crmrepo"
	memidempotency "github.com/chapter-connect/membership-api/internal/adapters/memory/idempotency"
	memmembershiprepo "github.com/chapter-connect/membership-api/internal/adapters/memory/membershiprepo"
	memmessagelogrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/messagelogrepo"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/outbox"
	memprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/memory/profilerepo"
	memsettingsrepo "github.com/chapter-connect/membership-api/internal/adapters/memory/settingsrepo"
	memtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/memory/templaterepo"
	pgboardrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/boardrepo"
	pgcrmrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/crmrepo"
	pgidempotency "github.com/chapter-connect/membership-api/internal/adapters/postgres/idempotency"
	pgmembershiprepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/membershiprepo"
	pgmessagelogrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/messagelogrepo"
	pgprofilerepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/profilerepo"
	pgsettingsrepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/settingsrepo"
	pgtemplaterepo "github.com/chapter-connect/membership-api/internal/adapters/postgres/templaterepo"
	postgres_testutil "github.com/chapter-connect/membership-api/internal/adapters/postgres/testutil"
	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/boardpositions"
	"github.com/chapter-connect/membership-api/internal/app/crm"
	"github.com/chapter-connect/membership-api/internal/app/memberships"
	"github.com/chapter-connect/membership-api/internal/app/messaging"
	"github.com/chapter-connect/membership-api/internal/app/profiles"
	"github.com/chapter-connect/membership-api/internal/app/reports"
	"github.com/chapter-connect/membership-api/internal/app/roleresolver"
	"github.com/chapter-connect/membership-api/internal/app/settings"
	"github.com/chapter-connect/membership-api/internal/app/templates"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	boardrepoport "github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
	crmrepoport "github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
	idempotencyport "github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
	membershiprepoport "github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
	messagelogrepoport "github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
	profilerepoport "github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
	settingsrepoport "github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
	templaterepoport "github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
	"github.com/chapter-connect/membership-api/internal/platform/events"
)

const webhookSecret = "itest-hook"

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL  string
	client   *http.Client
	profiles profilerepoport.Repository
	outbox   *outbox.Outbox
	clock    *memclock.ManualClock
}

type stores struct {
	profiles    profilerepoport.Repository
	memberships membershiprepoport.Repository
	board       boardrepoport.Repository
	templates   templaterepoport.Repository
	logs        messagelogrepoport.Repository
	settings    settingsrepoport.Repository
	crm         crmrepoport.Repository
	idem        idempotencyport.Store
}

func openStores(t *testing.T, b backend, clk *memclock.ManualClock) stores {
	t.Helper()
	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		postgres_testutil.TruncateSettings(t, pool)
		return stores{
			profiles:    pgprofilerepo.NewRepo(pool),
			memberships: pgmembershiprepo.NewRepo(pool),
			board:       pgboardrepo.NewRepo(pool),
			templates:   pgtemplaterepo.NewRepo(pool),
			logs:        pgmessagelogrepo.NewRepo(pool),
			settings:    pgsettingsrepo.NewRepo(pool),
			crm:         pgcrmrepo.NewRepo(pool),
			idem:        pgidempotency.NewStore(pool, time.Hour),
		}
	case backendMemory:
		return stores{
			profiles:    memprofilerepo.NewRepo(),
			memberships: memmembershiprepo.NewRepo(),
			board:       memboardrepo.NewRepo(),
			templates:   memtemplaterepo.NewRepo(),
			logs:        memmessagelogrepo.NewRepo(),
			settings:    memsettingsrepo.NewRepo(),
			crm:         memcrmrepo.NewRepo(),
			idem:        memidempotency.NewStoreWithTTL(time.Hour, clk.Now),
		}
	default:
		t.Fatalf("unknown backend: %s", b)
		return stores{}
	}
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	log := zaptest.NewLogger(t)
	clk := memclock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	st := openStores(t, b, clk)

	resolver, err := roleresolver.New(st.profiles, log, roleresolver.Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("roleresolver.New: %v", err)
	}
	t.Cleanup(resolver.Close)

	bus := events.NewBus(log)
	bus.Subscribe("role-cache", resolver.HandleEvent)
	bus.Subscribe("crm-activity", crm.NewRecorder(st.crm, clk, log).HandleEvent)

	guard := access.NewGuard(resolver, log)
	box := outbox.New()

	profileSvc := profiles.NewService(profiles.Deps{
		Profiles:    st.profiles,
		Memberships: st.memberships,
		Board:       st.board,
		CRM:         st.crm,
		Logs:        st.logs,
		Guard:       guard,
		Clock:       clk,
		Events:      bus,
		Log:         log,
	})
	api := httpapi.NewServer(httpapi.Deps{
		Profiles:    profileSvc,
		Memberships: memberships.NewService(st.memberships, st.profiles, guard, clk, bus, log),
		Board:       boardpositions.NewService(st.board, st.profiles, guard, clk),
		Templates:   templates.NewService(st.templates, st.logs, guard, clk, log),
		Messaging: messaging.NewService(messaging.Deps{
			Templates: st.templates,
			Logs:      st.logs,
			Settings:  st.settings,
			Profiles:  st.profiles,
			Email:     box,
			WhatsApp:  box,
			Guard:     guard,
			Clock:     clk,
			Log:       log,
		}),
		Settings:      settings.NewService(st.settings, guard, clk, log),
		Reports:       reports.NewService(st.memberships, st.profiles, guard, clk),
		CRM:           crm.NewService(st.crm, st.profiles, guard, clk, log),
		Guard:         guard,
		Roles:         resolver,
		Idem:          st.idem,
		WebhookSecret: webhookSecret,
		Clock:         clk,
		Log:           log,
	})

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// The empty default subject means requests MUST provide X-Debug-Subject.
	authMW := httpapi.NewDevAuthMiddleware("", profileSvc, log)
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: authMW, Logger: log})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL:  srv.URL,
		client:   srv.Client(),
		profiles: st.profiles,
		outbox:   box,
		clock:    clk,
	}
}

// seedAdmin stores an admin profile directly; the API only ever provisions guests.
func (s *testServer) seedAdmin(t *testing.T) string {
	t.Helper()
	id := "itest|admin-" + uuid.NewString()
	now := s.clock.Now()
	err := s.profiles.Create(context.Background(), domain.Profile{
		ID:          domain.IdentityID(id),
		Role:        authz.RoleAdmin,
		Status:      domain.ProfileActive,
		FirstName:   "Ada",
		LastName:    "Admin",
		Email:       uuid.NewString() + "@example.com",
		Preferences: domain.Preferences{Language: "en"},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return id
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any) (int, []byte, http.Header) {
	t.Helper()
	return s.doJSONWithHeaders(t, method, path, subject, body, nil)
}

func (s *testServer) doJSONWithHeaders(t *testing.T, method string, path string, subject string, body any, headers map[string]string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
