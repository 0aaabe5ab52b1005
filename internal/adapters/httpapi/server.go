package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/boardpositions"
	"github.com/chapter-connect/membership-api/internal/app/crm"
	"github.com/chapter-connect/membership-api/internal/app/memberships"
	"github.com/chapter-connect/membership-api/internal/app/messaging"
	"github.com/chapter-connect/membership-api/internal/app/profiles"
	"github.com/chapter-connect/membership-api/internal/app/reports"
	"github.com/chapter-connect/membership-api/internal/app/settings"
	"github.com/chapter-connect/membership-api/internal/app/templates"
	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
)

// RoleInvalidator drops a cached role. The role resolver implements it.
type RoleInvalidator interface {
	Invalidate(id domain.IdentityID)
}

type Deps struct {
	Profiles    *profiles.Service
	Memberships *memberships.Service
	Board       *boardpositions.Service
	Templates   *templates.Service
	Messaging   *messaging.Service
	Settings    *settings.Service
	Reports     *reports.Service
	CRM         *crm.Service

	Guard *access.Guard
	Roles RoleInvalidator
	Idem  idempotency.Store

	// WebhookSecret authenticates delivery callbacks. Empty disables the webhook.
	WebhookSecret string

	Clock clockport.Clock
	Log   *zap.Logger
}

// Server holds the HTTP handlers. Each handler resolves the caller's identity from the
// request context and delegates to an app service.
type Server struct {
	profiles    *profiles.Service
	memberships *memberships.Service
	board       *boardpositions.Service
	templates   *templates.Service
	messaging   *messaging.Service
	settings    *settings.Service
	reports     *reports.Service
	crm         *crm.Service

	guard *access.Guard
	roles RoleInvalidator
	idem  idempotency.Store

	webhookSecret string

	clk      clockport.Clock
	log      *zap.Logger
	validate *validator.Validate
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		profiles:      d.Profiles,
		memberships:   d.Memberships,
		board:         d.Board,
		templates:     d.Templates,
		messaging:     d.Messaging,
		settings:      d.Settings,
		reports:       d.Reports,
		crm:           d.CRM,
		guard:         d.Guard,
		roles:         d.Roles,
		idem:          d.Idem,
		webhookSecret: d.WebhookSecret,
		clk:           d.Clock,
		log:           log,
		validate:      newValidator(),
	}
}

// actor returns the authenticated identity, writing a 401 when there is none.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (domain.IdentityID, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, apperr.CodeUnauthorized, "missing identity", nil)
	}
	return id, ok
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Field(name, "must be an integer")
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.Field(name, "must be true or false")
	}
	return b, nil
}

func queryID[T ~string](r *http.Request, name string) *T {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	v := T(raw)
	return &v
}
