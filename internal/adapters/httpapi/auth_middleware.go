package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/profiles"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/platform/auth/jwtverifier"
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (jwtverifier.Claims, error)
}

// Provisioner creates the profile for a first-seen identity.
type Provisioner interface {
	EnsureProvisioned(ctx context.Context, id domain.IdentityID, in profiles.ProvisionInput) (domain.Profile, bool, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT>.
//
// On success, it provisions a profile for the identity if needed and stores the identity
// (JWT `sub`) in request context.
func NewAuthMiddleware(v TokenVerifier, prov Provisioner, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			claims, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}

			id := domain.IdentityID(claims.Subject)
			if !provision(w, r, prov, log, id, claims.Email) {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit identity via X-Debug-Subject (and optionally X-Debug-Email).
// If the header is absent, it falls back to defaultSubject (if provided).
// Do NOT use this in production deployments.
func NewDevAuthMiddleware(defaultSubject string, prov Provisioner, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil)
				return
			}
			id := domain.IdentityID(sub)
			if !provision(w, r, prov, log, id, strings.TrimSpace(r.Header.Get("X-Debug-Email"))) {
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func provision(w http.ResponseWriter, r *http.Request, prov Provisioner, log *zap.Logger, id domain.IdentityID, email string) bool {
	if prov == nil {
		return true
	}
	_, created, err := prov.EnsureProvisioned(r.Context(), id, profiles.ProvisionInput{Email: email})
	if err != nil {
		log.Error("profile provisioning failed", zap.String("identity", string(id)), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "could not provision profile", nil)
		return false
	}
	if created {
		log.Info("provisioned profile", zap.String("identity", string(id)))
	}
	return true
}
