package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// AuthMiddleware authenticates every route except health and webhooks.
	AuthMiddleware func(http.Handler) http.Handler

	CORSAllowedOrigins []string
	Logger             *zap.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Logger != nil {
		r.Use(RequestLogger(opts.Logger))
	}
	r.Use(middleware.Recoverer)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader, "X-Debug-Subject", "X-Debug-Email"},
			ExposedHeaders:   []string{"X-Request-Id", replayedHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/webhooks/whatsapp", s.whatsappWebhook)

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}

		r.Post("/auth/signout", s.signOut)

		r.Route("/me", func(r chi.Router) {
			r.Get("/", s.getMyProfile)
			r.Patch("/", s.updateMyProfile)
			r.Get("/access", s.getMyAccess)
			r.Get("/membership", s.getMyMembership)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.listProfiles)
			r.Route("/{profileID}", func(r chi.Router) {
				r.Get("/", s.getProfile)
				r.Patch("/", s.updateProfile)
				r.Delete("/", s.deleteProfile)
				r.Get("/membership", s.getProfileMembership)
				r.Get("/board-positions", s.listProfileBoardPositions)

				r.Get("/activities", s.listActivities)
				r.Post("/activities", s.logActivity)
				r.Get("/interactions", s.listInteractions)
				r.Post("/interactions", s.addInteraction)
				r.Get("/notes", s.listNotes)
				r.Post("/notes", s.addNote)
				r.Get("/tags", s.listTags)
				r.Post("/tags", s.addTag)
				r.Delete("/tags/{tag}", s.removeTag)
				r.Post("/follow-ups", s.addFollowUp)
			})
		})

		r.Route("/memberships", func(r chi.Router) {
			r.Get("/", s.listMemberships)
			r.Post("/", s.enrollMembership)
			r.Post("/expire", s.expireMemberships)
			r.Get("/{membershipID}", s.getMembership)
			r.Patch("/{membershipID}", s.updateMembership)
			r.Post("/{membershipID}/renew", s.renewMembership)
		})

		r.Route("/board-positions", func(r chi.Router) {
			r.Get("/", s.listCurrentBoard)
			r.Post("/", s.createBoardPosition)
			r.Get("/{positionID}", s.getBoardPosition)
			r.Patch("/{positionID}", s.updateBoardPosition)
			r.Delete("/{positionID}", s.deleteBoardPosition)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.listTemplates)
			r.Post("/", s.createTemplate)
			r.Get("/{templateID}", s.getTemplate)
			r.Patch("/{templateID}", s.updateTemplate)
			r.Delete("/{templateID}", s.deleteTemplate)
			r.Post("/{templateID}/preview", s.previewTemplate)
		})

		r.Post("/messages", s.sendMessage)
		r.Get("/message-logs", s.listMessageLogs)
		r.Get("/message-logs/{logID}", s.getMessageLog)

		r.Delete("/notes/{noteID}", s.deleteNote)
		r.Get("/follow-ups", s.listFollowUps)
		r.Post("/follow-ups/{followUpID}/complete", s.completeFollowUp)

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
		r.Post("/settings/test/{channel}", s.testChannel)
		r.Get("/settings/whatsapp/status", s.whatsAppStatus)

		r.Get("/reports/membership-summary", s.membershipSummary)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
