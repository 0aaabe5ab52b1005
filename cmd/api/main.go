package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/adapters/httpapi"
	"github.com/chapter-connect/membership-api/internal/adapters/memory/outbox"
	"github.com/chapter-connect/membership-api/internal/adapters/smtp"
	"github.com/chapter-connect/membership-api/internal/adapters/whatsapp"
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
	"github.com/chapter-connect/membership-api/internal/platform/auth/jwtverifier"
	platformclock "github.com/chapter-connect/membership-api/internal/platform/clock"
	"github.com/chapter-connect/membership-api/internal/platform/config"
	"github.com/chapter-connect/membership-api/internal/platform/events"
	"github.com/chapter-connect/membership-api/internal/platform/logging"
	"github.com/chapter-connect/membership-api/internal/ports/out/sender"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("api exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	st, err := openStorage(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer st.close()
	log.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	resolver, err := roleresolver.New(st.profiles, log.Named("roles"), roleresolver.Options{TTL: cfg.RoleCacheTTL})
	if err != nil {
		return fmt.Errorf("role resolver: %w", err)
	}
	defer resolver.Close()

	bus := events.NewBus(log.Named("events"))
	bus.Subscribe("role-cache", resolver.HandleEvent)
	bus.Subscribe("crm-activity", crm.NewRecorder(st.crm, clk, log.Named("crm")).HandleEvent)

	guard := access.NewGuard(resolver, log.Named("access"))

	emailSender, textSender := senders(cfg, log)

	profileSvc := profiles.NewService(profiles.Deps{
		Profiles:    st.profiles,
		Memberships: st.memberships,
		Board:       st.board,
		CRM:         st.crm,
		Logs:        st.logs,
		Guard:       guard,
		Clock:       clk,
		Events:      bus,
		Log:         log.Named("profiles"),
	})
	api := httpapi.NewServer(httpapi.Deps{
		Profiles:    profileSvc,
		Memberships: memberships.NewService(st.memberships, st.profiles, guard, clk, bus, log.Named("memberships")),
		Board:       boardpositions.NewService(st.board, st.profiles, guard, clk),
		Templates:   templates.NewService(st.templates, st.logs, guard, clk, log.Named("templates")),
		Messaging: messaging.NewService(messaging.Deps{
			Templates: st.templates,
			Logs:      st.logs,
			Settings:  st.settings,
			Profiles:  st.profiles,
			Email:     emailSender,
			WhatsApp:  textSender,
			Guard:     guard,
			Clock:     clk,
			Log:       log.Named("messaging"),
		}),
		Settings:      settings.NewService(st.settings, guard, clk, log.Named("settings")),
		Reports:       reports.NewService(st.memberships, st.profiles, guard, clk),
		CRM:           crm.NewService(st.crm, st.profiles, guard, clk, log.Named("crm")),
		Guard:         guard,
		Roles:         resolver,
		Idem:          st.idem,
		WebhookSecret: cfg.WebhookSecret,
		Clock:         clk,
		Log:           log.Named("http"),
	})

	authMW, err := authMiddleware(cfg, profileSvc, log.Named("auth"))
	if err != nil {
		return err
	}
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{
		AuthMiddleware:     authMW,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", zap.String("addr", srv.Addr), zap.String("auth_mode", cfg.AuthMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// authMiddleware selects bearer JWT auth or, for local work, the X-Debug-Subject shim.
func authMiddleware(cfg config.Config, prov httpapi.Provisioner, log *zap.Logger) (func(http.Handler) http.Handler, error) {
	if cfg.AuthMode == config.AuthModeDev {
		log.Warn("dev auth enabled; bearer tokens are not verified", zap.String("default_subject", cfg.DevSubject))
		return httpapi.NewDevAuthMiddleware(cfg.DevSubject, prov, log), nil
	}
	jwtCfg, err := config.LoadJWTConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}
	return httpapi.NewAuthMiddleware(jwtverifier.New(jwtCfg), prov, log), nil
}

// senders returns the real providers, or a capturing outbox in dev auth mode.
func senders(cfg config.Config, log *zap.Logger) (sender.EmailSender, sender.WhatsAppSender) {
	if cfg.AuthMode == config.AuthModeDev {
		box := outbox.New()
		log.Warn("dev mode: outbound messages are captured, not delivered")
		return box, box
	}
	return smtp.NewSender(15*time.Second, log.Named("smtp")), whatsapp.NewClient(10*time.Second, log.Named("whatsapp"))
}
