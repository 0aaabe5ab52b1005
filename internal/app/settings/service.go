package settings

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/access"
	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
)

type Service struct {
	repo  settingsrepo.Repository
	guard *access.Guard
	clk   clockport.Clock
	log   *zap.Logger
}

func NewService(repo settingsrepo.Repository, guard *access.Guard, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, guard: guard, clk: clk, log: log}
}

// Get returns the organization settings with secrets redacted. Unsaved settings read as
// defaults.
func (s *Service) Get(ctx context.Context, actor domain.IdentityID) (domain.OrganizationSettings, error) {
	if err := s.guard.Check(ctx, actor, authz.TableOrganizationSettings, authz.ActionRead, ""); err != nil {
		return domain.OrganizationSettings{}, err
	}
	cur, err := s.load(ctx)
	if err != nil {
		return domain.OrganizationSettings{}, err
	}
	return cur.Redacted(), nil
}

// Put replaces the settings. A secret sent back as the redaction marker, or left empty,
// keeps the stored value.
func (s *Service) Put(ctx context.Context, actor domain.IdentityID, in domain.OrganizationSettings) (domain.OrganizationSettings, error) {
	if err := s.guard.Check(ctx, actor, authz.TableOrganizationSettings, authz.ActionUpdate, ""); err != nil {
		return domain.OrganizationSettings{}, err
	}
	cur, err := s.load(ctx)
	if err != nil {
		return domain.OrganizationSettings{}, err
	}

	next := normalize(in)
	if next.Email.Password == "" || next.Email.Password == domain.RedactedSecret {
		next.Email.Password = cur.Email.Password
	}
	if next.WhatsApp.APIKey == "" || next.WhatsApp.APIKey == domain.RedactedSecret {
		next.WhatsApp.APIKey = cur.WhatsApp.APIKey
	}
	if problems := validate(next); len(problems) > 0 {
		return domain.OrganizationSettings{}, apperr.Validation("invalid settings", problems)
	}

	next.UpdatedAt = s.clk.Now()
	by := actor
	next.UpdatedBy = &by
	if err := s.repo.Put(ctx, next); err != nil {
		return domain.OrganizationSettings{}, err
	}
	s.log.Info("organization settings updated", zap.String("actor", string(actor)))
	return next.Redacted(), nil
}

func (s *Service) load(ctx context.Context) (domain.OrganizationSettings, error) {
	cur, err := s.repo.Get(ctx)
	if errors.Is(err, settingsrepo.ErrNotConfigured) {
		return domain.OrganizationSettings{Email: domain.SMTPConfig{Port: domain.DefaultSMTPPort, UseTLS: true}}, nil
	}
	return cur, err
}

func normalize(in domain.OrganizationSettings) domain.OrganizationSettings {
	out := in
	out.ChapterName = domain.NormalizeHumanName(in.ChapterName)
	out.Email.Host = strings.TrimSpace(in.Email.Host)
	out.Email.Username = strings.TrimSpace(in.Email.Username)
	out.Email.FromEmail = strings.TrimSpace(in.Email.FromEmail)
	out.Email.FromName = strings.TrimSpace(in.Email.FromName)
	if out.Email.Port == 0 {
		out.Email.Port = domain.DefaultSMTPPort
	}
	out.WhatsApp.APIURL = strings.TrimRight(strings.TrimSpace(in.WhatsApp.APIURL), "/")
	out.WhatsApp.InstanceName = strings.TrimSpace(in.WhatsApp.InstanceName)
	if in.WhatsApp.WebhookURL != nil {
		v := strings.TrimSpace(*in.WhatsApp.WebhookURL)
		if v == "" {
			out.WhatsApp.WebhookURL = nil
		} else {
			out.WhatsApp.WebhookURL = &v
		}
	}
	return out
}

func validate(s domain.OrganizationSettings) map[string]any {
	problems := map[string]any{}
	if s.Email.Port < 1 || s.Email.Port > 65535 {
		problems["email.port"] = "must be between 1 and 65535"
	}
	if s.Email.FromEmail != "" {
		if addr, err := mail.ParseAddress(s.Email.FromEmail); err != nil || addr.Address != s.Email.FromEmail {
			problems["email.fromEmail"] = "must be a bare email address"
		}
	}
	if s.Email.Host != "" && s.Email.FromEmail == "" {
		problems["email.fromEmail"] = "is required when a host is set"
	}
	if s.WhatsApp.APIURL != "" && !httpURL(s.WhatsApp.APIURL) {
		problems["whatsapp.apiUrl"] = "must be an http(s) URL"
	}
	if s.WhatsApp.WebhookURL != nil && !httpURL(*s.WhatsApp.WebhookURL) {
		problems["whatsapp.webhookUrl"] = "must be an http(s) URL"
	}
	return problems
}

func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
