package settingsrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/settingsrepo"
)

// Repo is a Postgres implementation of settingsrepo.Repository backed by a single-row table.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Get(ctx context.Context) (domain.OrganizationSettings, error) {
	if r.pool == nil {
		return domain.OrganizationSettings{}, errors.New("nil postgres pool")
	}
	var (
		s         domain.OrganizationSettings
		updatedAt time.Time
		updatedBy *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT
			chapter_name,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_use_tls,
			smtp_from_email, smtp_from_name,
			whatsapp_api_url, whatsapp_api_key, whatsapp_instance, whatsapp_webhook_url,
			updated_at, updated_by
		FROM organization_settings
		WHERE singleton
	`).Scan(
		&s.ChapterName,
		&s.Email.Host,
		&s.Email.Port,
		&s.Email.Username,
		&s.Email.Password,
		&s.Email.UseTLS,
		&s.Email.FromEmail,
		&s.Email.FromName,
		&s.WhatsApp.APIURL,
		&s.WhatsApp.APIKey,
		&s.WhatsApp.InstanceName,
		&s.WhatsApp.WebhookURL,
		&updatedAt,
		&updatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrganizationSettings{}, settingsrepo.ErrNotConfigured
		}
		return domain.OrganizationSettings{}, err
	}
	s.UpdatedAt = updatedAt.UTC()
	s.UpdatedBy = postgres.IDPtr[domain.IdentityID](updatedBy)
	return s, nil
}

func (r *Repo) Put(ctx context.Context, s domain.OrganizationSettings) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organization_settings (
			singleton, chapter_name,
			smtp_host, smtp_port, smtp_username, smtp_password, smtp_use_tls,
			smtp_from_email, smtp_from_name,
			whatsapp_api_url, whatsapp_api_key, whatsapp_instance, whatsapp_webhook_url,
			updated_at, updated_by
		) VALUES (true, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (singleton) DO UPDATE SET
			chapter_name = EXCLUDED.chapter_name,
			smtp_host = EXCLUDED.smtp_host,
			smtp_port = EXCLUDED.smtp_port,
			smtp_username = EXCLUDED.smtp_username,
			smtp_password = EXCLUDED.smtp_password,
			smtp_use_tls = EXCLUDED.smtp_use_tls,
			smtp_from_email = EXCLUDED.smtp_from_email,
			smtp_from_name = EXCLUDED.smtp_from_name,
			whatsapp_api_url = EXCLUDED.whatsapp_api_url,
			whatsapp_api_key = EXCLUDED.whatsapp_api_key,
			whatsapp_instance = EXCLUDED.whatsapp_instance,
			whatsapp_webhook_url = EXCLUDED.whatsapp_webhook_url,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`,
		s.ChapterName,
		s.Email.Host,
		s.Email.Port,
		s.Email.Username,
		s.Email.Password,
		s.Email.UseTLS,
		s.Email.FromEmail,
		s.Email.FromName,
		s.WhatsApp.APIURL,
		s.WhatsApp.APIKey,
		s.WhatsApp.InstanceName,
		s.WhatsApp.WebhookURL,
		s.UpdatedAt.UTC(),
		postgres.NullableID(s.UpdatedBy),
	)
	return err
}
