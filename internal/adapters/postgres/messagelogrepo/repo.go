package messagelogrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/messagelogrepo"
)

const selectColumns = `
	id, template_id, recipient_id, recipient_email, recipient_phone, channel, subject,
	content, variables_used, status, error_message, provider_message_id,
	sent_at, delivered_at, created_at`

// Repo is a Postgres implementation of messagelogrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, l domain.MessageLog) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_logs (
			id, template_id, recipient_id, recipient_email, recipient_phone, channel, subject,
			content, variables_used, status, error_message, provider_message_id,
			sent_at, delivered_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		string(l.ID),
		postgres.NullableID(l.TemplateID),
		postgres.NullableID(l.RecipientID),
		l.RecipientEmail,
		l.RecipientPhone,
		string(l.Channel),
		l.Subject,
		l.Content,
		variables(l.VariablesUsed),
		string(l.Status),
		l.ErrorMessage,
		l.ProviderMessageID,
		utcPtr(l.SentAt),
		utcPtr(l.DeliveredAt),
		l.CreatedAt.UTC(),
	)
	return err
}

// Update persists delivery progress. Content and addressing are immutable once logged.
func (r *Repo) Update(ctx context.Context, l domain.MessageLog) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE message_logs
		SET template_id = $2,
		    recipient_id = $3,
		    status = $4,
		    error_message = $5,
		    provider_message_id = $6,
		    sent_at = $7,
		    delivered_at = $8
		WHERE id = $1
	`,
		string(l.ID),
		postgres.NullableID(l.TemplateID),
		postgres.NullableID(l.RecipientID),
		string(l.Status),
		l.ErrorMessage,
		l.ProviderMessageID,
		utcPtr(l.SentAt),
		utcPtr(l.DeliveredAt),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return messagelogrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.MessageLogID) (domain.MessageLog, error) {
	if r.pool == nil {
		return domain.MessageLog{}, errors.New("nil postgres pool")
	}
	return scanLog(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM message_logs WHERE id = $1`, string(id)))
}

func (r *Repo) GetByProviderMessageID(ctx context.Context, providerID string) (domain.MessageLog, error) {
	if r.pool == nil {
		return domain.MessageLog{}, errors.New("nil postgres pool")
	}
	return scanLog(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM message_logs WHERE provider_message_id = $1`, providerID))
}

func (r *Repo) List(ctx context.Context, f messagelogrepo.Filter) ([]domain.MessageLog, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.RecipientID != nil {
		add("recipient_id = $%d", string(*f.RecipientID))
	}
	if f.TemplateID != nil {
		add("template_id = $%d", string(*f.TemplateID))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	q := `SELECT ` + selectColumns + ` FROM message_logs`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, id ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanLog)
}

func (r *Repo) DetachTemplate(ctx context.Context, id domain.TemplateID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `UPDATE message_logs SET template_id = NULL WHERE template_id = $1`, string(id))
	return err
}

func (r *Repo) DetachRecipient(ctx context.Context, id domain.IdentityID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `UPDATE message_logs SET recipient_id = NULL WHERE recipient_id = $1`, string(id))
	return err
}

func variables(v map[string]string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func scanLog(row postgres.Row) (domain.MessageLog, error) {
	var (
		id, channel, status     string
		templateID, recipientID *string
		l                       domain.MessageLog
		createdAt               time.Time
	)
	if err := row.Scan(
		&id,
		&templateID,
		&recipientID,
		&l.RecipientEmail,
		&l.RecipientPhone,
		&channel,
		&l.Subject,
		&l.Content,
		&l.VariablesUsed,
		&status,
		&l.ErrorMessage,
		&l.ProviderMessageID,
		&l.SentAt,
		&l.DeliveredAt,
		&createdAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MessageLog{}, messagelogrepo.ErrNotFound
		}
		return domain.MessageLog{}, err
	}
	l.ID = domain.MessageLogID(id)
	l.TemplateID = postgres.IDPtr[domain.TemplateID](templateID)
	l.RecipientID = postgres.IDPtr[domain.IdentityID](recipientID)
	l.Channel = domain.Channel(channel)
	l.Status = domain.DeliveryStatus(status)
	l.SentAt = utcPtr(l.SentAt)
	l.DeliveredAt = utcPtr(l.DeliveredAt)
	l.CreatedAt = createdAt.UTC()
	return l, nil
}
