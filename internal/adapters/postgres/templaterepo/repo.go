package templaterepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/templaterepo"
)

const (
	nameConstraint = "message_templates_name_unique"
	selectColumns  = `id, name, channel, subject, content, variables, is_active, created_by, created_at, updated_at`
)

// Repo is a Postgres implementation of templaterepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, t domain.Template) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO message_templates (
			id, name, channel, subject, content, variables, is_active, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		string(t.ID),
		t.Name,
		string(t.Channel),
		t.Subject,
		t.Content,
		variables(t.Variables),
		t.IsActive,
		postgres.NullableID(t.CreatedBy),
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if postgres.IsUniqueViolation(err, nameConstraint) {
		return templaterepo.ErrNameTaken
	}
	return err
}

func (r *Repo) Update(ctx context.Context, t domain.Template) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE message_templates
		SET name = $2,
		    channel = $3,
		    subject = $4,
		    content = $5,
		    variables = $6,
		    is_active = $7,
		    updated_at = $8
		WHERE id = $1
	`,
		string(t.ID),
		t.Name,
		string(t.Channel),
		t.Subject,
		t.Content,
		variables(t.Variables),
		t.IsActive,
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, nameConstraint) {
			return templaterepo.ErrNameTaken
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return templaterepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.TemplateID) (domain.Template, error) {
	if r.pool == nil {
		return domain.Template{}, errors.New("nil postgres pool")
	}
	return scanTemplate(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM message_templates WHERE id = $1`, string(id)))
}

func (r *Repo) List(ctx context.Context, activeOnly bool) ([]domain.Template, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM message_templates
		WHERE ($1 = false OR is_active)
		ORDER BY lower(name) ASC, id ASC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanTemplate)
}

func (r *Repo) Delete(ctx context.Context, id domain.TemplateID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM message_templates WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return templaterepo.ErrNotFound
	}
	return nil
}

func variables(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func scanTemplate(row postgres.Row) (domain.Template, error) {
	var (
		id, channel          string
		createdBy            *string
		t                    domain.Template
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(
		&id,
		&t.Name,
		&channel,
		&t.Subject,
		&t.Content,
		&t.Variables,
		&t.IsActive,
		&createdBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Template{}, templaterepo.ErrNotFound
		}
		return domain.Template{}, err
	}
	t.ID = domain.TemplateID(id)
	t.Channel = domain.Channel(channel)
	t.CreatedBy = postgres.IDPtr[domain.IdentityID](createdBy)
	t.CreatedAt = createdAt.UTC()
	t.UpdatedAt = updatedAt.UTC()
	return t, nil
}
