package profilerepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/profilerepo"
)

const (
	pkConstraint    = "profiles_pkey"
	emailConstraint = "profiles_email_unique"

	selectColumns = `
		id, role, status, first_name, last_name, email, phone,
		language, email_opt_in, whatsapp_opt_in, created_at, updated_at`
)

// Repo is a Postgres implementation of profilerepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profiles (
			id, role, status, first_name, last_name, email, phone,
			language, email_opt_in, whatsapp_opt_in, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		string(p.ID),
		string(p.Role),
		string(p.Status),
		p.FirstName,
		p.LastName,
		p.Email,
		p.Phone,
		p.Preferences.Language,
		p.Preferences.EmailOptIn,
		p.Preferences.WhatsAppOptIn,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return mapWriteErr(err)
}

func (r *Repo) Update(ctx context.Context, p domain.Profile) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET role = $2,
		    status = $3,
		    first_name = $4,
		    last_name = $5,
		    email = $6,
		    phone = $7,
		    language = $8,
		    email_opt_in = $9,
		    whatsapp_opt_in = $10,
		    updated_at = $11
		WHERE id = $1
	`,
		string(p.ID),
		string(p.Role),
		string(p.Status),
		p.FirstName,
		p.LastName,
		p.Email,
		p.Phone,
		p.Preferences.Language,
		p.Preferences.EmailOptIn,
		p.Preferences.WhatsAppOptIn,
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.IdentityID) (domain.Profile, error) {
	if r.pool == nil {
		return domain.Profile{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM profiles WHERE id = $1`, string(id))
	return scanProfile(row)
}

func (r *Repo) List(ctx context.Context, f profilerepo.Filter) ([]domain.Profile, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var sb strings.Builder
	sb.WriteString(`SELECT ` + selectColumns + ` FROM profiles WHERE true`)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Role != "" {
		sb.WriteString(" AND role = " + arg(string(f.Role)))
	}
	if f.Status != "" {
		sb.WriteString(" AND status = " + arg(string(f.Status)))
	}
	for _, tok := range tokenize(f.Query) {
		// Match all tokens (AND) in a case-insensitive way.
		sb.WriteString(" AND lower(first_name || ' ' || last_name || ' ' || email) LIKE " + arg("%"+escapeLike(tok)+"%"))
	}
	sb.WriteString(" ORDER BY lower(last_name) ASC, lower(first_name) ASC, id ASC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanProfile)
}

func (r *Repo) Delete(ctx context.Context, id domain.IdentityID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return profilerepo.ErrNotFound
	}
	return nil
}

// --- helpers ---

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, pkConstraint):
		return profilerepo.ErrAlreadyExists
	case postgres.IsUniqueViolation(err, emailConstraint):
		return profilerepo.ErrEmailTaken
	default:
		return err
	}
}

func tokenize(s string) []string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProfile(row postgres.Row) (domain.Profile, error) {
	var (
		id, role, status string
		p                domain.Profile
		createdAt        time.Time
		updatedAt        time.Time
	)
	if err := row.Scan(
		&id,
		&role,
		&status,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.Preferences.Language,
		&p.Preferences.EmailOptIn,
		&p.Preferences.WhatsAppOptIn,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, profilerepo.ErrNotFound
		}
		return domain.Profile{}, err
	}
	p.ID = domain.IdentityID(id)
	p.Role = authz.Role(role)
	p.Status = domain.ProfileStatus(status)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return p, nil
}
