package membershiprepo

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
	"github.com/chapter-connect/membership-api/internal/ports/out/membershiprepo"
)

const selectColumns = `
	id, profile_id, type, payment_cadence, fee_minor, currency, status,
	start_date, expiry_date, member_number, created_at, updated_at`

// Repo is a Postgres implementation of membershiprepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, m domain.Membership) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO memberships (
			id, profile_id, type, payment_cadence, fee_minor, currency, status,
			start_date, expiry_date, member_number, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		string(m.ID),
		string(m.ProfileID),
		string(m.Type),
		string(m.Cadence),
		m.Fee.AmountMinor,
		m.Fee.Currency,
		string(m.Status),
		domain.DateOnly(m.StartDate),
		domain.DateOnly(m.ExpiryDate),
		m.MemberNumber,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
	return mapWriteErr(err)
}

func (r *Repo) Update(ctx context.Context, m domain.Membership) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE memberships
		SET type = $2,
		    payment_cadence = $3,
		    fee_minor = $4,
		    currency = $5,
		    status = $6,
		    start_date = $7,
		    expiry_date = $8,
		    member_number = $9,
		    updated_at = $10
		WHERE id = $1
	`,
		string(m.ID),
		string(m.Type),
		string(m.Cadence),
		m.Fee.AmountMinor,
		m.Fee.Currency,
		string(m.Status),
		domain.DateOnly(m.StartDate),
		domain.DateOnly(m.ExpiryDate),
		m.MemberNumber,
		m.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteErr(err)
	}
	if ct.RowsAffected() == 0 {
		return membershiprepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.MembershipID) (domain.Membership, error) {
	if r.pool == nil {
		return domain.Membership{}, errors.New("nil postgres pool")
	}
	return scanMembership(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM memberships WHERE id = $1`, string(id)))
}

func (r *Repo) GetByProfile(ctx context.Context, profileID domain.IdentityID) (domain.Membership, error) {
	if r.pool == nil {
		return domain.Membership{}, errors.New("nil postgres pool")
	}
	return scanMembership(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM memberships WHERE profile_id = $1`, string(profileID)))
}

func (r *Repo) List(ctx context.Context, f membershiprepo.Filter) ([]domain.Membership, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	q := `SELECT ` + selectColumns + ` FROM memberships`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY member_number ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanMembership)
}

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE profile_id = $1`, string(profileID))
	return err
}

// NextMemberNumber draws from a sequence, so numbers are never reused even after deletes.
func (r *Repo) NextMemberNumber(ctx context.Context) (string, error) {
	if r.pool == nil {
		return "", errors.New("nil postgres pool")
	}
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('member_number_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return domain.FormatMemberNumber(n), nil
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err, "memberships_profile_unique"):
		return membershiprepo.ErrAlreadyExists
	case postgres.IsUniqueViolation(err, "memberships_member_number_unique"):
		return membershiprepo.ErrMemberNumberTaken
	case postgres.IsForeignKeyViolation(err, "memberships_profile_id_fkey"):
		return membershiprepo.ErrProfileMissing
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.CheckViolationCode && pe.ConstraintName == "memberships_window" {
		return domain.ErrInvalidValidityWindow
	}
	return err
}

func scanMembership(row postgres.Row) (domain.Membership, error) {
	var (
		id, profileID, typ, cadence, status string
		m                                   domain.Membership
		start, expiry                       time.Time
		createdAt, updatedAt                time.Time
	)
	if err := row.Scan(
		&id,
		&profileID,
		&typ,
		&cadence,
		&m.Fee.AmountMinor,
		&m.Fee.Currency,
		&status,
		&start,
		&expiry,
		&m.MemberNumber,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, membershiprepo.ErrNotFound
		}
		return domain.Membership{}, err
	}
	m.ID = domain.MembershipID(id)
	m.ProfileID = domain.IdentityID(profileID)
	m.Type = domain.MembershipType(typ)
	m.Cadence = domain.PaymentCadence(cadence)
	m.Status = domain.MembershipStatus(status)
	m.StartDate = domain.DateOnly(start)
	m.ExpiryDate = domain.DateOnly(expiry)
	m.CreatedAt = createdAt.UTC()
	m.UpdatedAt = updatedAt.UTC()
	return m, nil
}
