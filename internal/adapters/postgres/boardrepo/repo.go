package boardrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/chapter-connect/membership-api/internal/adapters/postgres"
	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/boardrepo"
)

const (
	selectColumns = `id, profile_id, title, level, is_active, start_date, end_date, created_at, updated_at`
	orderBy       = ` ORDER BY start_date DESC NULLS LAST, lower(title) ASC, id ASC`
)

// Repo is a Postgres implementation of boardrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, p domain.BoardPosition) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO board_positions (
			id, profile_id, title, level, is_active, start_date, end_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		string(p.ID),
		string(p.ProfileID),
		p.Title,
		string(p.Level),
		p.IsActive,
		datePtr(p.StartDate),
		datePtr(p.EndDate),
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repo) Update(ctx context.Context, p domain.BoardPosition) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE board_positions
		SET title = $2,
		    level = $3,
		    is_active = $4,
		    start_date = $5,
		    end_date = $6,
		    updated_at = $7
		WHERE id = $1
	`,
		string(p.ID),
		p.Title,
		string(p.Level),
		p.IsActive,
		datePtr(p.StartDate),
		datePtr(p.EndDate),
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return boardrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.BoardPositionID) (domain.BoardPosition, error) {
	if r.pool == nil {
		return domain.BoardPosition{}, errors.New("nil postgres pool")
	}
	return scanPosition(r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM board_positions WHERE id = $1`, string(id)))
}

func (r *Repo) Delete(ctx context.Context, id domain.BoardPositionID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM board_positions WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return boardrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) ListByProfile(ctx context.Context, profileID domain.IdentityID) ([]domain.BoardPosition, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM board_positions WHERE profile_id = $1`+orderBy, string(profileID))
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanPosition)
}

func (r *Repo) ListActive(ctx context.Context) ([]domain.BoardPosition, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM board_positions WHERE is_active`+orderBy)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanPosition)
}

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM board_positions WHERE profile_id = $1`, string(profileID))
	return err
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := domain.DateOnly(*t)
	return &d
}

func scanPosition(row postgres.Row) (domain.BoardPosition, error) {
	var (
		id, profileID, level string
		p                    domain.BoardPosition
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(
		&id,
		&profileID,
		&p.Title,
		&level,
		&p.IsActive,
		&p.StartDate,
		&p.EndDate,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.BoardPosition{}, boardrepo.ErrNotFound
		}
		return domain.BoardPosition{}, err
	}
	p.ID = domain.BoardPositionID(id)
	p.ProfileID = domain.IdentityID(profileID)
	p.Level = domain.PositionLevel(level)
	p.StartDate = datePtr(p.StartDate)
	p.EndDate = datePtr(p.EndDate)
	p.CreatedAt = createdAt.UTC()
	p.UpdatedAt = updatedAt.UTC()
	return p, nil
}
