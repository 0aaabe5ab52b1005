package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chapter-connect/membership-api/internal/ports/out/idempotency"
)

// Store is a Postgres implementation of idempotency.Store. Records older than ttl are
// treated as absent and pruned lazily on write.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore builds a store with the given retention. ttl <= 0 keeps records forever.
func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	row := s.pool.QueryRow(ctx, `
		SELECT status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
		  AND subject = $2
		  AND method = $3
		  AND route = $4
		  AND body_hash = $5
		  AND ($6::timestamptz IS NULL OR created_at >= $6)
	`,
		string(fp.Key),
		string(fp.Subject),
		fp.Method,
		fp.Route,
		fp.BodyHash,
		s.cutoff(),
	)
	var rec idempotency.Record
	if err := row.Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if cutoff := s.cutoff(); cutoff != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, *cutoff); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (
				idempotency_key,
				subject,
				method,
				route,
				body_hash,
				status_code,
				content_type,
				body,
				created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (idempotency_key, subject, method, route, body_hash)
			DO UPDATE SET
				status_code = EXCLUDED.status_code,
				content_type = EXCLUDED.content_type,
				body = EXCLUDED.body,
				created_at = EXCLUDED.created_at
		`,
			string(fp.Key),
			string(fp.Subject),
			fp.Method,
			fp.Route,
			fp.BodyHash,
			rec.StatusCode,
			rec.ContentType,
			rec.Body,
			createdAt.UTC(),
		)
		return err
	})
}

func (s *Store) Reserve(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errors.New("nil postgres pool")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	body := rec.Body
	if body == nil {
		body = []byte{}
	}

	var existing idempotency.Record
	created := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if cutoff := s.cutoff(); cutoff != nil {
			if _, err := tx.Exec(ctx, `
				DELETE FROM idempotency_keys
				WHERE idempotency_key = $1 AND subject = $2 AND method = $3 AND route = $4 AND body_hash = $5
				  AND created_at < $6
			`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash, *cutoff); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (
				idempotency_key, subject, method, route, body_hash,
				status_code, content_type, body, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (idempotency_key, subject, method, route, body_hash) DO NOTHING
		`,
			string(fp.Key),
			string(fp.Subject),
			fp.Method,
			fp.Route,
			fp.BodyHash,
			rec.StatusCode,
			rec.ContentType,
			body,
			createdAt.UTC(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			created = true
			return nil
		}
		return tx.QueryRow(ctx, `
			SELECT status_code, content_type, body, created_at
			FROM idempotency_keys
			WHERE idempotency_key = $1 AND subject = $2 AND method = $3 AND route = $4 AND body_hash = $5
		`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash,
		).Scan(&existing.StatusCode, &existing.ContentType, &existing.Body, &existing.CreatedAt)
	})
	if err != nil {
		return idempotency.Record{}, false, err
	}
	existing.CreatedAt = existing.CreatedAt.UTC()
	return existing, created, nil
}

func (s *Store) Delete(ctx context.Context, fp idempotency.Fingerprint) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE idempotency_key = $1 AND subject = $2 AND method = $3 AND route = $4 AND body_hash = $5
	`, string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash)
	return err
}

func (s *Store) cutoff() *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	c := time.Now().UTC().Add(-s.ttl)
	return &c
}
