package crmrepo

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
	"github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
)

// Repo is a Postgres implementation of crmrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// --- activities ---

func (r *Repo) AddActivity(ctx context.Context, a domain.Activity) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	meta := a.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO activities (id, profile_id, kind, description, metadata, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(a.ID),
		string(a.ProfileID),
		string(a.Kind),
		a.Description,
		meta,
		postgres.NullableID(a.ActorID),
		a.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) ListActivities(ctx context.Context, profileID domain.IdentityID, limit int) ([]domain.Activity, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	q := `
		SELECT id, profile_id, kind, description, metadata, actor_id, created_at
		FROM activities
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []any{string(profileID)}
	if limit > 0 {
		q += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, func(row postgres.Row) (domain.Activity, error) {
		var (
			a             domain.Activity
			id, pid, kind string
			actorID       *string
			createdAt     time.Time
		)
		if err := row.Scan(&id, &pid, &kind, &a.Description, &a.Metadata, &actorID, &createdAt); err != nil {
			return domain.Activity{}, err
		}
		a.ID = domain.ActivityID(id)
		a.ProfileID = domain.IdentityID(pid)
		a.Kind = domain.ActivityKind(kind)
		a.ActorID = postgres.IDPtr[domain.IdentityID](actorID)
		a.CreatedAt = createdAt.UTC()
		return a, nil
	})
}

// --- interactions ---

func (r *Repo) AddInteraction(ctx context.Context, i domain.Interaction) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO interactions (id, profile_id, channel, summary, occurred_at, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(i.ID),
		string(i.ProfileID),
		string(i.Channel),
		i.Summary,
		i.OccurredAt.UTC(),
		string(i.ActorID),
		i.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) ListInteractions(ctx context.Context, profileID domain.IdentityID) ([]domain.Interaction, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, profile_id, channel, summary, occurred_at, actor_id, created_at
		FROM interactions
		WHERE profile_id = $1
		ORDER BY occurred_at DESC, id DESC
	`, string(profileID))
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, func(row postgres.Row) (domain.Interaction, error) {
		var (
			i                       domain.Interaction
			id, pid, channel, actor string
			occurredAt, createdAt   time.Time
		)
		if err := row.Scan(&id, &pid, &channel, &i.Summary, &occurredAt, &actor, &createdAt); err != nil {
			return domain.Interaction{}, err
		}
		i.ID = domain.InteractionID(id)
		i.ProfileID = domain.IdentityID(pid)
		i.Channel = domain.InteractionChannel(channel)
		i.ActorID = domain.IdentityID(actor)
		i.OccurredAt = occurredAt.UTC()
		i.CreatedAt = createdAt.UTC()
		return i, nil
	})
}

// --- notes ---

const noteColumns = `id, profile_id, author_id, body, is_private, created_at`

func (r *Repo) AddNote(ctx context.Context, n domain.Note) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notes (id, profile_id, author_id, body, is_private, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		string(n.ID),
		string(n.ProfileID),
		string(n.AuthorID),
		n.Body,
		n.IsPrivate,
		n.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetNote(ctx context.Context, id domain.NoteID) (domain.Note, error) {
	if r.pool == nil {
		return domain.Note{}, errors.New("nil postgres pool")
	}
	return scanNote(r.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = $1`, string(id)))
}

func (r *Repo) ListNotes(ctx context.Context, profileID domain.IdentityID) ([]domain.Note, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+noteColumns+`
		FROM notes
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
	`, string(profileID))
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanNote)
}

func (r *Repo) DeleteNote(ctx context.Context, id domain.NoteID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, string(id))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return crmrepo.ErrNotFound
	}
	return nil
}

func scanNote(row postgres.Row) (domain.Note, error) {
	var (
		n               domain.Note
		id, pid, author string
		createdAt       time.Time
	)
	if err := row.Scan(&id, &pid, &author, &n.Body, &n.IsPrivate, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Note{}, crmrepo.ErrNotFound
		}
		return domain.Note{}, err
	}
	n.ID = domain.NoteID(id)
	n.ProfileID = domain.IdentityID(pid)
	n.AuthorID = domain.IdentityID(author)
	n.CreatedAt = createdAt.UTC()
	return n, nil
}

// --- tags ---

func (r *Repo) AddTag(ctx context.Context, t domain.Tag) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO profile_tags (profile_id, name, color, created_at)
		VALUES ($1, $2, $3, $4)
	`,
		string(t.ProfileID),
		t.Name,
		t.Color,
		t.CreatedAt.UTC(),
	)
	if postgres.IsUniqueViolation(err, "profile_tags_name_unique") {
		return crmrepo.ErrTagExists
	}
	return err
}

func (r *Repo) ListTags(ctx context.Context, profileID domain.IdentityID) ([]domain.Tag, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT profile_id, name, color, created_at
		FROM profile_tags
		WHERE profile_id = $1
		ORDER BY lower(name) ASC
	`, string(profileID))
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, func(row postgres.Row) (domain.Tag, error) {
		var (
			t         domain.Tag
			pid       string
			createdAt time.Time
		)
		if err := row.Scan(&pid, &t.Name, &t.Color, &createdAt); err != nil {
			return domain.Tag{}, err
		}
		t.ProfileID = domain.IdentityID(pid)
		t.CreatedAt = createdAt.UTC()
		return t, nil
	})
}

func (r *Repo) RemoveTag(ctx context.Context, profileID domain.IdentityID, name string) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM profile_tags WHERE profile_id = $1 AND lower(name) = lower($2)`, string(profileID), name)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return crmrepo.ErrNotFound
	}
	return nil
}

// --- follow-ups ---

const followUpColumns = `id, profile_id, assignee_id, title, due_at, completed_at, created_at`

func (r *Repo) AddFollowUp(ctx context.Context, f domain.FollowUp) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO follow_ups (id, profile_id, assignee_id, title, due_at, completed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		string(f.ID),
		string(f.ProfileID),
		postgres.NullableID(f.AssigneeID),
		f.Title,
		f.DueAt.UTC(),
		f.CompletedAt,
		f.CreatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetFollowUp(ctx context.Context, id domain.FollowUpID) (domain.FollowUp, error) {
	if r.pool == nil {
		return domain.FollowUp{}, errors.New("nil postgres pool")
	}
	return scanFollowUp(r.pool.QueryRow(ctx, `SELECT `+followUpColumns+` FROM follow_ups WHERE id = $1`, string(id)))
}

func (r *Repo) UpdateFollowUp(ctx context.Context, f domain.FollowUp) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE follow_ups
		SET assignee_id = $2,
		    title = $3,
		    due_at = $4,
		    completed_at = $5
		WHERE id = $1
	`,
		string(f.ID),
		postgres.NullableID(f.AssigneeID),
		f.Title,
		f.DueAt.UTC(),
		f.CompletedAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return crmrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) ListFollowUps(ctx context.Context, f crmrepo.FollowUpFilter) ([]domain.FollowUp, error) {
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
	if f.ProfileID != nil {
		add("profile_id = $%d", string(*f.ProfileID))
	}
	if f.AssigneeID != nil {
		add("assignee_id = $%d", string(*f.AssigneeID))
	}
	if f.OpenOnly {
		where = append(where, "completed_at IS NULL")
	}
	if f.DueBefore != nil {
		add("due_at < $%d", f.DueBefore.UTC())
	}
	q := `SELECT ` + followUpColumns + ` FROM follow_ups`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY due_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return postgres.CollectRows(rows, scanFollowUp)
}

func scanFollowUp(row postgres.Row) (domain.FollowUp, error) {
	var (
		f                domain.FollowUp
		id, pid          string
		assignee         *string
		dueAt, createdAt time.Time
	)
	if err := row.Scan(&id, &pid, &assignee, &f.Title, &dueAt, &f.CompletedAt, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FollowUp{}, crmrepo.ErrNotFound
		}
		return domain.FollowUp{}, err
	}
	f.ID = domain.FollowUpID(id)
	f.ProfileID = domain.IdentityID(pid)
	f.AssigneeID = postgres.IDPtr[domain.IdentityID](assignee)
	f.DueAt = dueAt.UTC()
	if f.CompletedAt != nil {
		c := f.CompletedAt.UTC()
		f.CompletedAt = &c
	}
	f.CreatedAt = createdAt.UTC()
	return f, nil
}

// --- cascade ---

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, table := range []string{"activities", "interactions", "notes", "profile_tags", "follow_ups"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE profile_id = $1`, string(profileID)); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		return nil
	})
}
