package crmrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chapter-connect/membership-api/internal/domain"
	"github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
)

// Repo is an in-memory implementation of crmrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	activities   []domain.Activity
	interactions []domain.Interaction
	notes        map[domain.NoteID]domain.Note
	tags         map[domain.IdentityID]map[string]domain.Tag
	followUps    map[domain.FollowUpID]domain.FollowUp
}

func NewRepo() *Repo {
	return &Repo{
		notes:     make(map[domain.NoteID]domain.Note),
		tags:      make(map[domain.IdentityID]map[string]domain.Tag),
		followUps: make(map[domain.FollowUpID]domain.FollowUp),
	}
}

func (r *Repo) AddActivity(ctx context.Context, a domain.Activity) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, cloneActivity(a))
	return nil
}

func (r *Repo) ListActivities(ctx context.Context, profileID domain.IdentityID, limit int) ([]domain.Activity, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.ProfileID == profileID {
			out = append(out, cloneActivity(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Repo) AddInteraction(ctx context.Context, i domain.Interaction) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions = append(r.interactions, i)
	return nil
}

func (r *Repo) ListInteractions(ctx context.Context, profileID domain.IdentityID) ([]domain.Interaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Interaction, 0)
	for _, i := range r.interactions {
		if i.ProfileID == profileID {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].OccurredAt.Equal(out[b].OccurredAt) {
			return out[a].OccurredAt.After(out[b].OccurredAt)
		}
		return out[a].ID > out[b].ID
	})
	return out, nil
}

func (r *Repo) AddNote(ctx context.Context, n domain.Note) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes[n.ID] = n
	return nil
}

func (r *Repo) GetNote(ctx context.Context, id domain.NoteID) (domain.Note, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notes[id]
	if !ok {
		return domain.Note{}, crmrepo.ErrNotFound
	}
	return n, nil
}

func (r *Repo) ListNotes(ctx context.Context, profileID domain.IdentityID) ([]domain.Note, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Note, 0)
	for _, n := range r.notes {
		if n.ProfileID == profileID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *Repo) DeleteNote(ctx context.Context, id domain.NoteID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.notes[id]; !ok {
		return crmrepo.ErrNotFound
	}
	delete(r.notes, id)
	return nil
}

func (r *Repo) AddTag(ctx context.Context, t domain.Tag) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	byName := r.tags[t.ProfileID]
	if byName == nil {
		byName = make(map[string]domain.Tag)
		r.tags[t.ProfileID] = byName
	}
	key := strings.ToLower(t.Name)
	if _, ok := byName[key]; ok {
		return crmrepo.ErrTagExists
	}
	byName[key] = cloneTag(t)
	return nil
}

func (r *Repo) ListTags(ctx context.Context, profileID domain.IdentityID) ([]domain.Tag, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Tag, 0, len(r.tags[profileID]))
	for _, t := range r.tags[profileID] {
		out = append(out, cloneTag(t))
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (r *Repo) RemoveTag(ctx context.Context, profileID domain.IdentityID, name string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	if _, ok := r.tags[profileID][key]; !ok {
		return crmrepo.ErrNotFound
	}
	delete(r.tags[profileID], key)
	return nil
}

func (r *Repo) AddFollowUp(ctx context.Context, f domain.FollowUp) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followUps[f.ID] = cloneFollowUp(f)
	return nil
}

func (r *Repo) GetFollowUp(ctx context.Context, id domain.FollowUpID) (domain.FollowUp, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.followUps[id]
	if !ok {
		return domain.FollowUp{}, crmrepo.ErrNotFound
	}
	return cloneFollowUp(f), nil
}

func (r *Repo) UpdateFollowUp(ctx context.Context, f domain.FollowUp) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.followUps[f.ID]; !ok {
		return crmrepo.ErrNotFound
	}
	r.followUps[f.ID] = cloneFollowUp(f)
	return nil
}

func (r *Repo) ListFollowUps(ctx context.Context, f crmrepo.FollowUpFilter) ([]domain.FollowUp, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.FollowUp, 0)
	for _, fu := range r.followUps {
		if f.ProfileID != nil && fu.ProfileID != *f.ProfileID {
			continue
		}
		if f.AssigneeID != nil && (fu.AssigneeID == nil || *fu.AssigneeID != *f.AssigneeID) {
			continue
		}
		if f.OpenOnly && fu.Done() {
			continue
		}
		if f.DueBefore != nil && !fu.DueAt.Before(*f.DueBefore) {
			continue
		}
		out = append(out, cloneFollowUp(fu))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) DeleteByProfile(ctx context.Context, profileID domain.IdentityID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	acts := r.activities[:0]
	for _, a := range r.activities {
		if a.ProfileID != profileID {
			acts = append(acts, a)
		}
	}
	r.activities = acts

	ints := r.interactions[:0]
	for _, i := range r.interactions {
		if i.ProfileID != profileID {
			ints = append(ints, i)
		}
	}
	r.interactions = ints

	for id, n := range r.notes {
		if n.ProfileID == profileID {
			delete(r.notes, id)
		}
	}
	delete(r.tags, profileID)
	for id, f := range r.followUps {
		if f.ProfileID == profileID {
			delete(r.followUps, id)
		}
	}
	return nil
}

func cloneActivity(a domain.Activity) domain.Activity {
	out := a
	if a.ActorID != nil {
		v := *a.ActorID
		out.ActorID = &v
	}
	if a.Metadata != nil {
		out.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func cloneTag(t domain.Tag) domain.Tag {
	out := t
	if t.Color != nil {
		v := *t.Color
		out.Color = &v
	}
	return out
}

func cloneFollowUp(f domain.FollowUp) domain.FollowUp {
	out := f
	if f.AssigneeID != nil {
		v := *f.AssigneeID
		out.AssigneeID = &v
	}
	if f.CompletedAt != nil {
		v := *f.CompletedAt
		out.CompletedAt = &v
	}
	return out
}
