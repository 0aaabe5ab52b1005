package crm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/domain"
	clockport "github.com/chapter-connect/membership-api/internal/ports/out/clock"
	"github.com/chapter-connect/membership-api/internal/ports/out/crmrepo"
)

// Recorder turns domain events into timeline activities. It subscribes to the event bus
// and writes on behalf of the platform, so it is not guarded.
type Recorder struct {
	repo crmrepo.Repository
	clk  clockport.Clock
	log  *zap.Logger
}

func NewRecorder(repo crmrepo.Repository, clk clockport.Clock, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{repo: repo, clk: clk, log: log}
}

func (r *Recorder) HandleEvent(ctx context.Context, ev domain.Event) {
	a, ok := activityFor(ev)
	if !ok {
		return
	}
	a.ID = domain.ActivityID(uuid.NewString())
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.clk.Now()
	}
	if err := r.repo.AddActivity(ctx, a); err != nil {
		r.log.Warn("recording activity failed",
			zap.String("event", ev.EventName()),
			zap.String("profile", string(a.ProfileID)),
			zap.Error(err),
		)
	}
}

func activityFor(ev domain.Event) (domain.Activity, bool) {
	switch e := ev.(type) {
	case domain.RoleChanged:
		return domain.Activity{
			ProfileID:   e.ProfileID,
			Kind:        domain.ActivityRoleChanged,
			Description: fmt.Sprintf("Role changed from %s to %s", e.From, e.To),
			Metadata:    map[string]string{"from": string(e.From), "to": string(e.To)},
			ActorID:     actorPtr(e.ActorID),
			CreatedAt:   e.At,
		}, true
	case domain.StatusChanged:
		return domain.Activity{
			ProfileID:   e.ProfileID,
			Kind:        domain.ActivityStatusChanged,
			Description: fmt.Sprintf("Status changed from %s to %s", e.From, e.To),
			Metadata:    map[string]string{"from": string(e.From), "to": string(e.To)},
			ActorID:     actorPtr(e.ActorID),
			CreatedAt:   e.At,
		}, true
	case domain.MembershipCreated:
		return domain.Activity{
			ProfileID:   e.ProfileID,
			Kind:        domain.ActivityMembershipCreated,
			Description: fmt.Sprintf("%s membership created (%s)", e.Type, e.Status),
			Metadata:    map[string]string{"membershipId": string(e.MembershipID), "type": string(e.Type), "status": string(e.Status)},
			ActorID:     actorPtr(e.ActorID),
			CreatedAt:   e.At,
		}, true
	case domain.MembershipStatusChanged:
		return domain.Activity{
			ProfileID:   e.ProfileID,
			Kind:        domain.ActivityMembershipStatusChanged,
			Description: fmt.Sprintf("Membership status changed from %s to %s", e.From, e.To),
			Metadata:    map[string]string{"membershipId": string(e.MembershipID), "from": string(e.From), "to": string(e.To)},
			ActorID:     actorPtr(e.ActorID),
			CreatedAt:   e.At,
		}, true
	}
	return domain.Activity{}, false
}

func actorPtr(id domain.IdentityID) *domain.IdentityID {
	if id == "" {
		return nil
	}
	return &id
}
