// Package access enforces table rules at the storage boundary.
package access

import (
	"context"

	"go.uber.org/zap"

	"github.com/chapter-connect/membership-api/internal/app/apperr"
	"github.com/chapter-connect/membership-api/internal/app/roleresolver"
	"github.com/chapter-connect/membership-api/internal/authz"
	"github.com/chapter-connect/membership-api/internal/domain"
)

// Guard decides whether an actor may perform an action on a table row.
// Every app service calls it before touching a repository.
type Guard struct {
	roles roleresolver.Source
	log   *zap.Logger
}

func NewGuard(roles roleresolver.Source, log *zap.Logger) *Guard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{roles: roles, log: log}
}

// Check enforces the rule for table. owner is the identity owning the target row, or
// empty when the operation is not on a single owned row (lists, creates of unowned rows).
//
// Self-access is evaluated first and never resolves the actor's role.
func (g *Guard) Check(ctx context.Context, actor domain.IdentityID, table authz.Table, action authz.Action, owner domain.IdentityID) error {
	if actor != "" && owner != "" && actor == owner && authz.SelfAccess(table, action) {
		return nil
	}
	role := g.roles.Resolve(ctx, actor)
	d := authz.Decide(role, table, action, false)
	if d.Allowed {
		return nil
	}
	g.log.Info("access denied",
		zap.String("actor", string(actor)),
		zap.String("role", string(role)),
		zap.String("table", string(table)),
		zap.String("action", string(action)),
		zap.String("reason", string(d.Reason)),
	)
	return denied(table, action)
}

// Role resolves the actor's role. It never fails.
func (g *Guard) Role(ctx context.Context, actor domain.IdentityID) authz.Role {
	return g.roles.Resolve(ctx, actor)
}

// RequireAdmin rejects actors whose resolved role is not admin. Profile role and status
// changes go through it, including on the actor's own row.
func (g *Guard) RequireAdmin(ctx context.Context, actor domain.IdentityID, field string) error {
	if g.roles.Resolve(ctx, actor) == authz.RoleAdmin {
		return nil
	}
	return apperr.Forbidden("only an admin may change "+field, map[string]any{"field": field})
}

func denied(table authz.Table, action authz.Action) *apperr.Error {
	return apperr.Forbidden("not permitted", map[string]any{
		"table":  string(table),
		"action": string(action),
	})
}
