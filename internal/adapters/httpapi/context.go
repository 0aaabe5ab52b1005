package httpapi

import (
	"context"

	"github.com/chapter-connect/membership-api/internal/domain"
)

type identityKey struct{}

func WithIdentity(ctx context.Context, id domain.IdentityID) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFromContext(ctx context.Context) (domain.IdentityID, bool) {
	v, ok := ctx.Value(identityKey{}).(domain.IdentityID)
	return v, ok && v != ""
}
