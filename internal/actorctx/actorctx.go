// Package actorctx carries the authenticated caller through a request context.
package actorctx

import (
	"context"

	"github.com/geocoder89/identityhub/internal/auth"
)

type claimsKey struct{}

func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return c, ok && c != nil
}

func UserIDFrom(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return "", false
	}
	id := c.UserID()
	return id, id != ""
}
