package auth

import (
	"strings"

	"github.com/geocoder89/identityhub/internal/apperr"
	"github.com/geocoder89/identityhub/internal/domain/user"
)

// TokenVerifier is satisfied by *Manager.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Guard turns an Authorization header value into claims. It holds no state
// between calls; every request is evaluated from scratch.
type Guard struct {
	tokens TokenVerifier
}

func NewGuard(tokens TokenVerifier) *Guard {
	return &Guard{tokens: tokens}
}

// Authenticate accepts "Bearer <token>" (scheme is case-insensitive) and fails
// with an Unauthorized apperr for anything missing, malformed or rejected.
func (g *Guard) Authenticate(authorization string) (*Claims, error) {
	raw, ok := BearerToken(authorization)
	if !ok {
		return nil, apperr.Unauthorized("Missing or invalid Authorization header")
	}

	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindUnauthorized,
			Message: "Invalid or expired access token",
			Err:     err,
		}
	}
	return claims, nil
}

// RequireRole fails with Forbidden unless claims carry the given role.
func RequireRole(claims *Claims, role user.Role) error {
	if claims == nil {
		return apperr.Unauthorized("Missing identity context")
	}
	if claims.Role != role {
		return apperr.Forbidden(string(role) + " role required")
	}
	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(authorization string) (string, bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	raw := strings.TrimSpace(rest)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", false
	}
	return raw, true
}
