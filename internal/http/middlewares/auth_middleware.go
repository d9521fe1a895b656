package middlewares

import (
	"log/slog"

	"github.com/geocoder89/identityhub/internal/actorctx"
	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// Authenticator is satisfied by *auth.Guard.
type Authenticator interface {
	Authenticate(authorization string) (*auth.Claims, error)
}

type TokenMetrics interface {
	ObserveTokenVerification(valid bool)
}

type noopTokenMetrics struct{}

func (noopTokenMetrics) ObserveTokenVerification(bool) {}

type AuthMiddleware struct {
	guard   Authenticator
	metrics TokenMetrics
	log     *slog.Logger
}

func NewAuthMiddleware(guard Authenticator, metrics TokenMetrics, log *slog.Logger) *AuthMiddleware {
	if metrics == nil {
		metrics = noopTokenMetrics{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{guard: guard, metrics: metrics, log: log}
}

// RequireAuth verifies the bearer token on every request and puts the claims
// on the request context. Nothing is cached between requests.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.guard.Authenticate(c.GetHeader("Authorization"))
		m.metrics.ObserveTokenVerification(err == nil)

		if err != nil {
			handlers.AbortAppError(c, m.log, err)
			return
		}

		c.Request = c.Request.WithContext(actorctx.WithClaims(c.Request.Context(), claims))

		c.Next()
	}
}

// Optional helpers so handlers don't need to know where claims live.

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	return actorctx.ClaimsFrom(c.Request.Context())
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	return actorctx.UserIDFrom(c.Request.Context())
}
