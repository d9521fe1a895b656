package middlewares

import (
	"github.com/geocoder89/identityhub/internal/auth"
	"github.com/geocoder89/identityhub/internal/domain/user"
	"github.com/geocoder89/identityhub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, _ := ClaimsFromContext(c)

		if err := auth.RequireRole(claims, required); err != nil {
			handlers.AbortAppError(c, m.log, err)
			return
		}
		c.Next()
	}
}
