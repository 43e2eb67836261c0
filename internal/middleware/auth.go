package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuspass/backend/internal/models"
	"github.com/campuspass/backend/pkg/response"
)

// ContextPrincipal is the gin context key holding the authenticated models.Principal.
const ContextPrincipal = "principal"

// TokenValidator is satisfied by *auth.JWTService.
type TokenValidator interface {
	Validate(token string) (models.Principal, error)
}

// JWT returns a middleware that validates the bearer token and stores the caller in context.
func JWT(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		p, err := v.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

// RequireRole allows only the given roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		p, ok := Principal(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := allowed[p.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated caller, if any.
func Principal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// MustPrincipal returns the caller set by JWT. Routes without JWT get the zero value.
func MustPrincipal(c *gin.Context) models.Principal {
	p, _ := Principal(c)
	return p
}
