package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"pacadmin/internal/core/actor"
	"pacadmin/internal/core/apperror"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*actor.Context, error)
}

// Auth middleware validates JWT tokens and populates the actor context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Extract token from Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		// Check Bearer prefix
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		ac, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		// Capture request environment for the audit trail.
		ac.IP = c.ClientIP()
		ac.Device = c.Request.UserAgent()

		ctx := actor.WithActor(c.Request.Context(), ac)
		c.Request = c.Request.WithContext(ctx)

		// Store in gin context for easy access
		c.Set("actor_id", ac.ActorID)
		c.Set("role", ac.Role)

		c.Next()
	}
}

// RequireRole middleware checks if the actor has one of the required roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := actor.Get(c.Request.Context())
		if ac == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		for _, required := range roles {
			if ac.Role == required {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
