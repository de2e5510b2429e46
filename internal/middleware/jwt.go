package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classpoll/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUsername is the key for username in gin context.
	ContextUsername = "username"
)

// TokenValidator validates a bearer token and returns the caller's identity.
type TokenValidator interface {
	Validate(token string) (userID uuid.UUID, username, role string, err error)
}

// TokenValidatorFunc adapts a function to the TokenValidator interface.
type TokenValidatorFunc func(token string) (uuid.UUID, string, string, error)

func (f TokenValidatorFunc) Validate(token string) (uuid.UUID, string, string, error) {
	return f(token)
}

// JWT returns a middleware that validates the bearer token and sets user
// claims in the request context.
func JWT(validator TokenValidator) gin.HandlerFunc {
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
		userID, username, role, err := validator.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextUsername, username)
		c.Set(ContextUserRole, role)
		c.Next()
	}
}
