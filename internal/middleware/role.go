package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/classpoll/backend/pkg/response"
)

// RequireTeacher returns a middleware that allows only callers carrying the
// TEACHER role. Must run after JWT.
func RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "User not authenticated")
			c.Abort()
			return
		}
		if role, _ := roleVal.(string); role != "TEACHER" {
			response.Forbidden(c, "Access denied. Teacher role required")
			c.Abort()
			return
		}
		c.Next()
	}
}
