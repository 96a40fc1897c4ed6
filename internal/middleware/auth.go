package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/dmarcviz/internal/auth"
	"github.com/jengzang/dmarcviz/pkg/response"
)

// UserKey is the gin context key of the authenticated user name
const UserKey = "user"

// Auth rejects requests without a valid bearer token
func Auth(a *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Unauthorized(c, "Missing bearer token")
			return
		}

		user, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}
