package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/campus-events-backend/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	ContextUser   = "user"
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// unauthenticated aborts with the {status, code, message} failure body the
// portal client decodes as an authentication failure.
func unauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":  "Failure",
		"code":    "UNAUTHENTICATED",
		"message": msg,
		"error":   msg,
	})
}

// AuthMiddleware validates the bearer token and loads the user into the context.
func AuthMiddleware(authSvc auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthenticated(c, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthenticated(c, "invalid Authorization header")
			return
		}

		userID, err := authSvc.ParseAccessToken(parts[1])
		if err != nil {
			unauthenticated(c, "invalid token")
			return
		}

		user, err := authSvc.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			unauthenticated(c, "user not found")
			return
		}
		if user.Status != auth.StatusActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account inactive"})
			return
		}

		c.Set(ContextUser, *user)
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)
		c.Next()
	}
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *gin.Context) (auth.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return auth.User{}, false
	}
	user, ok := v.(auth.User)
	return user, ok
}

// UserID returns the authenticated user's id, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
