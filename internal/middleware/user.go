package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDKey is the context key for the authenticated user id
	UserIDKey = "user_id"
	// UserIDHeader carries the user id asserted by the upstream auth layer
	UserIDHeader = "X-User-ID"
)

// RequireUser rejects requests without an X-User-ID header and stores the id
// for handlers. Authentication itself happens upstream.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":       "UNAUTHORIZED",
					"message":    "Missing " + UserIDHeader + " header",
					"request_id": GetRequestID(c),
				},
			})
			return
		}

		c.Set(UserIDKey, userID)
		if log := GetLogger(c); log != nil {
			c.Set(LoggerKey, log.With(map[string]interface{}{"user_id": userID}))
		}

		c.Next()
	}
}

// GetUserID returns the user id set by RequireUser, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
