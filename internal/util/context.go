package util

import (
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	ContextUserID = "user_id"
	ContextUser   = "user"
)

// GetUserIDFromContext extracts the authenticated user ID from the Gin context.
// If the request is not authenticated it responds with 401 and returns false.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := OptionalUserID(c)
	if userID == "" {
		RespondUnauthorized(c)
		return "", false
	}
	return userID, true
}

// OptionalUserID returns the authenticated user id or "" for anonymous callers.
func OptionalUserID(c *gin.Context) string {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return ""
	}
	id, _ := v.(string)
	return id
}
