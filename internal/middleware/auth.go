package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/vidshare/internal/auth"
	"github.com/zfogg/vidshare/internal/util"
)

// AccessTokenCookie is the cookie login sets for browser clients.
const AccessTokenCookie = "accessToken"

// AuthRequired rejects requests without a valid access token.
func AuthRequired(authn auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			util.RespondUnauthorized(c, "missing access token")
			return
		}
		user, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			util.RespondUnauthorized(c, "invalid or expired access token")
			return
		}
		c.Set(util.ContextUserID, user.ID)
		c.Set(util.ContextUser, user)
		c.Next()
	}
}

// AuthOptional identifies the caller when a valid token is present and lets
// anonymous requests through. An invalid token is treated as anonymous.
func AuthOptional(authn auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if user, err := authn.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(util.ContextUserID, user.ID)
				c.Set(util.ContextUser, user)
			}
		}
		c.Next()
	}
}

// extractToken prefers the Authorization header over the cookie. Browsers
// cannot set headers on a websocket upgrade, so ?token= is accepted there.
func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}
