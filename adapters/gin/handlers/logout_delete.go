package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
)

// HandleLogoutDELETE handles DELETE /auth/logout without importing parent package types.
// It relies on the context keys set by the auth middleware: "auth.user_id" and "auth.sid".
func HandleLogoutDELETE(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLAuthLogout) {
			ginutil.TooMany(c)
			return
		}
		if c.GetString("auth.user_id") == "" {
			ginutil.Unauthorized(c, "unauthorized")
			return
		}
		sid := c.GetString("auth.sid")
		if strings.TrimSpace(sid) == "" {
			ginutil.BadRequest(c, "missing_sid")
			return
		}
		if err := svc.Logout(c.Request.Context(), sid); err != nil {
			ginutil.ServerErrWithLog(c, "logout_failed", err, "failed to revoke session during logout")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
