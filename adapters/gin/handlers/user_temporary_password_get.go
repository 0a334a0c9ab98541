package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
)

func HandleUserTemporaryPasswordGET(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLUserTemporaryPassword) {
			ginutil.TooMany(c)
			return
		}
		userID := c.GetString("auth.user_id")
		if userID == "" {
			ginutil.Unauthorized(c, "not_authenticated")
			return
		}
		st, err := svc.TemporaryPasswordStatus(c.Request.Context(), userID)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, st)
		case errors.Is(err, core.ErrProfileNotFound):
			ginutil.NotFound(c, "profile_not_found")
		default:
			ginutil.ServerErrWithLog(c, "status_failed", err, "temporary password status failed")
		}
	}
}
