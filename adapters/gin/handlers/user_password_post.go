package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
)

// HandleUserPasswordPOST changes the authenticated user's password after
// verifying the current one, and ends any temporary password regime. The
// caller's sessions are all revoked; the response carries a fresh token.
func HandleUserPasswordPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type reqBody struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLUserPasswordChange) {
			ginutil.TooMany(c)
			return
		}
		userID := c.GetString("auth.user_id")
		if userID == "" {
			ginutil.Unauthorized(c, "not_authenticated")
			return
		}
		var body reqBody
		if err := c.ShouldBindJSON(&body); err != nil || body.NewPassword == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.ChangePassword(c.Request.Context(), userID, body.CurrentPassword, body.NewPassword)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrWeakPassword):
			ginutil.BadRequest(c, "weak_password")
			return
		case errors.Is(err, core.ErrInvalidCredentials):
			ginutil.Unauthorized(c, "invalid_current_password")
			return
		case errors.Is(err, core.ErrTemporaryPasswordExpired):
			ginutil.Forbidden(c, "temporary_password_expired")
			return
		case errors.Is(err, core.ErrAccountBusy):
			ginutil.RetryLater(c, svc.Options().LockTTL, "account_busy")
			return
		default:
			ginutil.ServerErrWithLog(c, "password_change_failed", err, "password change failed")
			return
		}
		resp := gin.H{"ok": true}
		if res != nil {
			resp["access_token"] = res.AccessToken
			resp["token_type"] = "Bearer"
			resp["expires_at"] = res.ExpiresAt.UTC()
		}
		c.JSON(http.StatusOK, resp)
	}
}
