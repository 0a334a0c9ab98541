package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
)

// HandlePasswordLoginPOST signs in with email and password. Sessions opened
// with a temporary password say so in the response.
func HandlePasswordLoginPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type reqBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLPasswordLogin) {
			ginutil.TooMany(c)
			return
		}
		var body reqBody
		if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Email) == "" || body.Password == "" {
			ginutil.BadRequest(c, "invalid_request")
			return
		}
		res, err := svc.PasswordLogin(c.Request.Context(), strings.TrimSpace(body.Email), body.Password)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrInvalidCredentials):
			ginutil.Unauthorized(c, "invalid_credentials")
			return
		case errors.Is(err, core.ErrTemporaryPasswordExpired):
			ginutil.Forbidden(c, "temporary_password_expired")
			return
		default:
			ginutil.ServerErrWithLog(c, "login_failed", err, "password login failed")
			return
		}
		resp := gin.H{
			"access_token":       res.AccessToken,
			"token_type":         "Bearer",
			"expires_at":         res.ExpiresAt.UTC(),
			"temporary_password": res.TemporaryPassword,
		}
		if res.TemporaryPasswordExpiresAt != nil {
			resp["temporary_password_expires_at"] = res.TemporaryPasswordExpiresAt.UTC()
		}
		c.JSON(http.StatusOK, resp)
	}
}
