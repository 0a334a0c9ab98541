package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// HandleTemporaryPasswordWhatsAppPOST issues a temporary password and answers
// with the WhatsApp link that carries it. The code itself is never in the body.
func HandleTemporaryPasswordWhatsAppPOST(svc *core.Service, rl ginutil.RateLimiter) gin.HandlerFunc {
	type reqBody struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ginutil.RLTemporaryPasswordWhatsApp) {
			ginutil.TooMany(c)
			return
		}
		var body reqBody
		if err := c.ShouldBindJSON(&body); err != nil {
			ginutil.BadRequest(c, core.MsgInvalidRequest)
			return
		}
		iss, err := svc.IssueTemporaryPassword(c.Request.Context(), body.Email, body.Phone)
		if err != nil {
			writeIssuanceErr(c, svc, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":     true,
			"message":     core.MsgTemporaryPasswordSent,
			"whatsappUrl": iss.WhatsAppURL,
			"phone":       iss.Phone,
			"expiresAt":   iss.ExpiresAt.UTC().Format(isoMillis),
		})
	}
}

func writeIssuanceErr(c *gin.Context, svc *core.Service, err error) {
	msg := core.UserMessage(err)
	var issErr *core.IssuanceError
	switch {
	case errors.Is(err, core.ErrEmailRequired), errors.Is(err, core.ErrPhoneRequired), errors.Is(err, core.ErrPhoneMismatch):
		ginutil.BadRequest(c, msg)
	case errors.Is(err, core.ErrAccountNotFound), errors.Is(err, core.ErrProfileNotFound):
		ginutil.NotFound(c, msg)
	case errors.Is(err, core.ErrIssuanceInProgress):
		ginutil.RetryLater(c, svc.Options().LockTTL, msg)
	case errors.As(err, &issErr):
		ginutil.ServerErr(c, msg)
	default:
		ginutil.ServerErrWithLog(c, msg, err, "temporary password issuance failed")
	}
}
