package ginutil

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	core "github.com/open-rails/djibgo-auth/core"
	log "github.com/sirupsen/logrus"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// Bucket names used by the gin endpoints. Values match the net/http adapter
// so both share one set of limits.
const (
	RLTemporaryPasswordWhatsApp = "djibgo_temp_password_whatsapp"
	RLPasswordLogin             = "auth_password_login"
	RLAuthLogout                = "auth_logout"
	RLUserPasswordChange        = "auth_user_password_change"
	RLUserTemporaryPassword     = "auth_user_temporary_password"
)

// AllowNamed applies a per-IP limit using the provided bucket name.
// It fails open on limiter error and when gin cannot tell the client IP.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	ip := c.ClientIP()
	if ip == "" {
		return true
	}
	key := "djibgo:" + bucket + ":ip:" + ip
	ok, err := rl.AllowNamed(bucket, key)
	if err != nil {
		return true
	}
	return ok
}

// Error helpers
func SendErr(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}
func BadRequest(c *gin.Context, code string)   { SendErr(c, http.StatusBadRequest, code) }
func Unauthorized(c *gin.Context, code string) { SendErr(c, http.StatusUnauthorized, code) }
func Forbidden(c *gin.Context, code string)    { SendErr(c, http.StatusForbidden, code) }
func TooMany(c *gin.Context)                   { SendErr(c, http.StatusTooManyRequests, core.MsgRateLimited) }
func ServerErr(c *gin.Context, code string)    { SendErr(c, http.StatusInternalServerError, code) }
func NotFound(c *gin.Context, code string)     { SendErr(c, http.StatusNotFound, code) }

// RetryLater answers 409 while the account lock is held.
func RetryLater(c *gin.Context, lockTTL time.Duration, code string) {
	c.Header("Retry-After", strconv.Itoa(core.RetryAfterSeconds(lockTTL)))
	SendErr(c, http.StatusConflict, code)
}

// ServerErrWithLog logs the underlying error/context before responding with a generic server error.
func ServerErrWithLog(c *gin.Context, code string, err error, message string) {
	entry := log.WithContext(c.Request.Context()).WithFields(log.Fields{
		"code":   code,
		"path":   c.FullPath(),
		"method": c.Request.Method,
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	if strings.TrimSpace(message) == "" {
		message = "djibgo server error"
	}
	entry.Error(message)
	ServerErr(c, code)
}

// BearerToken extracts a Bearer token from an Authorization header value.
func BearerToken(authorization string) string {
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
