package authgin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
	core "github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
)

// Authenticator resolves a bearer token to live session claims.
// *core.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtkit.Claims, error)
}

// AuthRequired validates the Bearer token, checks the session is still live,
// and stores the claims in both the Gin and the request context.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authenticate(c, auth) {
			c.Next()
		}
	}
}

// authenticate attaches claims, or aborts with 401 and returns false.
func authenticate(c *gin.Context, auth Authenticator) bool {
	if _, ok := c.Get("djibgo.claims"); ok {
		return true
	}
	tok := ginutil.BearerToken(c.GetHeader("Authorization"))
	if tok == "" {
		ginutil.Unauthorized(c, "missing_token")
		return false
	}
	cl, err := auth.Authenticate(c.Request.Context(), tok)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrSessionRevoked):
		ginutil.Unauthorized(c, "session_revoked")
		return false
	case errors.Is(err, jwtkit.ErrInvalidToken):
		ginutil.Unauthorized(c, "invalid_token")
		return false
	default:
		ginutil.ServerErrWithLog(c, "auth_unavailable", err, "session check failed")
		return false
	}
	attach(c, cl)
	return true
}

// AuthOptional validates when Authorization is present; otherwise passes through.
func AuthOptional(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := ginutil.BearerToken(c.GetHeader("Authorization")); tok != "" {
			if cl, err := auth.Authenticate(c.Request.Context(), tok); err == nil {
				attach(c, cl)
			}
		}
		c.Next()
	}
}

func attach(c *gin.Context, jc *jwtkit.Claims) {
	cl := Claims{UserID: jc.UserID, SessionID: jc.SessionID, Temporary: jc.Temporary}
	c.Set("auth.user_id", cl.UserID)
	c.Set("auth.sid", cl.SessionID)
	c.Set("auth.temporary_password", cl.Temporary)
	c.Set("djibgo.claims", cl)
	c.Request = c.Request.WithContext(SetClaims(c.Request.Context(), cl))
}
