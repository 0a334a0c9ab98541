package authgin

import (
	"github.com/gin-gonic/gin"
	"github.com/open-rails/djibgo-auth/adapters/ginutil"
)

// Auth exposes Required/Optional and the temporary password gate.
type Auth struct {
	auth Authenticator
}

// MiddlewareFromSVC constructs an Auth gate from a Service.
func MiddlewareFromSVC(s *Service) *Auth { return &Auth{auth: s.Core()} }

// NewAuth wraps any Authenticator.
func NewAuth(a Authenticator) *Auth { return &Auth{auth: a} }

// Required validates the token and attaches claims. Claims already attached
// earlier in the chain are reused.
func (a *Auth) Required() gin.HandlerFunc { return AuthRequired(a.auth) }

// Optional validates when Authorization is present; otherwise passes through.
func (a *Auth) Optional() gin.HandlerFunc { return AuthOptional(a.auth) }

// RequirePermanentPassword rejects sessions opened with a temporary password
// with 403 password_change_required, so hosts can fence everything but the
// profile page until the user picks a new password.
func (a *Auth) RequirePermanentPassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, a.auth) {
			return
		}
		if cl, ok := ClaimsFromGin(c); ok && cl.Temporary {
			ginutil.Forbidden(c, "password_change_required")
			return
		}
		c.Next()
	}
}
