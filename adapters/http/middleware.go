package authhttp

import (
	"context"
	"errors"
	"net/http"

	core "github.com/open-rails/djibgo-auth/core"
	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	"github.com/sirupsen/logrus"
)

// Authenticator resolves a bearer token to live session claims.
// *core.Service implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*jwtkit.Claims, error)
}

// Required validates the Bearer token, checks the session is still live, and
// stores the claims in the request context.
func Required(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r.Header.Get("Authorization"))
			if tok == "" {
				unauthorized(w, "missing_token")
				return
			}
			cl, err := auth.Authenticate(r.Context(), tok)
			switch {
			case err == nil:
			case errors.Is(err, core.ErrSessionRevoked):
				unauthorized(w, "session_revoked")
				return
			case errors.Is(err, jwtkit.ErrInvalidToken):
				unauthorized(w, "invalid_token")
				return
			default:
				// Session store outage: the token may well be valid.
				logrus.WithError(err).Error("session check failed")
				serverErr(w, "auth_unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), toClaims(cl))))
		})
	}
}

// Optional attaches claims when a valid token is present and otherwise lets
// the request through unauthenticated.
func Optional(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := bearerToken(r.Header.Get("Authorization")); tok != "" {
				if cl, err := auth.Authenticate(r.Context(), tok); err == nil {
					r = r.WithContext(setClaims(r.Context(), toClaims(cl)))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func toClaims(cl *jwtkit.Claims) Claims {
	return Claims{UserID: cl.UserID, SessionID: cl.SessionID, Temporary: cl.Temporary}
}
