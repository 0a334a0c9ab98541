package authgin

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

// Claims is a typed view of the authenticated session attached by middleware.
type Claims struct {
	UserID    string
	SessionID string
	// Temporary marks sessions opened with a temporary password.
	Temporary bool
}

// unexported context key
type claimsCtxKey struct{}

// SetClaims returns a child context with claims attached.
func SetClaims(ctx context.Context, cl Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, cl)
}

// FromContext extracts claims from a standard context.
func FromContext(ctx context.Context) (Claims, bool) {
	v := ctx.Value(claimsCtxKey{})
	if v == nil {
		return Claims{}, false
	}
	cl, ok := v.(Claims)
	return cl, ok
}

// ClaimsFromGin returns claims from Gin context if present.
func ClaimsFromGin(c *gin.Context) (Claims, bool) {
	if v, ok := c.Get("djibgo.claims"); ok {
		if cl, ok := v.(Claims); ok {
			return cl, true
		}
	}
	return FromContext(c.Request.Context())
}

// GetClaims returns claims or an error if not present/unauthenticated.
func GetClaims(c *gin.Context) (Claims, error) {
	if cl, ok := ClaimsFromGin(c); ok {
		return cl, nil
	}
	return Claims{}, errors.New("unauthenticated")
}

// UserID is a typed accessor for the authenticated user's id.
func UserID(c *gin.Context) (string, bool) {
	if cl, ok := ClaimsFromGin(c); ok && cl.UserID != "" {
		return cl.UserID, true
	}
	return "", false
}
