package authgin

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	core "github.com/open-rails/djibgo-auth/core"
)

// UserContext is a richer, typed view of the authenticated user for handlers.
// It combines session claims with a fresh read of the profile.
type UserContext struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Language  string `json:"language"`

	// TemporaryPassword is true while the profile is under a temporary
	// password regime, whatever the session was opened with.
	TemporaryPassword          bool       `json:"temporary_password"`
	TemporaryPasswordExpiresAt *time.Time `json:"temporary_password_expires_at,omitempty"`
}

// StatusReader reads the temporary password regime. *core.Service implements it.
type StatusReader interface {
	TemporaryPasswordStatus(ctx context.Context, userID string) (*core.TemporaryPasswordStatus, error)
}

// SetUserContext stores a UserContext on the Gin context for reuse.
func SetUserContext(c *gin.Context, uc UserContext) {
	c.Set("auth.userctx", uc)
}

// GetUserContext returns a previously computed UserContext and a bool.
func GetUserContext(c *gin.Context) (UserContext, bool) {
	if v, ok := c.Get("auth.userctx"); ok {
		if uc, ok := v.(UserContext); ok {
			return uc, true
		}
	}
	return UserContext{}, false
}

// BuildUserContext builds a UserContext from the verified claims and the
// profile. Without claims it returns Language only; a profile read failure
// falls back to the session's own temporary flag.
func BuildUserContext(c *gin.Context, st StatusReader) UserContext {
	lang := parseAcceptLanguage(c.GetHeader("Accept-Language"))
	cl, ok := ClaimsFromGin(c)
	if !ok || cl.UserID == "" {
		return UserContext{Language: lang}
	}
	uc := UserContext{UserID: cl.UserID, SessionID: cl.SessionID, Language: lang, TemporaryPassword: cl.Temporary}
	if st == nil {
		return uc
	}
	if s, err := st.TemporaryPasswordStatus(c.Request.Context(), cl.UserID); err == nil {
		uc.TemporaryPassword = s.Active
		uc.TemporaryPasswordExpiresAt = s.ExpiresAt
	}
	return uc
}

// LookupUser enriches the Gin context with profile-backed user details.
// Safe: no-op without verified claims.
func LookupUser(st StatusReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if existing, ok := GetUserContext(c); ok && existing.UserID != "" {
			c.Next()
			return
		}
		if cl, ok := ClaimsFromGin(c); !ok || cl.UserID == "" {
			c.Next()
			return
		}
		uc := BuildUserContext(c, st)
		SetUserContext(c, uc)
		if uc.Language != "" {
			c.Set("auth.language", uc.Language)
		}
		c.Next()
	}
}

func (uc UserContext) IsLoggedIn() bool { return strings.TrimSpace(uc.UserID) != "" }

// MustChangePassword reports whether the user should be sent to the password form.
func (uc UserContext) MustChangePassword() bool { return uc.IsLoggedIn() && uc.TemporaryPassword }

// parseAcceptLanguage extracts the primary language (e.g., "fr" from "fr-DJ").
// DjibGo defaults to French.
func parseAcceptLanguage(header string) string {
	if header == "" {
		return "fr"
	}
	part := header
	if i := strings.IndexByte(part, ','); i >= 0 {
		part = part[:i]
	}
	if i := strings.IndexByte(part, ';'); i >= 0 {
		part = part[:i]
	}
	part = strings.TrimSpace(part)
	if i := strings.IndexByte(part, '-'); i >= 0 {
		part = part[:i]
	}
	part = strings.ToLower(part)
	if len(part) < 2 {
		return "fr"
	}
	return part
}
