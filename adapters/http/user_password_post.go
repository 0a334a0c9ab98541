package authhttp

import (
	"errors"
	"net/http"
	"time"

	core "github.com/open-rails/djibgo-auth/core"
)

// passwordChangeResponse carries the replacement session; every session the
// user held before the change is revoked.
type passwordChangeResponse struct {
	OK          bool       `json:"ok"`
	AccessToken string     `json:"access_token,omitempty"`
	TokenType   string     `json:"token_type,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

func (s *Service) handleUserPasswordPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLUserPasswordChange) {
		tooMany(w)
		return
	}
	cl, err := getClaims(r.Context())
	if err != nil {
		unauthorized(w, "unauthorized")
		return
	}
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.New == "" {
		badRequest(w, "invalid_request")
		return
	}
	res, err := s.svc.ChangePassword(r.Context(), cl.UserID, req.Current, req.New)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrWeakPassword):
		badRequest(w, "weak_password")
		return
	case errors.Is(err, core.ErrInvalidCredentials):
		unauthorized(w, "invalid_current_password")
		return
	case errors.Is(err, core.ErrTemporaryPasswordExpired):
		forbidden(w, "temporary_password_expired")
		return
	case errors.Is(err, core.ErrAccountBusy):
		retryLater(w, s.svc.Options().LockTTL, "account_busy")
		return
	default:
		s.log.WithError(err).WithField("user_id", cl.UserID).Error("password change failed")
		serverErr(w, "password_change_failed")
		return
	}

	out := passwordChangeResponse{OK: true}
	if res != nil {
		exp := res.ExpiresAt.UTC()
		out.AccessToken, out.TokenType, out.ExpiresAt = res.AccessToken, "Bearer", &exp
	}
	writeJSON(w, http.StatusOK, out)
}
