package authhttp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	core "github.com/open-rails/djibgo-auth/core"
)

type passwordLoginResponse struct {
	AccessToken                string     `json:"access_token"`
	TokenType                  string     `json:"token_type"`
	ExpiresAt                  time.Time  `json:"expires_at"`
	TemporaryPassword          bool       `json:"temporary_password"`
	TemporaryPasswordExpiresAt *time.Time `json:"temporary_password_expires_at,omitempty"`
}

func (s *Service) handlePasswordLoginPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLPasswordLogin) {
		tooMany(w)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		badRequest(w, "invalid_request")
		return
	}

	res, err := s.svc.PasswordLogin(r.Context(), strings.TrimSpace(req.Email), req.Password)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrInvalidCredentials):
		unauthorized(w, "invalid_credentials")
		return
	case errors.Is(err, core.ErrTemporaryPasswordExpired):
		forbidden(w, "temporary_password_expired")
		return
	default:
		s.log.WithError(err).Error("password login failed")
		serverErr(w, "login_failed")
		return
	}

	writeJSON(w, http.StatusOK, passwordLoginResponse{
		AccessToken:                res.AccessToken,
		TokenType:                  "Bearer",
		ExpiresAt:                  res.ExpiresAt.UTC(),
		TemporaryPassword:          res.TemporaryPassword,
		TemporaryPasswordExpiresAt: res.TemporaryPasswordExpiresAt,
	})
}
