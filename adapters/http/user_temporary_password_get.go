package authhttp

import (
	"errors"
	"net/http"

	core "github.com/open-rails/djibgo-auth/core"
)

// handleUserTemporaryPasswordGET reports the caller's temporary password
// regime so the profile page can prompt for a password change.
func (s *Service) handleUserTemporaryPasswordGET(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLUserTemporaryPassword) {
		tooMany(w)
		return
	}
	cl, err := getClaims(r.Context())
	if err != nil {
		unauthorized(w, "unauthorized")
		return
	}
	st, err := s.svc.TemporaryPasswordStatus(r.Context(), cl.UserID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, core.ErrProfileNotFound):
		notFound(w, "profile_not_found")
	default:
		s.log.WithError(err).WithField("user_id", cl.UserID).Error("temporary password status failed")
		serverErr(w, "status_failed")
	}
}
