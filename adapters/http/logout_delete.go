package authhttp

import "net/http"

func (s *Service) handleLogoutDELETE(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLAuthLogout) {
		tooMany(w)
		return
	}
	cl, err := getClaims(r.Context())
	if err != nil {
		unauthorized(w, "unauthorized")
		return
	}
	if cl.SessionID == "" {
		badRequest(w, "missing_sid")
		return
	}
	if err := s.svc.Logout(r.Context(), cl.SessionID); err != nil {
		s.log.WithError(err).WithField("user_id", cl.UserID).Error("logout failed")
		serverErr(w, "logout_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
