package authhttp

import (
	"errors"
	"net/http"

	core "github.com/open-rails/djibgo-auth/core"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type temporaryPasswordResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	WhatsAppURL string `json:"whatsappUrl"`
	Phone       string `json:"phone"`
	ExpiresAt   string `json:"expiresAt"`
}

func (s *Service) handleTemporaryPasswordWhatsAppPOST(w http.ResponseWriter, r *http.Request) {
	if !s.allow(r, RLTemporaryPasswordWhatsApp) {
		tooMany(w)
		return
	}
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, core.MsgInvalidRequest)
		return
	}

	iss, err := s.svc.IssueTemporaryPassword(r.Context(), req.Email, req.Phone)
	if err != nil {
		s.writeIssuanceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, temporaryPasswordResponse{
		Success:     true,
		Message:     core.MsgTemporaryPasswordSent,
		WhatsAppURL: iss.WhatsAppURL,
		Phone:       iss.Phone,
		ExpiresAt:   iss.ExpiresAt.UTC().Format(isoMillis),
	})
}

func (s *Service) writeIssuanceErr(w http.ResponseWriter, err error) {
	msg := core.UserMessage(err)
	var issErr *core.IssuanceError
	switch {
	case errors.Is(err, core.ErrEmailRequired), errors.Is(err, core.ErrPhoneRequired), errors.Is(err, core.ErrPhoneMismatch):
		badRequest(w, msg)
	case errors.Is(err, core.ErrAccountNotFound), errors.Is(err, core.ErrProfileNotFound):
		notFound(w, msg)
	case errors.Is(err, core.ErrIssuanceInProgress):
		retryLater(w, s.svc.Options().LockTTL, msg)
	case errors.As(err, &issErr):
		// Already logged by the core with the user id.
		serverErr(w, msg)
	default:
		s.log.WithError(err).Error("temporary password issuance failed")
		serverErr(w, msg)
	}
}
