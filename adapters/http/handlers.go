package authhttp

import (
	"net/http"

	core "github.com/open-rails/djibgo-auth/core"
)

// EdgeFunctionPath is the route of the temporary password endpoint, kept at
// the path the web client already calls.
const EdgeFunctionPath = "/functions/v1/send-temporary-password-whatsapp"

// APIHandler returns a handler that serves the JSON API routes.
// It is intended to be mounted under the host's mux/router at any prefix.
func (s *Service) APIHandler() http.Handler {
	if s == nil || s.svc == nil || s.svc.Identity() == nil || s.svc.Profiles() == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { serverErr(w, "djibgo_not_initialized") })
	}
	if !core.IsDevEnvironment() {
		if s.svc.EphemeralMode() != core.EphemeralRedis {
			panic("djibgo: redis-compatible ephemeral store is required in production")
		}
	}

	mux := http.NewServeMux()

	mux.Handle("POST "+EdgeFunctionPath, http.HandlerFunc(s.handleTemporaryPasswordWhatsAppPOST))
	mux.Handle("POST /auth/password/login", http.HandlerFunc(s.handlePasswordLoginPOST))

	required := Required(s.svc)
	mux.Handle("DELETE /auth/logout", required(http.HandlerFunc(s.handleLogoutDELETE)))
	mux.Handle("POST /auth/user/password", required(http.HandlerFunc(s.handleUserPasswordPOST)))
	mux.Handle("GET /auth/user/temporary-password", required(http.HandlerFunc(s.handleUserTemporaryPasswordGET)))

	return CORS()(mux)
}
