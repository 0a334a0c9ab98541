package authhttp

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	core "github.com/open-rails/djibgo-auth/core"
)

// errResp is the body of every error response. Error is a machine code on the
// session routes and the French user message on the edge function route.
type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendErr(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errResp{Error: code})
}

func badRequest(w http.ResponseWriter, code string)   { sendErr(w, http.StatusBadRequest, code) }
func unauthorized(w http.ResponseWriter, code string) { sendErr(w, http.StatusUnauthorized, code) }
func forbidden(w http.ResponseWriter, code string)    { sendErr(w, http.StatusForbidden, code) }
func notFound(w http.ResponseWriter, code string)     { sendErr(w, http.StatusNotFound, code) }
func serverErr(w http.ResponseWriter, code string)    { sendErr(w, http.StatusInternalServerError, code) }

// tooMany answers a rate-limited request. All routes share one message so
// clients can show it as is.
func tooMany(w http.ResponseWriter) {
	sendErr(w, http.StatusTooManyRequests, core.MsgRateLimited)
}

// retryLater answers 409 while the account lock is held.
func retryLater(w http.ResponseWriter, lockTTL time.Duration, msg string) {
	w.Header().Set("Retry-After", strconv.Itoa(core.RetryAfterSeconds(lockTTL)))
	sendErr(w, http.StatusConflict, msg)
}
