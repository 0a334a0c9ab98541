package authhttp

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// AllowedHeaders are the request headers browsers may send cross-origin.
var AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// CORS opens the API to any origin. Every response carries the wildcard
// origin and the fixed header allow-list, and OPTIONS is answered with 200 "ok"
// before routing.
func CORS() func(http.Handler) http.Handler {
	chi := cors.Handler(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:     AllowedHeaders,
		MaxAge:             300,
		OptionsPassthrough: true,
	})
	allowHeaders := strings.Join(AllowedHeaders, ", ")
	return func(next http.Handler) http.Handler {
		return chi(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			if r.Method == http.MethodOptions {
				w.Header().Set("Content-Type", "text/plain; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok"))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
