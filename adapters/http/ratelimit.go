package authhttp

import (
	"net/http"
	"strings"
)

// RateLimiter is a minimal interface used by adapters.
type RateLimiter interface {
	AllowNamed(bucket string, key string) (bool, error)
}

// AllowNamed applies a per-IP limit using the provided bucket name. It fails
// open on limiter error and when the client IP is unknown.
func AllowNamed(r *http.Request, rl RateLimiter, ipFn ClientIPFunc, bucket string) bool {
	if rl == nil {
		return true
	}
	if ipFn == nil {
		ipFn = DefaultClientIP()
	}
	ip := ipFn(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	ok, err := rl.AllowNamed(bucket, rateLimitKey(bucket, ip))
	if err != nil {
		return true
	}
	return ok
}

func rateLimitKey(bucket, ip string) string {
	return "djibgo:" + bucket + ":ip:" + ip
}
