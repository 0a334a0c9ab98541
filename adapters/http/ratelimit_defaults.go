package authhttp

import (
	"time"

	memorylimiter "github.com/open-rails/djibgo-auth/ratelimit/memory"
	redislimiter "github.com/open-rails/djibgo-auth/ratelimit/redis"
)

// Limit configures a named rate limit bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// DefaultRateLimits returns the built-in per-endpoint limits, enforced per
// client IP. Hosts can override by supplying their own limiter via WithRateLimiter.
func DefaultRateLimits() map[string]Limit {
	return map[string]Limit{
		"default": {Limit: 120, Window: time.Minute},

		// Each hit rotates a real credential and hands out a message link.
		RLTemporaryPasswordWhatsApp: {Limit: 5, Window: 15 * time.Minute},

		RLPasswordLogin:         {Limit: 20, Window: time.Hour},
		RLAuthLogout:            {Limit: 60, Window: 10 * time.Minute},
		RLUserPasswordChange:    {Limit: 6, Window: time.Hour},
		RLUserTemporaryPassword: {Limit: 120, Window: time.Minute},
	}
}

func ToMemoryLimits(in map[string]Limit) map[string]memorylimiter.Limit {
	out := make(map[string]memorylimiter.Limit, len(in))
	for k, v := range in {
		out[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}

func ToRedisLimits(in map[string]Limit) map[string]redislimiter.Limit {
	out := make(map[string]redislimiter.Limit, len(in))
	for k, v := range in {
		out[k] = redislimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return out
}
