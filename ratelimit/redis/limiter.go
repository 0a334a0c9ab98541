// Package redislimiter is a fixed-window rate limiter shared across replicas
// through Redis INCR/PEXPIRE.
package redislimiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow increments KEYS[1] and starts its window on the first hit.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

type Limit struct {
	Limit  int
	Window time.Duration
}

type Limiter struct {
	rdb     redis.UniversalClient
	limits  map[string]Limit
	timeout time.Duration
}

func New(rdb redis.UniversalClient, limits map[string]Limit) *Limiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &Limiter{rdb: rdb, limits: cp, timeout: 500 * time.Millisecond}
}

// AllowNamed counts a hit on key. Errors are returned so callers can fail open.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits["default"]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	n, err := incrWindow.Run(ctx, l.rdb, []string{key}, lim.Window.Milliseconds()).Int64()
	if err != nil {
		return true, err
	}
	return n <= int64(lim.Limit), nil
}
