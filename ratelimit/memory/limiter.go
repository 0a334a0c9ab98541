// Package memorylimiter is an in-process fixed-window rate limiter. Counters
// are not shared between replicas; use redislimiter for that.
package memorylimiter

import (
	"sync"
	"time"
)

// Limit allows Limit hits per Window.
type Limit struct {
	Limit  int
	Window time.Duration
}

type window struct {
	count int
	reset time.Time
}

// Limiter implements AllowNamed over named buckets. Unknown buckets use the
// "default" entry, or are unlimited when there is none.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	windows map[string]*window
	now     func() time.Time
	sweepAt time.Time
}

func New(limits map[string]Limit) *Limiter {
	cp := make(map[string]Limit, len(limits))
	for k, v := range limits {
		cp[k] = v
	}
	return &Limiter{limits: cp, windows: make(map[string]*window), now: time.Now}
}

func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	lim, ok := l.limits[bucket]
	if !ok {
		lim, ok = l.limits["default"]
	}
	if !ok || lim.Limit <= 0 || lim.Window <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.sweep(now)
	w, ok := l.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &window{reset: now.Add(lim.Window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= lim.Limit, nil
}

// sweep drops finished windows at most once a minute. Callers hold mu.
func (l *Limiter) sweep(now time.Time) {
	if now.Before(l.sweepAt) {
		return
	}
	for k, w := range l.windows {
		if !now.Before(w.reset) {
			delete(l.windows, k)
		}
	}
	l.sweepAt = now.Add(time.Minute)
}
