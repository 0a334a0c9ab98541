package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"
)

type EphemeralMode string

const (
	EphemeralMemory EphemeralMode = "memory"
	EphemeralRedis  EphemeralMode = "redis"
)

const keyAccountLock = "djibgo:temp_password:lock:"

// EphemeralStore backs the per-account lock that serialises issuance,
// password changes and the expiry sweep. Implementations must honor the TTL.
type EphemeralStore interface {
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// DelIfValue deletes key only while it still holds value.
	DelIfValue(ctx context.Context, key string, value []byte) (bool, error)
}

func (s *Service) WithEphemeralStore(store EphemeralStore, mode EphemeralMode) *Service {
	if mode == "" {
		mode = EphemeralMemory
	}
	s.ephemeralStore = store
	s.ephemeralMode = mode
	return s
}

func (s *Service) EphemeralMode() EphemeralMode {
	if s == nil || s.ephemeralMode == "" {
		return EphemeralMemory
	}
	return s.ephemeralMode
}

// IsDevEnvironment reports whether the current ENV/APP_ENV/ENVIRONMENT is non-production.
func IsDevEnvironment() bool {
	return isDevEnvironment(getEnvironment())
}

func getEnvironment() string {
	for _, k := range []string{"ENV", "APP_ENV", "ENVIRONMENT"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Only prod/production count as production.
func isDevEnvironment(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e != "prod" && e != "production"
}

// RetryAfterSeconds is the Retry-After value for a request refused because the
// account lock is held: the lock TTL rounded up to whole seconds, at least 1.
func RetryAfterSeconds(lockTTL time.Duration) int {
	n := int((lockTTL + time.Second - 1) / time.Second)
	if n < 1 {
		return 1
	}
	return n
}

// lockAccount takes the per-account lock. The returned release func
// only deletes the key while it still carries this holder's token.
func (s *Service) lockAccount(ctx context.Context, userID string) (func(), error) {
	if s.ephemeralStore == nil {
		return func() {}, nil
	}
	token := make([]byte, 16)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}
	val := []byte(hex.EncodeToString(token))
	key := keyAccountLock + userID
	ok, err := s.ephemeralStore.SetNX(ctx, key, val, s.opts.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire account lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		// Release even when the request context is already cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := s.ephemeralStore.DelIfValue(rctx, key, val); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("release account lock failed")
		}
	}, nil
}
