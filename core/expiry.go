package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultExpiryBatch = 100

// ExpireTemporaryPassword ends an expired temporary password regime: the
// account credential is rotated to an unusable random secret, every session
// is revoked and the profile fields are cleared. It is a no-op when the regime is still active or absent.
// Returns whether the credential was rotated.
func (s *Service) ExpireTemporaryPassword(ctx context.Context, userID string) (bool, error) {
	release, err := s.lockAccount(ctx, userID)
	if errors.Is(err, ErrLockHeld) {
		// An issuance is running for this account; the next sweep retries.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer release()

	prof, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get profile: %w", err)
	}
	if !prof.TemporaryPasswordExpired(s.now()) {
		return false, nil
	}

	if _, err := s.identity.UpdateCredential(ctx, userID, CredentialUpdate{Password: unusableSecret()}); err != nil {
		return false, fmt.Errorf("rotate credential: %w", err)
	}
	if err := s.identity.RevokeUserSessions(ctx, userID, nil); err != nil {
		return true, fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.profiles.ClearTemporaryPassword(ctx, userID); err != nil {
		return true, fmt.Errorf("clear temporary password: %w", err)
	}
	s.log.WithField("user_id", userID).Info("expired temporary password revoked")
	return true, nil
}

// ExpireTemporaryPasswords sweeps up to batch profiles whose temporary
// password expired before now. Per-account failures are logged and joined.
func (s *Service) ExpireTemporaryPasswords(ctx context.Context, now time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	ids, err := s.profiles.ListExpiredTemporaryPasswords(ctx, now, batch)
	if err != nil {
		return 0, fmt.Errorf("list expired temporary passwords: %w", err)
	}
	var (
		n    int
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.ExpireTemporaryPassword(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("user_id", id).Warn("expire temporary password failed")
			errs = append(errs, err)
			continue
		}
		if ok {
			n++
		}
	}
	return n, errors.Join(errs...)
}
