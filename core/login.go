package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtkit "github.com/open-rails/djibgo-auth/jwt"
	"github.com/open-rails/djibgo-auth/password"
	"github.com/sirupsen/logrus"
)

// LoginResult is returned by PasswordLogin.
type LoginResult struct {
	AccessToken                string
	ExpiresAt                  time.Time
	UserID                     string
	SessionID                  string
	TemporaryPassword          bool
	TemporaryPasswordExpiresAt *time.Time
}

// TemporaryPasswordStatus describes the temporary password regime of a user.
type TemporaryPasswordStatus struct {
	Active    bool       `json:"active"`
	Expired   bool       `json:"expired"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// PasswordLogin signs in with email and password and mints an access token
// bound to the new session. A temporary password past its expiry is refused
// and the session is revoked on the spot.
func (s *Service) PasswordLogin(ctx context.Context, email, pass string) (*LoginResult, error) {
	if s.signer == nil {
		return nil, errors.New("token signer not configured")
	}
	if strings.TrimSpace(email) == "" || pass == "" {
		return nil, ErrInvalidCredentials
	}
	sess, err := s.identity.SignIn(ctx, email, pass)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{UserID: sess.UserID, SessionID: sess.ID}
	prof, err := s.profiles.GetProfile(ctx, sess.UserID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
	case err != nil:
		s.log.WithError(err).WithField("user_id", sess.UserID).Warn("profile lookup failed at login")
	default:
		now := s.now()
		if prof.TemporaryPasswordExpired(now) {
			if err := s.identity.SignOut(ctx, sess.ID); err != nil {
				s.log.WithError(err).WithField("user_id", sess.UserID).Warn("sign-out after expired temporary password failed")
			}
			return nil, ErrTemporaryPasswordExpired
		}
		if prof.TemporaryPasswordActive(now) {
			res.TemporaryPassword = true
			res.TemporaryPasswordExpiresAt = prof.TemporaryPasswordExpiresAt
		}
	}

	if err := s.mintToken(res); err != nil {
		return nil, err
	}
	return res, nil
}

// mintToken signs an access token for res.SessionID and fills in its expiry.
func (s *Service) mintToken(res *LoginResult) error {
	issuedAt := s.now()
	res.ExpiresAt = issuedAt.Add(s.opts.SessionTTL)
	tok, err := s.signer.Sign(jwtkit.Claims{
		UserID:    res.UserID,
		SessionID: res.SessionID,
		Temporary: res.TemporaryPassword,
		IssuedAt:  issuedAt,
		ExpiresAt: res.ExpiresAt,
	})
	if err != nil {
		return err
	}
	res.AccessToken = tok
	return nil
}

// Authenticate parses an access token and checks its session is still live.
func (s *Service) Authenticate(ctx context.Context, token string) (*jwtkit.Claims, error) {
	if s.signer == nil {
		return nil, errors.New("token signer not configured")
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	ok, err := s.identity.SessionActive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Logout revokes a session. Unknown sessions are not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return s.identity.SignOut(ctx, sessionID)
}

// ChangePassword replaces the user's password after verifying the current
// one and ends any temporary password regime. Every existing session is
// revoked; the returned result carries a fresh, non-temporary session and
// token signed in with the new password (nil when no signer is configured).
//
// The regime is cleared before the credential is written, and restored when
// the write fails, so the call either fully succeeds or leaves the account as
// it was.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) (*LoginResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidCredentials
	}
	if err := password.Validate(next); err != nil {
		return nil, ErrWeakPassword
	}
	release, err := s.lockAccount(ctx, userID)
	if errors.Is(err, ErrLockHeld) {
		return nil, ErrAccountBusy
	}
	if err != nil {
		return nil, err
	}
	defer release()

	log := s.log.WithField("user_id", userID)
	prof, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		prof = nil
	case err != nil:
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if prof != nil && prof.TemporaryPasswordExpired(s.now()) {
		return nil, ErrTemporaryPasswordExpired
	}
	if err := s.identity.VerifyPassword(ctx, userID, current); err != nil {
		return nil, err
	}
	regime := prof != nil && prof.TemporaryPasswordExpiresAt != nil
	if regime {
		if err := s.profiles.ClearTemporaryPassword(ctx, userID); err != nil {
			return nil, fmt.Errorf("clear temporary password: %w", err)
		}
	}

	acct, err := s.identity.UpdateCredential(ctx, userID, CredentialUpdate{Password: next})
	if err != nil {
		if regime {
			s.restoreRegime(ctx, log, prof)
		}
		return nil, fmt.Errorf("update credential: %w", err)
	}

	// The credential is committed from here on.
	ctx = context.WithoutCancel(ctx)
	var res *LoginResult
	if s.signer != nil {
		res, err = s.resignIn(ctx, userID, acct.Email, next)
		if err != nil {
			log.WithError(err).Warn("sign-in with the new password failed")
		}
	}
	var keep *string
	if res != nil {
		keep = &res.SessionID
	}
	if err := s.identity.RevokeUserSessions(ctx, userID, keep); err != nil {
		log.WithError(err).Warn("failed to revoke sessions after password change")
	}
	log.WithField("ended_temporary_password", regime).Info("password changed")
	return res, nil
}

func (s *Service) resignIn(ctx context.Context, userID, email, pass string) (*LoginResult, error) {
	sess, err := s.identity.SignIn(ctx, email, pass)
	if err != nil {
		return nil, err
	}
	res := &LoginResult{UserID: userID, SessionID: sess.ID}
	if err := s.mintToken(res); err != nil {
		_ = s.identity.SignOut(ctx, sess.ID)
		return nil, err
	}
	return res, nil
}

func (s *Service) restoreRegime(ctx context.Context, log logrus.FieldLogger, prof *Profile) {
	issuedAt := s.now()
	if prof.TemporaryPasswordIssuedAt != nil {
		issuedAt = *prof.TemporaryPasswordIssuedAt
	}
	if err := s.profiles.SetTemporaryPassword(context.WithoutCancel(ctx), prof.UserID, issuedAt, *prof.TemporaryPasswordExpiresAt); err != nil {
		log.WithError(err).Error("failed to restore temporary password state")
	}
}

// TemporaryPasswordStatus reports the regime recorded on the user's profile.
func (s *Service) TemporaryPasswordStatus(ctx context.Context, userID string) (*TemporaryPasswordStatus, error) {
	prof, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &TemporaryPasswordStatus{
		Active:    prof.TemporaryPasswordActive(now),
		Expired:   prof.TemporaryPasswordExpired(now),
		IssuedAt:  prof.TemporaryPasswordIssuedAt,
		ExpiresAt: prof.TemporaryPasswordExpiresAt,
	}, nil
}
