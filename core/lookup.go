package core

import (
	"context"
	"errors"
	"strings"
)

// lookup resolves the account and profile for an issuance request and checks
// the claimed phone against the stored one. It never writes.
func (s *Service) lookup(ctx context.Context, email, phone string) (*Account, *Profile, error) {
	if email == "" {
		return nil, nil, ErrEmailRequired
	}
	if strings.TrimSpace(phone) == "" || NormalizePhone(phone) == "" {
		return nil, nil, ErrPhoneRequired
	}

	acct, err := s.identity.FindAccountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) || (err == nil && acct == nil) {
		return nil, nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, nil, &LookupError{Op: "find account", Err: err}
	}

	prof, err := s.profiles.GetProfile(ctx, acct.ID)
	if errors.Is(err, ErrProfileNotFound) || (err == nil && prof == nil) {
		return nil, nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, nil, &LookupError{Op: "get profile", Err: err}
	}

	stored := prof.StoredPhone()
	if NormalizePhone(stored) == "" {
		// Profiles without a phone are let through unless configured otherwise.
		if s.opts.RequireStoredPhone {
			return nil, nil, ErrPhoneMismatch
		}
		s.log.WithField("user_id", acct.ID).Info("no stored phone on profile; phone verification skipped")
		return acct, prof, nil
	}
	if !PhonesMatch(phone, stored) {
		return nil, nil, ErrPhoneMismatch
	}
	return acct, prof, nil
}
