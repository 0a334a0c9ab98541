package core

import (
	"errors"
	"fmt"
)

var (
	ErrEmailRequired            = errors.New("email_required")
	ErrPhoneRequired            = errors.New("phone_required")
	ErrAccountNotFound          = errors.New("account_not_found")
	ErrProfileNotFound          = errors.New("profile_not_found")
	ErrPhoneMismatch            = errors.New("phone_mismatch")
	ErrIssuanceInProgress       = errors.New("issuance_in_progress")
	ErrInvalidCredentials       = errors.New("invalid_credentials")
	ErrTemporaryPasswordExpired = errors.New("temporary_password_expired")
	ErrWeakPassword             = errors.New("weak_password")
	ErrSessionRevoked           = errors.New("session_revoked")
	ErrLockHeld                 = errors.New("lock_held")
	ErrEmailTaken               = errors.New("email_taken")
	ErrAccountBusy              = errors.New("account_busy")
)

// IssuanceError is returned when the identity store rejects the credential
// update. Err is the store error, untouched, so callers can surface it.
type IssuanceError struct {
	UserID string
	Err    error
}

func (e *IssuanceError) Error() string {
	if e == nil || e.Err == nil {
		return "issuance failed"
	}
	return e.Err.Error()
}

func (e *IssuanceError) Unwrap() error { return e.Err }

// LookupError wraps an unexpected store failure during identity lookup
// (anything other than a not-found).
type LookupError struct {
	Op  string
	Err error
}

func (e *LookupError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *LookupError) Unwrap() error { return e.Err }
