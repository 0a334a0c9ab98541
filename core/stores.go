package core

import (
	"context"
	"errors"
	"time"
)

// CredentialUpdate is applied atomically by IdentityStore.UpdateCredential.
// Nil confirmation flags are left unchanged. ClearBan lifts a ban and
// reactivates a deactivated account.
type CredentialUpdate struct {
	Password      string
	EmailVerified *bool
	PhoneVerified *bool
	ClearBan      bool
}

// IdentityStore is the authentication identity backend.
//
// FindAccountByEmail matches exactly (case-sensitive, no normalisation) and
// returns ErrAccountNotFound when nothing matches. RevokeUserSessions signs
// out every session of the user except keep, when set.
type IdentityStore interface {
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByID(ctx context.Context, id string) (*Account, error)
	UpdateCredential(ctx context.Context, id string, upd CredentialUpdate) (*Account, error)
	VerifyPassword(ctx context.Context, id, password string) error
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, sessionID string) error
	SessionActive(ctx context.Context, sessionID string) (bool, error)
	RevokeUserSessions(ctx context.Context, userID string, keep *string) error
}

// ProfileStore holds the application-level profile rows.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	SetTemporaryPassword(ctx context.Context, userID string, issuedAt, expiresAt time.Time) error
	ClearTemporaryPassword(ctx context.Context, userID string) error
	ListExpiredTemporaryPasswords(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// DeliveryLog appends delivery audit records.
type DeliveryLog interface {
	AppendDeliveryRecord(ctx context.Context, rec DeliveryRecord) error
}

// Metrics receives issuance outcomes. Implementations must be cheap and non-blocking.
type Metrics interface {
	IssuanceFinished(outcome string, d time.Duration)
	SelfTestFinished(ok bool)
}

type nopMetrics struct{}

func (nopMetrics) IssuanceFinished(string, time.Duration) {}
func (nopMetrics) SelfTestFinished(bool)                  {}

// MultiDeliveryLog appends to every log in order and joins the failures.
type MultiDeliveryLog []DeliveryLog

func (m MultiDeliveryLog) AppendDeliveryRecord(ctx context.Context, rec DeliveryRecord) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.AppendDeliveryRecord(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
