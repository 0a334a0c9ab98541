package core

import (
	"strings"
	"time"
)

// Account is the authentication identity behind a profile. The password
// credential never leaves the identity store; only its confirmation and ban
// state are exposed here.
type Account struct {
	ID            string
	Email         string
	PhoneNumber   *string
	EmailVerified bool
	PhoneVerified bool
	IsActive      bool
	BannedUntil   *time.Time
	BanReason     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Banned reports whether the account is suspended at t.
func (a *Account) Banned(t time.Time) bool {
	if a == nil || a.BannedUntil == nil {
		return false
	}
	return a.BannedUntil.After(t)
}

// Profile is the application record keyed 1:1 to Account.ID.
type Profile struct {
	UserID                     string
	DisplayName                string
	PhoneNumber                *string
	TemporaryPasswordExpiresAt *time.Time
	TemporaryPasswordIssuedAt  *time.Time
	UpdatedAt                  time.Time
}

// StoredPhone returns the trimmed stored phone, or "" when none is set.
func (p *Profile) StoredPhone() string {
	if p == nil || p.PhoneNumber == nil {
		return ""
	}
	return strings.TrimSpace(*p.PhoneNumber)
}

// TemporaryPasswordActive reports whether the account is under a temporary
// password regime at now.
func (p *Profile) TemporaryPasswordActive(now time.Time) bool {
	if p == nil || p.TemporaryPasswordExpiresAt == nil {
		return false
	}
	return p.TemporaryPasswordExpiresAt.After(now)
}

// TemporaryPasswordExpired reports whether a temporary password was issued and
// its expiry has passed without a normal password change clearing it.
func (p *Profile) TemporaryPasswordExpired(now time.Time) bool {
	if p == nil || p.TemporaryPasswordExpiresAt == nil {
		return false
	}
	return !p.TemporaryPasswordExpiresAt.After(now)
}

const (
	DeliveryChannelWhatsApp = "whatsapp"
	DeliveryStatusSent      = "sent"
)

// DeliveryRecord is an append-only audit entry written once per issuance.
// Summary never carries the credential.
type DeliveryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a sign-in session created by an IdentityStore.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
