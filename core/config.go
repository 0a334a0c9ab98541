package core

import (
	"strings"
	"time"
)

const (
	defaultTemporaryPasswordTTL = 24 * time.Hour
	defaultCountryPrefix        = "+253"
	defaultWhatsAppBaseURL      = "https://wa.me/"
	defaultLockTTL              = 30 * time.Second
	defaultSessionTTL           = 12 * time.Hour
)

// ReadbackPolicy bounds the post-update read-back of the account. Each attempt
// waits first, starting at InitialDelay and doubling up to MaxDelay.
type ReadbackPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultReadbackPolicy returns 3 attempts, 250ms initial delay, capped at 2s.
func DefaultReadbackPolicy() ReadbackPolicy {
	return ReadbackPolicy{Attempts: 3, InitialDelay: 250 * time.Millisecond, MaxDelay: 2 * time.Second}
}

func (p ReadbackPolicy) delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Config is the high-level configuration; zero values pick defaults.
type Config struct {
	// TemporaryPasswordTTL is how long an issued temporary password stays valid (24h).
	TemporaryPasswordTTL time.Duration
	// DefaultCountryPrefix is prepended to delivery phones lacking a "+" (e.g. "+253").
	DefaultCountryPrefix string
	// WhatsAppBaseURL is the deep-link base; the normalised digits are appended.
	WhatsAppBaseURL string
	// LoginURL is added to the message as the call to action, when set.
	LoginURL string
	// Readback configures the post-update verification of the account.
	Readback *ReadbackPolicy
	// SelfTest toggles the sign-in/sign-out check of the new credential.
	// Nil means enabled.
	SelfTest *bool
	// RequireStoredPhone rejects issuance for profiles without a stored phone.
	// Off by default: profiles without a phone skip verification.
	RequireStoredPhone bool
	// LockTTL bounds how long any holder may keep the per-account lock.
	LockTTL time.Duration
	// SessionTTL is the lifetime of access tokens minted by PasswordLogin.
	SessionTTL time.Duration
	// DevMode logs issued credentials for local testing.
	DevMode bool
}

// Options are the resolved settings used by Service.
type Options struct {
	TemporaryPasswordTTL time.Duration
	DefaultCountryPrefix string
	WhatsAppBaseURL      string
	LoginURL             string
	Readback             ReadbackPolicy
	SelfTest             bool
	RequireStoredPhone   bool
	LockTTL              time.Duration
	SessionTTL           time.Duration
	DevMode              bool
}

// Resolve applies defaults.
func (c Config) Resolve() Options {
	o := Options{
		TemporaryPasswordTTL: c.TemporaryPasswordTTL,
		DefaultCountryPrefix: strings.TrimSpace(c.DefaultCountryPrefix),
		WhatsAppBaseURL:      strings.TrimSpace(c.WhatsAppBaseURL),
		LoginURL:             strings.TrimSpace(c.LoginURL),
		Readback:             DefaultReadbackPolicy(),
		SelfTest:             true,
		RequireStoredPhone:   c.RequireStoredPhone,
		LockTTL:              c.LockTTL,
		SessionTTL:           c.SessionTTL,
		DevMode:              c.DevMode,
	}
	if o.TemporaryPasswordTTL <= 0 {
		o.TemporaryPasswordTTL = defaultTemporaryPasswordTTL
	}
	if o.DefaultCountryPrefix == "" {
		o.DefaultCountryPrefix = defaultCountryPrefix
	}
	if !strings.HasPrefix(o.DefaultCountryPrefix, "+") {
		o.DefaultCountryPrefix = "+" + o.DefaultCountryPrefix
	}
	if o.WhatsAppBaseURL == "" {
		o.WhatsAppBaseURL = defaultWhatsAppBaseURL
	}
	if c.Readback != nil {
		o.Readback = *c.Readback
	}
	if o.Readback.Attempts < 0 {
		o.Readback.Attempts = 0
	}
	if c.SelfTest != nil {
		o.SelfTest = *c.SelfTest
	}
	if o.LockTTL <= 0 {
		o.LockTTL = defaultLockTTL
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = defaultSessionTTL
	}
	return o
}
