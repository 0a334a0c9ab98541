// Package jwtkit mints and verifies the HS256 access tokens handed out by
// password login.
package jwtkit

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLen = 32

var (
	ErrInvalidToken = errors.New("invalid_token")
	ErrWeakSecret   = errors.New("jwt secret must be at least 32 bytes")
)

// Claims is the decoded form of an access token.
type Claims struct {
	UserID    string
	SessionID string
	// Temporary is set when the session was opened with a temporary password.
	Temporary bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	Temporary bool   `json:"tmp,omitempty"`
}

// Signer signs and parses HS256 tokens for one issuer.
type Signer struct {
	secret []byte
	issuer string
}

func NewHS256Signer(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < minSecretLen {
		return nil, ErrWeakSecret
	}
	return &Signer{secret: append([]byte(nil), secret...), issuer: issuer}, nil
}

func (s *Signer) Issuer() string { return s.issuer }

func (s *Signer) Sign(c Claims) (string, error) {
	if strings.TrimSpace(c.UserID) == "" || strings.TrimSpace(c.SessionID) == "" {
		return "", ErrInvalidToken
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   c.UserID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
		SessionID: c.SessionID,
		Temporary: c.Temporary,
	})
	return tok.SignedString(s.secret)
}

// Parse verifies the signature, issuer and expiry of token.
func (s *Signer) Parse(token string) (*Claims, error) {
	tc := &tokenClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, tc, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if tc.Subject == "" || tc.SessionID == "" {
		return nil, ErrInvalidToken
	}
	c := &Claims{UserID: tc.Subject, SessionID: tc.SessionID, Temporary: tc.Temporary}
	if tc.IssuedAt != nil {
		c.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}
