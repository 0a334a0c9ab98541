package jwtkit

import (
	"strings"
	"testing"
	"time"
)

var testSecret = []byte(strings.Repeat("k", 32))

func TestSignParse(t *testing.T) {
	s, err := NewHS256Signer(testSecret, "djibgo")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	now := time.Now().Truncate(time.Second)
	tok, err := s.Sign(Claims{UserID: "u1", SessionID: "s1", Temporary: true, IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	c, err := s.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.UserID != "u1" || c.SessionID != "s1" || !c.Temporary {
		t.Fatalf("unexpected claims: %+v", c)
	}
	if !c.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires_at = %v", c.ExpiresAt)
	}
}

func TestParseRejects(t *testing.T) {
	s, _ := NewHS256Signer(testSecret, "djibgo")
	other, _ := NewHS256Signer([]byte(strings.Repeat("x", 32)), "djibgo")
	wrongIss, _ := NewHS256Signer(testSecret, "elsewhere")
	now := time.Now()

	expired, _ := s.Sign(Claims{UserID: "u1", SessionID: "s1", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	foreign, _ := other.Sign(Claims{UserID: "u1", SessionID: "s1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
	iss, _ := wrongIss.Sign(Claims{UserID: "u1", SessionID: "s1", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})

	for name, tok := range map[string]string{"expired": expired, "foreign": foreign, "issuer": iss, "garbage": "a.b.c"} {
		if _, err := s.Parse(tok); err != ErrInvalidToken {
			t.Errorf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestWeakSecret(t *testing.T) {
	if _, err := NewHS256Signer([]byte("short"), ""); err != ErrWeakSecret {
		t.Fatalf("expected ErrWeakSecret, got %v", err)
	}
}
