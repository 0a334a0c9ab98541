package core

import (
	"crypto/rand"
	"time"

	"github.com/mr-tron/base58"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a 128-bit random session id, base58 encoded.
func NewSessionID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base58.Encode(b)
}

// NewDeliveryID returns a ULID so delivery records sort by creation time.
func NewDeliveryID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// unusableSecret is written over an expired temporary password.
func unusableSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base58.Encode(b)
}
