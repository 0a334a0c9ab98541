package core

import (
	"strings"
	"unicode"
)

// NormalizePhone prepares a phone for suffix comparison: whitespace, hyphens
// and parentheses are removed, then a leading "+" is dropped.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimPrefix(b.String(), "+")
}

// PhonesMatch reports whether either normalised phone is a suffix of the
// other, so numbers with and without a country code compare equal.
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	return strings.HasSuffix(na, nb) || strings.HasSuffix(nb, na)
}

// DeliveryPhone formats a phone for the messaging channel. Internal
// whitespace is removed; a number without a "+" gets its leading zeros
// stripped and defaultPrefix prepended.
func DeliveryPhone(phone, defaultPrefix string) string {
	var b strings.Builder
	for _, r := range phone {
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	p := b.String()
	if strings.HasPrefix(p, "+") {
		return p
	}
	return defaultPrefix + strings.TrimLeft(p, "0")
}

// phoneDigits keeps only ASCII digits; wa.me links take the bare number.
func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
