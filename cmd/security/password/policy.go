package password

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Policy and decoding failures. The credential layer maps them onto fault kinds.
var (
	ErrPasswordTooShort = errors.New("password shorter than policy minimum")
	ErrPasswordTooLong  = errors.New("password longer than policy maximum")
	ErrWeakPassword     = errors.New("password rejected as very weak")
	ErrInvalidHash      = errors.New("malformed argon2id hash")
)

// Validate checks password against the policy. Length counts runes, not bytes.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Policy.RejectVeryWeak && veryWeak(password):
		return ErrWeakPassword
	}
	return nil
}

var trivial = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
}

// veryWeak rejects a single repeated character, short all-digit PINs and a tiny blocklist.
func veryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := trivial[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	if strings.Trim(s, string(first)) == "" {
		return true
	}
	return utf8.RuneCountInString(s) < 12 && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}
