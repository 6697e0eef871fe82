package identity

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultPhoneRegion is used to parse phone numbers written without a leading "+".
var DefaultPhoneRegion = "US"

// NormalizeUsername performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone returns the E.164 form of s, or ok=false when s is not a valid number.
func NormalizePhone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	num, err := phonenumbers.Parse(s, DefaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

// LookupKind names the secondary key a login identifier resolves to.
type LookupKind string

const (
	LookupUsername LookupKind = "username"
	LookupEmail    LookupKind = "email"
	LookupPhone    LookupKind = "phone"
)

// LookupKey is a normalized secondary key for principals.
type LookupKey struct {
	Kind  LookupKind
	Value string
}

func (k LookupKey) String() string { return string(k.Kind) + ":" + k.Value }

// ParseLookupKey classifies a raw login identifier.
//   - contains "@"          -> email
//   - leading "+" or digit  -> phone (when it parses as a valid number)
//   - otherwise             -> username
func ParseLookupKey(raw string) (LookupKey, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LookupKey{}, false
	}
	if strings.Contains(raw, "@") {
		return LookupKey{Kind: LookupEmail, Value: NormalizeEmail(raw)}, true
	}
	if c := raw[0]; c == '+' || (c >= '0' && c <= '9') {
		if e164, ok := NormalizePhone(raw); ok {
			return LookupKey{Kind: LookupPhone, Value: e164}, true
		}
	}
	return LookupKey{Kind: LookupUsername, Value: NormalizeUsername(raw)}, true
}
