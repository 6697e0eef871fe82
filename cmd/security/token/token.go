package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"strings"
)

// HMACEnvKey names the env var holding the fingerprint key.
// #nosec G101 -- an environment variable name, not a credential.
const HMACEnvKey = "BEEKEEPER_TOKEN_HMAC_KEY"

// MinHMACKeyBytes is the shortest key Fingerprinter accepts in strict mode.
const MinHMACKeyBytes = 32

var (
	ErrHMACKeyMissing  = errors.New(HMACEnvKey + " is not set")
	ErrHMACKeyTooShort = errors.New(HMACEnvKey + " is shorter than 32 bytes")
)

// HashSHA256Hex returns the SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns the HMAC-SHA256 hex digest of s under key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Fingerprinter derives short, stable identifiers from secrets.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter returns a keyed Fingerprinter. A nil or empty key selects SHA-256.
func NewFingerprinter(key []byte) Fingerprinter {
	return Fingerprinter{key: key}
}

// FingerprinterFromEnv reads BEEKEEPER_TOKEN_HMAC_KEY. With strict set, a missing or
// short key is an error; otherwise a missing key falls back to SHA-256.
func FingerprinterFromEnv(strict bool) (Fingerprinter, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	switch {
	case raw == "" && strict:
		return Fingerprinter{}, ErrHMACKeyMissing
	case raw == "":
		return Fingerprinter{}, nil
	case strict && len(raw) < MinHMACKeyBytes:
		return Fingerprinter{}, ErrHMACKeyTooShort
	}
	return Fingerprinter{key: []byte(raw)}, nil
}

// Keyed reports whether fingerprints use HMAC.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Sum returns the full 64-char hex digest of s.
func (f Fingerprinter) Sum(s string) string {
	if !f.Keyed() {
		return HashSHA256Hex(s)
	}
	return HashHMACSHA256Hex(s, f.key)
}

// Fingerprint is a shortened digest suitable for logs.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Short returns the first 16 hex chars of Sum: enough to correlate log lines, too short
// to be useful as a lookup key.
func (f Fingerprinter) Short(s string) Fingerprint {
	if s == "" {
		return ""
	}
	return Fingerprint(f.Sum(s)[:16])
}
