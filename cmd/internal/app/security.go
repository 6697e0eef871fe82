package app

import (
	"errors"
	"fmt"

	"github.com/abdihakim148/beekeeper/cmd/security/token"
)

// SecurityFingerprinter enforces the token-hashing policy at startup and returns the
// fingerprinter used to digest identifiers and tokens in logs.
//
// With RequireTokenHMAC set, a missing or short key is fatal rather than a silent
// fallback to plain SHA-256.
func SecurityFingerprinter(cfg Config) (token.Fingerprinter, error) {
	fp, err := token.FingerprinterFromEnv(cfg.RequireTokenHMAC)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Fingerprinter{}, fmt.Errorf("security policy: BEEKEEPER_REQUIRE_TOKEN_HMAC=true but %s is missing", token.HMACEnvKey)
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Fingerprinter{}, fmt.Errorf("security policy: %s is too short (min %d bytes)", token.HMACEnvKey, token.MinHMACKeyBytes)
	case err != nil:
		return token.Fingerprinter{}, err
	}
	if cfg.RequireTokenHMAC && !fp.Keyed() {
		return token.Fingerprinter{}, errors.New("security policy: fingerprinter is not in HMAC mode")
	}
	return fp, nil
}
