// Package token fingerprints bearer tokens and login identifiers so they can appear in
// logs and rate-limiter keys without the plaintext.
//
// With BEEKEEPER_TOKEN_HMAC_KEY set, fingerprints are keyed (HMAC-SHA256); otherwise
// they fall back to plain SHA-256, which is fine for development only.
package token
