package session

import (
	"fmt"
	"strings"
)

// Signing schemes.
const (
	SchemeV4Public = "v4.public"
	SchemeV4Local  = "v4.local"
	SchemeJWTEdDSA = "jwt-eddsa"
)

// Signer signs and verifies flattened claim maps.
//
// Sign receives time claims as time.Time and encodes them in the scheme's native form.
// Verify checks the signature (or authenticated encryption) only; timestamps are the
// Service's job. Every verification failure is a fault.ErrInvalidToken error.
type Signer interface {
	Scheme() string
	Sign(claims map[string]any) (string, error)
	Verify(token string) (map[string]any, error)
}

// NewSigner builds the Signer for scheme from ks.
func NewSigner(scheme string, ks KeySet) (Signer, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeV4Public:
		return newPasetoPublic(ks)
	case SchemeV4Local:
		return newPasetoLocal(ks)
	case SchemeJWTEdDSA:
		return newJWTEdDSA(ks)
	default:
		return nil, fmt.Errorf("%w: unknown token scheme %q", ErrConfig, scheme)
	}
}
