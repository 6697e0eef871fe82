package session

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtEdDSA signs compact JWTs with the same Ed25519 key as v4.public.
type jwtEdDSA struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func newJWTEdDSA(ks KeySet) (*jwtEdDSA, error) {
	b, err := hex.DecodeString(ks.SecretKeyHex)
	if err != nil || len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: secret key is not a hex ed25519 private key", ErrConfig)
	}
	priv := ed25519.PrivateKey(b)
	return &jwtEdDSA{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

func (s *jwtEdDSA) Scheme() string { return SchemeJWTEdDSA }

func (s *jwtEdDSA) Sign(claims map[string]any) (string, error) {
	mc := make(jwt.MapClaims, len(claims))
	for k, v := range claims {
		if t, ok := v.(time.Time); ok {
			v = jwt.NewNumericDate(t)
		}
		mc[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, mc).SignedString(s.priv)
}

func (s *jwtEdDSA) Verify(token string) (map[string]any, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	mc := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, &mc, func(*jwt.Token) (any, error) { return s.pub, nil }); err != nil {
		return nil, invalidToken("session.jwt.Verify", "signature or format")
	}
	return map[string]any(mc), nil
}
