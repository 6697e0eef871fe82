package session

import (
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// pasetoClaims copies claims into a paseto token, encoding times as RFC 3339.
func pasetoClaims(claims map[string]any) (paseto.Token, error) {
	tok := paseto.NewToken()
	for k, v := range claims {
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339)
		}
		if err := tok.Set(k, v); err != nil {
			return paseto.Token{}, fmt.Errorf("claim %q: %w", k, err)
		}
	}
	return tok, nil
}

type pasetoPublic struct {
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

func newPasetoPublic(ks KeySet) (*pasetoPublic, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(ks.SecretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: secret key: %v", ErrConfig, err)
	}
	return &pasetoPublic{secret: secret, public: secret.Public()}, nil
}

func (s *pasetoPublic) Scheme() string { return SchemeV4Public }

func (s *pasetoPublic) Sign(claims map[string]any) (string, error) {
	tok, err := pasetoClaims(claims)
	if err != nil {
		return "", err
	}
	return tok.V4Sign(s.secret, nil), nil
}

func (s *pasetoPublic) Verify(token string) (map[string]any, error) {
	// No rules: timestamps are checked by the Service against its own clock.
	p := paseto.NewParserWithoutExpiryCheck()
	parsed, err := p.ParseV4Public(s.public, token, nil)
	if err != nil {
		return nil, invalidToken("session.v4public.Verify", "signature or format")
	}
	return parsed.Claims(), nil
}

type pasetoLocal struct {
	key paseto.V4SymmetricKey
}

func newPasetoLocal(ks KeySet) (*pasetoLocal, error) {
	key, err := paseto.V4SymmetricKeyFromHex(ks.SymmetricKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: symmetric key: %v", ErrConfig, err)
	}
	return &pasetoLocal{key: key}, nil
}

func (s *pasetoLocal) Scheme() string { return SchemeV4Local }

func (s *pasetoLocal) Sign(claims map[string]any) (string, error) {
	tok, err := pasetoClaims(claims)
	if err != nil {
		return "", err
	}
	return tok.V4Encrypt(s.key, nil), nil
}

func (s *pasetoLocal) Verify(token string) (map[string]any, error) {
	p := paseto.NewParserWithoutExpiryCheck()
	parsed, err := p.ParseV4Local(s.key, token, nil)
	if err != nil {
		return nil, invalidToken("session.v4local.Verify", "authentication or format")
	}
	return parsed.Claims(), nil
}
