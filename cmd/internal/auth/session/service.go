package session

import (
	"fmt"
	"maps"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity/ids"
)

// Service issues and checks tokens.
type Service struct {
	signer Signer
	cfg    Config
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a token service around signer.
func NewService(signer Signer, cfg Config, opts ...Option) (*Service, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: nil signer", ErrConfig)
	}
	s := &Service{signer: signer, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Open loads (or creates) the key file named by cfg and builds the configured signer.
func Open(cfg Config, warn func(string, ...any), opts ...Option) (*Service, KeySet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, KeySet{}, err
	}
	ks, _, err := LoadOrCreateKeys(cfg.KeyPath, time.Now(), warn)
	if err != nil {
		return nil, KeySet{}, err
	}
	signer, err := NewSigner(cfg.Scheme, ks)
	if err != nil {
		return nil, KeySet{}, err
	}
	svc, err := NewService(signer, cfg, opts...)
	if err != nil {
		return nil, KeySet{}, err
	}
	return svc, ks, nil
}

// Config returns the service configuration.
func (s *Service) Config() Config { return s.cfg }

// Scheme returns the signing scheme in use.
func (s *Service) Scheme() string { return s.signer.Scheme() }

// Issue signs a new token for subject.
//
// iat and nbf are the current time truncated to the second. When ttl is positive, exp is
// the untruncated time plus ttl rounded up to the second, so a token never loses lifetime
// to claim precision. An empty issuer falls back to the configured one. Custom claims must not use
// registered names.
func (s *Service) Issue(subject, issuer string, audience Audience, ttl time.Duration, claims map[string]any) (string, Token, error) {
	const op = "session.Issue"

	if subject == "" {
		return "", Token{}, fault.Invalid(op, "missing subject")
	}
	if issuer == "" {
		issuer = s.cfg.Issuer
	}

	issued := s.now().UTC()
	now := issued.Truncate(time.Second)
	jti, err := ids.NewULID(now)
	if err != nil {
		return "", Token{}, fault.Internal(op, err)
	}

	t := Token{
		ID:        jti,
		Issuer:    issuer,
		Subject:   subject,
		Audience:  audience,
		IssuedAt:  now,
		NotBefore: &now,
		Claims:    maps.Clone(claims),
	}
	if ttl > 0 {
		exp := ceilSecond(issued.Add(ttl))
		t.Expiration = &exp
	}

	m, err := t.ClaimMap()
	if err != nil {
		return "", Token{}, err
	}
	signed, err := s.signer.Sign(m)
	if err != nil {
		return "", Token{}, fault.Internal(op, err)
	}
	return signed, t, nil
}

func ceilSecond(t time.Time) time.Time {
	if f := t.Truncate(time.Second); !f.Equal(t) {
		return f.Add(time.Second)
	}
	return t
}

// IssueDefault issues a token with the configured issuer, audience and TTL.
func (s *Service) IssueDefault(subject string, claims map[string]any) (string, Token, error) {
	return s.Issue(subject, s.cfg.Issuer, NewAudience(s.cfg.Audience...), s.cfg.TTL, claims)
}

// Verify checks the signature and decodes the claims. It does not look at timestamps.
func (s *Service) Verify(raw string) (Token, error) {
	const op = "session.Verify"

	if raw == "" {
		return Token{}, invalidToken(op, "empty token")
	}
	m, err := s.signer.Verify(raw)
	if err != nil {
		if fault.IsInvalidToken(err) {
			return Token{}, err
		}
		return Token{}, invalidToken(op, err.Error())
	}
	t, err := tokenFromClaims(m)
	if err != nil {
		return Token{}, invalidToken(op, err.Error())
	}
	return t, nil
}

// Authorize verifies raw and then checks its timestamps against the service clock.
// It returns the subject, an ErrInvalidToken error (bad signature, missing subject,
// nbf in the future beyond the clock skew) or an ErrExpiredToken error.
// Expiration is checked only after the signature is known to be good.
func (s *Service) Authorize(raw string) (string, error) {
	const op = "session.Authorize"

	t, err := s.Verify(raw)
	if err != nil {
		return "", err
	}
	if t.Subject == "" {
		return "", invalidToken(op, "missing subject")
	}

	now := s.now()
	if t.Expiration != nil && !now.Before(*t.Expiration) {
		return "", expiredToken(op)
	}
	if t.NotBefore != nil && now.Add(s.cfg.ClockSkew).Before(*t.NotBefore) {
		return "", invalidToken(op, "token not valid yet")
	}
	return t.Subject, nil
}
