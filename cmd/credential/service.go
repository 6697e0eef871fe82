package credential

import (
	"errors"
	"fmt"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/security/password"
)

// ErrHashingFailure marks Internal errors raised by the hashing library or by a stored
// hash that cannot be decoded.
var ErrHashingFailure = errors.New("hashing_failure")

// Service is the credential service: policy check, hash and verify.
type Service struct {
	hasher Hasher
	policy password.Config

	// dummy is a real hash of a random string, verified on lookup misses so that a
	// missing account costs as much as a wrong password.
	dummy string
}

// NewService wraps h. Passwords are checked against policy before hashing.
func NewService(h Hasher, policy password.Policy) (*Service, error) {
	if h == nil {
		return nil, fmt.Errorf("credential: nil hasher")
	}
	s := &Service{hasher: h, policy: password.Config{Policy: policy}}

	dummy, err := h.Hash("beekeeper-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("credential: dummy hash: %w", err)
	}
	s.dummy = dummy
	return s, nil
}

// Hasher returns the configured hashing capability.
func (s *Service) Hasher() Hasher { return s.hasher }

// Hash returns the encoded hash of plain.
// Policy violations are InvalidInput; hashing-library failures are Internal.
func (s *Service) Hash(plain string) (string, error) {
	const op = "credential.Hash"

	if err := s.policy.Validate(plain); err != nil {
		return "", fault.Invalid(op, err.Error())
	}
	h, err := s.hasher.Hash(plain)
	if err != nil {
		if policyError(err) {
			return "", fault.Invalid(op, err.Error())
		}
		return "", fault.Internal(op, errors.Join(ErrHashingFailure, err))
	}
	return h, nil
}

// Verify checks plain against encoded.
// It returns nil on a match, an Unauthorized error on a mismatch and an Internal
// error wrapping ErrHashingFailure when encoded is malformed.
func (s *Service) Verify(plain, encoded string) error {
	const op = "credential.Verify"

	ok, err := s.hasher.Verify(plain, encoded)
	if err != nil {
		return fault.Internal(op, errors.Join(ErrHashingFailure, err))
	}
	if !ok {
		return fault.Unauthorized(op, "password mismatch")
	}
	return nil
}

// VerifyDummy burns one verification against a throwaway hash.
func (s *Service) VerifyDummy(plain string) {
	_, _ = s.hasher.Verify(plain, s.dummy)
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash.
func (s *Service) NeedsRehash(encoded string) bool { return s.hasher.NeedsRehash(encoded) }

func policyError(err error) bool {
	return errors.Is(err, password.ErrPasswordTooShort) ||
		errors.Is(err, password.ErrPasswordTooLong) ||
		errors.Is(err, password.ErrWeakPassword)
}
