// Package credential hashes and verifies passwords behind a pluggable Hasher and
// converts hashing-library failures into fault errors.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/abdihakim148/beekeeper/cmd/security/password"
)

// Hasher is the hashing capability the Service depends on.
//
// Verify returns (false, nil) on a mismatch and an error only when encoded is not a
// hash this Hasher understands.
type Hasher interface {
	Name() string
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

// ErrMalformedHash is returned by hashers for stored hashes they cannot decode.
var ErrMalformedHash = errors.New("credential: malformed hash")

// Argon2id hashes with the security/password PHC encoder.
type Argon2id struct {
	Config password.Config
}

func (Argon2id) Name() string { return "argon2id" }

func (h Argon2id) Hash(plain string) (string, error) { return h.Config.Hash(plain) }

func (h Argon2id) Verify(plain, encoded string) (bool, error) {
	ok, err := h.Config.Verify(encoded, plain)
	if errors.Is(err, password.ErrInvalidHash) {
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
	return ok, err
}

func (h Argon2id) NeedsRehash(encoded string) bool { return h.Config.NeedsRehash(encoded) }

// Bcrypt hashes with golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	Cost int
}

// DefaultBcryptCost is used when Bcrypt.Cost is zero.
const DefaultBcryptCost = 12

func (Bcrypt) Name() string { return "bcrypt" }

func (h Bcrypt) cost() int {
	if h.Cost == 0 {
		return DefaultBcryptCost
	}
	return h.Cost
}

func (h Bcrypt) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost())
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", password.ErrPasswordTooLong
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h Bcrypt) Verify(plain, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, err)
	}
}

func (h Bcrypt) NeedsRehash(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	return err != nil || cost != h.cost()
}

// NewHasher selects a Hasher by name: "argon2id" (default when empty) or "bcrypt".
func NewHasher(name string, cfg password.Config) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "argon2id", "argon2":
		return Argon2id{Config: cfg}, nil
	case "bcrypt":
		return Bcrypt{}, nil
	default:
		return nil, fmt.Errorf("credential: unknown hasher %q", name)
	}
}
