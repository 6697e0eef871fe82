package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const phcVersion = argon2.Version // 0x13

var b64 = base64.RawStdEncoding

// phc is a decoded Argon2id hash string.
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (h phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcVersion, h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

// Hash validates password against the policy and returns its PHC-encoded Argon2id hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	p := c.Params
	return phc{
		params: p,
		salt:   salt,
		key:    argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength),
	}.String(), nil
}

// Verify reports whether password matches encodedHash.
// A malformed hash, or one whose cost is more than twice the configured cost, is
// ErrInvalidHash; a mismatch is (false, nil).
func (c Config) Verify(encodedHash, password string) (bool, error) {
	h, err := decode(encodedHash)
	if err != nil {
		return false, err
	}
	if !c.affordable(h.params) {
		return false, ErrInvalidHash
	}

	key := argon2.IDKey([]byte(password), h.salt, h.params.Iterations, h.params.MemoryKiB,
		h.params.Parallelism, h.params.KeyLength)
	return subtle.ConstantTimeCompare(key, h.key) == 1, nil
}

// NeedsRehash reports whether encodedHash was produced with parameters other than the
// configured ones. Malformed hashes need a rehash too.
func (c Config) NeedsRehash(encodedHash string) bool {
	h, err := decode(encodedHash)
	if err != nil {
		return true
	}
	want := c.Params
	return h.params.MemoryKiB != want.MemoryKiB ||
		h.params.Iterations != want.Iterations ||
		h.params.Parallelism != want.Parallelism ||
		h.params.KeyLength != want.KeyLength ||
		h.params.SaltLength != want.SaltLength
}

func (c Config) affordable(got Argon2idParams) bool {
	limit := c.Params
	return got.MemoryKiB <= limit.MemoryKiB*2 &&
		got.Iterations <= limit.Iterations*2 &&
		uint32(got.Parallelism) <= uint32(limit.Parallelism)*2 &&
		got.SaltLength >= 8 && got.SaltLength <= 64 &&
		got.KeyLength >= 16 && got.KeyLength <= 128
}

func decode(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if parts[2] != "v="+strconv.Itoa(phcVersion) {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return phc{}, ErrInvalidHash
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),        // #nosec G115 -- checked above.
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by the encoded string.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by the encoded string.
		},
		salt: salt,
		key:  key,
	}, nil
}
