package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// DefaultKeyPath is where keys live when no path is configured.
const DefaultKeyPath = "paseto_keys.json"

const keySetVersion = 1

// KeySet is the persisted signing-key material.
type KeySet struct {
	Version int `json:"version"`
	// SecretKeyHex is an Ed25519 private key (64 bytes) used by v4.public and jwt-eddsa.
	SecretKeyHex string `json:"secret_key"`
	// SymmetricKeyHex is the 32-byte key used by v4.local.
	SymmetricKeyHex string    `json:"symmetric_key"`
	CreatedAt       time.Time `json:"created_at"`
}

// GenerateKeySet returns fresh key material.
func GenerateKeySet(now time.Time) KeySet {
	return KeySet{
		Version:         keySetVersion,
		SecretKeyHex:    paseto.NewV4AsymmetricSecretKey().ExportHex(),
		SymmetricKeyHex: paseto.NewV4SymmetricKey().ExportHex(),
		CreatedAt:       now.UTC().Truncate(time.Second),
	}
}

// Validate checks that every key decodes.
func (k KeySet) Validate() error {
	if k.Version != keySetVersion {
		return fmt.Errorf("%w: unsupported key set version %d", ErrConfig, k.Version)
	}
	if _, err := paseto.NewV4AsymmetricSecretKeyFromHex(k.SecretKeyHex); err != nil {
		return fmt.Errorf("%w: secret key: %v", ErrConfig, err)
	}
	if _, err := paseto.V4SymmetricKeyFromHex(k.SymmetricKeyHex); err != nil {
		return fmt.Errorf("%w: symmetric key: %v", ErrConfig, err)
	}
	return nil
}

// PublicKeyHex returns the hex-encoded Ed25519 public key.
func (k KeySet) PublicKeyHex() (string, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(k.SecretKeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: secret key: %v", ErrConfig, err)
	}
	return secret.Public().ExportHex(), nil
}

// LoadKeys reads and validates the key file at path.
func LoadKeys(path string) (KeySet, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- operator-configured path.
	if err != nil {
		return KeySet{}, err
	}
	var ks KeySet
	if err := json.Unmarshal(b, &ks); err != nil {
		return KeySet{}, fmt.Errorf("%w: key file %s is malformed: %v", ErrConfig, path, err)
	}
	if err := ks.Validate(); err != nil {
		return KeySet{}, fmt.Errorf("key file %s: %w", path, err)
	}
	return ks, nil
}

// SaveKeys writes ks to a new file at path with mode 0600. It never overwrites: an
// existing file is an fs.ErrExist error.
func SaveKeys(path string, ks KeySet) error {
	b, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- operator-configured path.
	if err != nil {
		return err
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// LoadOrCreateKeys loads the key file at path, generating and saving a new key set when
// the file does not exist. A file that exists but does not parse is an error; it is
// never replaced. warn, when non-nil, is told about key files readable by group or other.
func LoadOrCreateKeys(path string, now time.Time, warn func(msg string, args ...any)) (ks KeySet, created bool, err error) {
	if path == "" {
		path = DefaultKeyPath
	}

	ks, err = LoadKeys(path)
	switch {
	case err == nil:
		if info, statErr := os.Stat(path); statErr == nil && info.Mode().Perm()&0o077 != 0 && warn != nil {
			warn("session.keys.permissions", "path", path, "mode", info.Mode().Perm().String())
		}
		return ks, false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return KeySet{}, false, err
	}

	ks = GenerateKeySet(now)
	if err := SaveKeys(path, ks); err != nil {
		return KeySet{}, false, fmt.Errorf("save key file %s: %w", path, err)
	}
	return ks, true, nil
}
