package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a minimal blocklist of trivial passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline used when no env overrides are set.
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// Env variable names read by FromEnv.
const (
	EnvMinLength      = "BEEKEEPER_PASSWORD_MIN_LEN"
	EnvMaxLength      = "BEEKEEPER_PASSWORD_MAX_LEN"
	EnvRejectVeryWeak = "BEEKEEPER_PASSWORD_REJECT_VERY_WEAK"
	EnvMemoryKiB      = "BEEKEEPER_ARGON2_MEMORY_KIB"
	EnvIterations     = "BEEKEEPER_ARGON2_ITERATIONS"
	EnvParallelism    = "BEEKEEPER_ARGON2_PARALLELISM"
	EnvSaltLength     = "BEEKEEPER_ARGON2_SALT_LEN"
	EnvKeyLength      = "BEEKEEPER_ARGON2_KEY_LEN"
)

// FromEnv returns DefaultConfig with the BEEKEEPER_PASSWORD_* and BEEKEEPER_ARGON2_*
// overrides applied. Out-of-range values are errors, never clamped.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	par := uint32(cfg.Params.Parallelism)
	overrides := []struct {
		name  string
		apply func(string) error
	}{
		{EnvMinLength, intInto(&cfg.Policy.MinLength, 1, 1024)},
		{EnvMaxLength, intInto(&cfg.Policy.MaxLength, 1, 4096)},
		{EnvRejectVeryWeak, boolInto(&cfg.Policy.RejectVeryWeak)},
		{EnvMemoryKiB, u32Into(&cfg.Params.MemoryKiB, 8*1024, 1024*1024)},
		{EnvIterations, u32Into(&cfg.Params.Iterations, 1, 20)},
		{EnvParallelism, u32Into(&par, 1, math.MaxUint8)},
		{EnvSaltLength, u32Into(&cfg.Params.SaltLength, 8, 64)},
		{EnvKeyLength, u32Into(&cfg.Params.KeyLength, 16, 64)},
	}
	for _, o := range overrides {
		v, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.apply(strings.TrimSpace(v)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", o.name, err)
		}
	}
	cfg.Params.Parallelism = uint8(par) // #nosec G115 -- bounded above.

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength)
	}
	return cfg, nil
}

func intInto(dst *int, lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not an integer")
		}
		if n < lo || n > hi {
			return fmt.Errorf("out of range [%d..%d]", lo, hi)
		}
		*dst = n
		return nil
	}
}

func u32Into(dst *uint32, lo, hi uint32) func(string) error {
	return func(s string) error {
		u, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return fmt.Errorf("not an unsigned integer")
		}
		if uint32(u) < lo || uint32(u) > hi {
			return fmt.Errorf("out of range [%d..%d]", lo, hi)
		}
		*dst = uint32(u)
		return nil
	}
}

func boolInto(dst *bool) func(string) error {
	return func(s string) error {
		switch strings.ToLower(s) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		default:
			return fmt.Errorf("invalid boolean")
		}
		return nil
	}
}
