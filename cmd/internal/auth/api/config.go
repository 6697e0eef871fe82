package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls HTTP adapter limits.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// LoginIPBurst attempts are allowed per client IP, refilled one per LoginIPEvery.
	LoginIPBurst int
	LoginIPEvery time.Duration
}

// DefaultConfig returns the adapter defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 1 << 20, // 1 MiB
		LoginIPBurst: 20,
		LoginIPEvery: 15 * time.Second,
	}
}

// LoadConfigFromEnv overlays BEEKEEPER_AUTH_* variables on DefaultConfig. Unparseable or
// non-positive values keep the default.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.TrustProxy = envOr("BEEKEEPER_AUTH_TRUST_PROXY", cfg.TrustProxy, strconv.ParseBool)
	cfg.MaxBodyBytes = envOr("BEEKEEPER_AUTH_MAX_BODY_BYTES", cfg.MaxBodyBytes, positive(func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}))
	cfg.LoginIPBurst = envOr("BEEKEEPER_AUTH_LOGIN_IP_BURST", cfg.LoginIPBurst, positive(strconv.Atoi))
	cfg.LoginIPEvery = envOr("BEEKEEPER_AUTH_LOGIN_IP_EVERY", cfg.LoginIPEvery, positive(time.ParseDuration))
	return cfg
}

func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

type number interface {
	~int | ~int64
}

func positive[T number](parse func(string) (T, error)) func(string) (T, error) {
	return func(s string) (T, error) {
		n, err := parse(s)
		if err != nil {
			return 0, err
		}
		if n <= 0 {
			return 0, strconv.ErrRange
		}
		return n, nil
	}
}
