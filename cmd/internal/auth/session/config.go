package session

import (
	"os"
	"strings"
	"time"
)

// Config is the runtime configuration of the token service.
type Config struct {
	// Issuer is the default "iss" claim.
	Issuer string
	// Audience is the default "aud" claim; empty means none.
	Audience []string
	// TTL is the default token lifetime. Zero issues tokens without "exp".
	TTL time.Duration
	// ClockSkew tolerates issuers whose clocks run slightly ahead ("nbf" only).
	ClockSkew time.Duration
	// Scheme selects the Signer (v4.public, v4.local, jwt-eddsa).
	Scheme string
	// KeyPath is the key file location.
	KeyPath string
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		Issuer:    "beekeeper",
		TTL:       24 * time.Hour,
		ClockSkew: 30 * time.Second,
		Scheme:    SchemeV4Public,
		KeyPath:   DefaultKeyPath,
	}
}

// LoadConfigFromEnv returns DefaultConfig with env overrides applied.
func LoadConfigFromEnv() (Config, error) {
	return DefaultConfig().WithEnv()
}

// WithEnv applies env overrides on top of c.
//
// Optional (durations are Go duration strings):
//   - BEEKEEPER_AUTH_ISSUER
//   - BEEKEEPER_AUTH_AUDIENCE (comma separated)
//   - BEEKEEPER_AUTH_TOKEN_TTL
//   - BEEKEEPER_AUTH_CLOCK_SKEW
//   - BEEKEEPER_AUTH_TOKEN_SCHEME
//   - BEEKEEPER_AUTH_KEY_FILE
//
// Returns ErrConfig if the result is invalid.
func (c Config) WithEnv() (Config, error) {
	if v := strings.TrimSpace(os.Getenv("BEEKEEPER_AUTH_ISSUER")); v != "" {
		c.Issuer = v
	}
	if v, ok := os.LookupEnv("BEEKEEPER_AUTH_AUDIENCE"); ok {
		c.Audience = nil
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				c.Audience = append(c.Audience, a)
			}
		}
	}
	if v := os.Getenv("BEEKEEPER_AUTH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		c.TTL = d
	}
	if v := os.Getenv("BEEKEEPER_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		c.ClockSkew = d
	}
	if v := strings.TrimSpace(os.Getenv("BEEKEEPER_AUTH_TOKEN_SCHEME")); v != "" {
		c.Scheme = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("BEEKEEPER_AUTH_KEY_FILE")); v != "" {
		c.KeyPath = v
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks invariants.
func (c Config) Validate() error {
	if c.TTL < 0 || c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return ErrConfig
	}
	switch c.Scheme {
	case SchemeV4Public, SchemeV4Local, SchemeJWTEdDSA:
	default:
		return ErrConfig
	}
	if strings.TrimSpace(c.KeyPath) == "" {
		return ErrConfig
	}
	return nil
}
