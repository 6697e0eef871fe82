package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	authapi "github.com/abdihakim148/beekeeper/cmd/internal/auth/api"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/authn"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/session"
)

// ConfigEnv names the optional YAML config file.
const ConfigEnv = "BEEKEEPER_CONFIG"

// Config contains all runtime configuration.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL enables Postgres-backed principals. Memberships and scopes stay in
	// memory either way.
	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, BEEKEEPER_TOKEN_HMAC_KEY must be set (>= 32 bytes) and log fingerprints
	// are HMAC-based.
	RequireTokenHMAC bool

	// Hasher selects the credential hasher: argon2id (default) or bcrypt.
	Hasher string

	Session  session.Config
	Auth     authapi.Config
	Throttle authn.ThrottleConfig
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:          "0.0.0.0:8080",
		LogLevel:          "info",
		LogFormat:         "json",
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
		DBSchema:          "beekeeper",
		DBMaxConns:        10,
		Hasher:            "argon2id",
		Session:           session.DefaultConfig(),
		Auth:              authapi.DefaultConfig(),
		Throttle:          authn.DefaultThrottleConfig(),
	}
}

// LoadConfig builds the configuration in three layers: defaults, the YAML file named by
// BEEKEEPER_CONFIG (if any), then environment variables.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigEnv)); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg.withEnv()
}

func (c Config) withEnv() (Config, error) {
	c.HTTPAddr = EnvString("BEEKEEPER_HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = EnvString("BEEKEEPER_LOG_LEVEL", c.LogLevel)
	c.LogFormat = EnvString("BEEKEEPER_LOG_FORMAT", c.LogFormat)

	c.ReadHeaderTimeout = EnvDuration("BEEKEEPER_HTTP_READ_HEADER_TIMEOUT", c.ReadHeaderTimeout)
	c.ReadTimeout = EnvDuration("BEEKEEPER_HTTP_READ_TIMEOUT", c.ReadTimeout)
	c.WriteTimeout = EnvDuration("BEEKEEPER_HTTP_WRITE_TIMEOUT", c.WriteTimeout)
	c.IdleTimeout = EnvDuration("BEEKEEPER_HTTP_IDLE_TIMEOUT", c.IdleTimeout)
	c.MaxHeaderBytes = EnvInt("BEEKEEPER_HTTP_MAX_HEADER_BYTES", c.MaxHeaderBytes)

	c.DatabaseURL = EnvString("BEEKEEPER_DATABASE_URL", c.DatabaseURL)
	c.DBSchema = EnvString("BEEKEEPER_DB_SCHEMA", c.DBSchema)
	c.DBMaxConns = EnvInt32("BEEKEEPER_DB_MAX_CONNS", c.DBMaxConns)
	c.DBMinConns = EnvInt32("BEEKEEPER_DB_MIN_CONNS", c.DBMinConns)

	c.ReadinessRequireDB = EnvBool("BEEKEEPER_READINESS_REQUIRE_DB", c.ReadinessRequireDB)
	c.RequireTokenHMAC = EnvBool("BEEKEEPER_REQUIRE_TOKEN_HMAC", c.RequireTokenHMAC)
	c.Hasher = EnvString("BEEKEEPER_PASSWORD_HASHER", c.Hasher)

	c.Throttle.Every = EnvDuration("BEEKEEPER_LOGIN_THROTTLE_EVERY", c.Throttle.Every)
	c.Throttle.Burst = EnvInt("BEEKEEPER_LOGIN_THROTTLE_BURST", c.Throttle.Burst)

	c.Auth.TrustProxy = EnvBool("BEEKEEPER_AUTH_TRUST_PROXY", c.Auth.TrustProxy)
	c.Auth.MaxBodyBytes = int64(EnvInt("BEEKEEPER_AUTH_MAX_BODY_BYTES", int(c.Auth.MaxBodyBytes)))
	c.Auth.LoginIPBurst = EnvInt("BEEKEEPER_AUTH_LOGIN_IP_BURST", c.Auth.LoginIPBurst)
	c.Auth.LoginIPEvery = EnvDuration("BEEKEEPER_AUTH_LOGIN_IP_EVERY", c.Auth.LoginIPEvery)

	sess, err := c.Session.WithEnv()
	if err != nil {
		return Config{}, fmt.Errorf("session config: %w", err)
	}
	c.Session = sess
	return c, nil
}

// fileConfig is the YAML shape. Durations are Go duration strings; empty values keep
// the layer below.
type fileConfig struct {
	HTTP struct {
		Addr              string `yaml:"addr"`
		ReadHeaderTimeout string `yaml:"read_header_timeout"`
		ReadTimeout       string `yaml:"read_timeout"`
		WriteTimeout      string `yaml:"write_timeout"`
		IdleTimeout       string `yaml:"idle_timeout"`
		TrustProxy        *bool  `yaml:"trust_proxy"`
	} `yaml:"http"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		URL          string `yaml:"url"`
		Schema       string `yaml:"schema"`
		MaxConns     int32  `yaml:"max_conns"`
		MinConns     int32  `yaml:"min_conns"`
		RequireReady *bool  `yaml:"require_ready"`
	} `yaml:"database"`

	Auth struct {
		Issuer           string   `yaml:"issuer"`
		Audience         []string `yaml:"audience"`
		TokenTTL         string   `yaml:"token_ttl"`
		ClockSkew        string   `yaml:"clock_skew"`
		Scheme           string   `yaml:"scheme"`
		KeyFile          string   `yaml:"key_file"`
		Hasher           string   `yaml:"hasher"`
		RequireTokenHMAC *bool    `yaml:"require_token_hmac"`
		LoginBurst       int      `yaml:"login_burst"`
		LoginEvery       string   `yaml:"login_every"`
	} `yaml:"auth"`
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := c.applyYAML(b); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyYAML(b []byte) error {
	var f fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	setString(&c.HTTPAddr, f.HTTP.Addr)
	setString(&c.LogLevel, f.Log.Level)
	setString(&c.LogFormat, f.Log.Format)
	setString(&c.DatabaseURL, f.Database.URL)
	setString(&c.DBSchema, f.Database.Schema)
	setString(&c.Session.Issuer, f.Auth.Issuer)
	setString(&c.Session.Scheme, strings.ToLower(f.Auth.Scheme))
	setString(&c.Session.KeyPath, f.Auth.KeyFile)
	setString(&c.Hasher, f.Auth.Hasher)
	setBool(&c.Auth.TrustProxy, f.HTTP.TrustProxy)
	setBool(&c.ReadinessRequireDB, f.Database.RequireReady)
	setBool(&c.RequireTokenHMAC, f.Auth.RequireTokenHMAC)

	if f.Database.MaxConns > 0 {
		c.DBMaxConns = f.Database.MaxConns
	}
	if f.Database.MinConns > 0 {
		c.DBMinConns = f.Database.MinConns
	}
	if f.Auth.LoginBurst > 0 {
		c.Throttle.Burst = f.Auth.LoginBurst
	}
	if f.Auth.Audience != nil {
		c.Session.Audience = append([]string(nil), f.Auth.Audience...)
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"http.read_header_timeout", f.HTTP.ReadHeaderTimeout, &c.ReadHeaderTimeout},
		{"http.read_timeout", f.HTTP.ReadTimeout, &c.ReadTimeout},
		{"http.write_timeout", f.HTTP.WriteTimeout, &c.WriteTimeout},
		{"http.idle_timeout", f.HTTP.IdleTimeout, &c.IdleTimeout},
		{"auth.token_ttl", f.Auth.TokenTTL, &c.Session.TTL},
		{"auth.clock_skew", f.Auth.ClockSkew, &c.Session.ClockSkew},
		{"auth.login_every", f.Auth.LoginEvery, &c.Throttle.Every},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil || v < 0 {
			return fmt.Errorf("%s: invalid duration %q", d.name, d.raw)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
