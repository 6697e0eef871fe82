package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beekeeper.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(ConfigEnv, "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig()
	if cfg.HTTPAddr != def.HTTPAddr || cfg.Hasher != def.Hasher || cfg.Session.Scheme != def.Session.Scheme {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
http:
  addr: 127.0.0.1:9000
  read_timeout: 3s
  trust_proxy: true
log:
  level: debug
  format: pretty
database:
  schema: hive
  max_conns: 4
auth:
  issuer: hive.example
  audience: [web, cli]
  token_ttl: 1h
  scheme: JWT-EdDSA
  hasher: bcrypt
  login_burst: 9
  login_every: 2s
`)
	t.Setenv(ConfigEnv, path)
	t.Setenv("BEEKEEPER_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("BEEKEEPER_AUTH_ISSUER", "env.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	// env wins over file
	if cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.Session.Issuer != "env.example" {
		t.Fatalf("Issuer=%q", cfg.Session.Issuer)
	}

	// file wins over defaults
	if cfg.ReadTimeout != 3*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
	if !cfg.Auth.TrustProxy {
		t.Fatal("TrustProxy not applied")
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "pretty" {
		t.Fatalf("log=%q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DBSchema != "hive" || cfg.DBMaxConns != 4 {
		t.Fatalf("db=%q/%d", cfg.DBSchema, cfg.DBMaxConns)
	}
	if got := strings.Join(cfg.Session.Audience, ","); got != "web,cli" {
		t.Fatalf("Audience=%q", got)
	}
	if cfg.Session.TTL != time.Hour || cfg.Session.Scheme != "jwt-eddsa" {
		t.Fatalf("session=%v/%q", cfg.Session.TTL, cfg.Session.Scheme)
	}
	if cfg.Hasher != "bcrypt" {
		t.Fatalf("Hasher=%q", cfg.Hasher)
	}
	if cfg.Throttle.Burst != 9 || cfg.Throttle.Every != 2*time.Second {
		t.Fatalf("throttle=%+v", cfg.Throttle)
	}

	// untouched values keep defaults
	if cfg.WriteTimeout != DefaultConfig().WriteTimeout {
		t.Fatalf("WriteTimeout=%v", cfg.WriteTimeout)
	}
}

func TestLoadConfig_FileErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "auth:\n  token_ttl: soon\n", "auth.token_ttl"},
		{"negative duration", "http:\n  idle_timeout: -1s\n", "http.idle_timeout"},
		{"unknown field", "http:\n  port: 80\n", "port"},
		{"not yaml", "http: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(ConfigEnv, writeConfig(t, tt.body))
			_, err := LoadConfig()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, ""))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != DefaultConfig().HTTPAddr {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
}

func TestLoadConfig_InvalidSessionEnv(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	t.Setenv("BEEKEEPER_AUTH_TOKEN_SCHEME", "v2.local")
	if _, err := LoadConfig(); err == nil || !strings.Contains(err.Error(), "session config") {
		t.Fatalf("err=%v", err)
	}
}
