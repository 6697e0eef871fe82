package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T, mutate func(*Config)) *App {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Hasher = "bcrypt"
	cfg.Session.KeyPath = filepath.Join(t.TempDir(), "keys.json")
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func serve(t *testing.T, h http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestApp_Probes(t *testing.T) {
	h := newTestApp(t, nil).Handler()

	rr := serve(t, h, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ok\n" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}

	if rr := serve(t, h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodPost, "/healthz", "", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST healthz: %d", rr.Code)
	}
}

func TestApp_ReadyzRequiresDB(t *testing.T) {
	h := newTestApp(t, func(c *Config) { c.ReadinessRequireDB = true }).Handler()
	if rr := serve(t, h, http.MethodGet, "/readyz", "", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz: %d", rr.Code)
	}
}

func TestApp_RegisterMeAndMetrics(t *testing.T) {
	h := newTestApp(t, nil).Handler()

	rr := serve(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "queen",
		"email":    "queen@hive.example",
		"password": "Tr0ub4dor&3-hive",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	var reg struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &reg); err != nil || reg.Session.Token == "" {
		t.Fatalf("decode register: %v %s", err, rr.Body.String())
	}

	rr = serve(t, h, http.MethodGet, "/me", reg.Session.Token, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"queen"`) {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}

	rr = serve(t, h, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`beekeeper_auth_attempts_total{op="register",result="ok"} 1`,
		`beekeeper_auth_attempts_total{op="authorize",result="ok"} 1`,
		"beekeeper_store_operations_total",
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"hasher": func(c *Config) { c.Hasher = "md5" },
		"scheme": func(c *Config) { c.Session.Scheme = "v2.local" },
		"hmac":   func(c *Config) { c.RequireTokenHMAC = true },
		"ttl":    func(c *Config) { c.Session.TTL = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("BEEKEEPER_TOKEN_HMAC_KEY", "")

			cfg := DefaultConfig()
			cfg.Hasher = "bcrypt"
			cfg.Session.KeyPath = filepath.Join(t.TempDir(), "keys.json")
			mutate(&cfg)

			if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	a := newTestApp(t, func(c *Config) { c.HTTPAddr = "127.0.0.1:0" })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
