package storage

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// Integration tests are opt-in and require BEEKEEPER_DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresPrincipals_CreateLookupRead(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresPrincipals(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	id, err := s.Create(ctx, identity.Principal{
		Username:     "Navid",
		Contact:      identity.Contact{Email: &identity.Email{Address: "Navid@Example.com", Verified: true}},
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, ident := range []string{"navid", "NAVID@example.com"} {
		p, err := s.Lookup(ctx, ident)
		if err != nil {
			t.Fatalf("lookup %q: %v", ident, err)
		}
		if p.ID != id || p.PasswordHash == "" || p.Contact.Email == nil || !p.Contact.Email.Verified {
			t.Fatalf("lookup %q returned %+v", ident, p)
		}
	}

	p, err := s.Read(ctx, id)
	if err != nil || p.Username != "Navid" {
		t.Fatalf("read: %+v %v", p, err)
	}

	if _, err := s.Read(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV"); !fault.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresPrincipals_ConflictCaseInsensitive(t *testing.T) {
	t.Parallel()

	s := mustNewPostgresPrincipals(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := s.Create(ctx, identity.Principal{
		Username:     "first",
		Contact:      identity.Contact{Email: &identity.Email{Address: "User@Example.com"}},
		PasswordHash: "h1",
	})
	if err != nil {
		t.Fatalf("create 1: %v", err)
	}

	_, err = s.Create(ctx, identity.Principal{
		Username:     "second",
		Contact:      identity.Contact{Email: &identity.Email{Address: "user@example.COM"}},
		PasswordHash: "h2",
	})
	var ce fault.ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}
}

func TestNewPostgresPrincipals_RejectsBadSchema(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresPrincipals(nil); err == nil {
		t.Fatalf("expected nil pool error")
	}
	if _, err := NewPostgresPrincipals(&pgxpool.Pool{}, WithSchema(`x"; DROP TABLE y; --`)); err == nil {
		t.Fatalf("expected invalid schema error")
	}
}

// ---- helpers ----

func mustNewPostgresPrincipals(t *testing.T) *PostgresPrincipals {
	t.Helper()

	pool := mustOpenTestPool(t)
	t.Cleanup(pool.Close)

	schema := "beekeeper_it_" + strings.ToLower(string(newID(t)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
	})

	s, err := NewPostgresPrincipals(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("BEEKEEPER_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: BEEKEEPER_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse BEEKEEPER_DATABASE_URL: %v", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()
	return pool
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "context deadline exceeded", "timeout", "dial tcp", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
