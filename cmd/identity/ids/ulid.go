// Package ids provides ID primitives (ULID) shared by principals, tenants, roles and tokens.
package ids

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a new ULID string (26 chars).
// ULIDs are lexicographically sortable and work well in distributed systems.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// MustULID is NewULID for callers that cannot recover from an entropy failure.
func MustULID(now time.Time) string {
	id, err := NewULID(now)
	if err != nil {
		panic(err)
	}
	return id
}

// Canonical strictly parses s as a ULID and returns its canonical (upper-case) form.
func Canonical(s string) (string, error) {
	id, err := ulid.ParseStrict(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
