package authapi

import (
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/internal/auth/authn"
	"github.com/abdihakim148/beekeeper/cmd/security/token"
)

func TestAllowLoginFrom(t *testing.T) {
	t.Parallel()

	h := &Handler{ipThrottle: authn.NewThrottle(authn.ThrottleConfig{Every: time.Hour, Burst: 1}, token.NewFingerprinter(nil))}

	a, b := net.ParseIP("192.0.2.1"), net.ParseIP("192.0.2.2")
	if !h.allowLoginFrom(a) || h.allowLoginFrom(a) {
		t.Fatalf("burst of 1 not enforced")
	}
	if !h.allowLoginFrom(b) {
		t.Fatalf("independent ip throttled")
	}
	if !h.allowLoginFrom(nil) {
		t.Fatalf("unknown ip throttled")
	}
}

func TestWriteRateLimited(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	writeRateLimited(rr, 90*time.Second)
	if rr.Code != 429 || rr.Header().Get("Retry-After") != "90" {
		t.Fatalf("status=%d retry=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
}
