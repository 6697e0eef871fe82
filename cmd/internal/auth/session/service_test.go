package session

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var schemes = []string{SchemeV4Public, SchemeV4Local, SchemeJWTEdDSA}

func newTestService(t *testing.T, scheme string, ks KeySet, clock *fakeClock) *Service {
	t.Helper()

	signer, err := NewSigner(scheme, ks)
	if err != nil {
		t.Fatalf("NewSigner(%s): %v", scheme, err)
	}
	cfg := DefaultConfig()
	cfg.Scheme = scheme
	svc, err := NewService(signer, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_IssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 123456789, time.UTC)}
			svc := newTestService(t, scheme, ks, clock)

			raw, issued, err := svc.Issue("01HZY8N6X1Z9J0Q7D8S5V4T3R2", "beekeeper", NewAudience("web", "cli"), time.Hour,
				map[string]any{"tenant": "t1", "n": 3.0})
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if scheme == SchemeJWTEdDSA {
				if strings.Count(raw, ".") != 2 {
					t.Fatalf("not a compact JWT: %q", raw)
				}
			} else if !strings.HasPrefix(raw, scheme+".") {
				t.Fatalf("token %q lacks %s header", raw, scheme)
			}

			wantIAT := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
			if !issued.IssuedAt.Equal(wantIAT) || issued.NotBefore == nil || !issued.NotBefore.Equal(wantIAT) {
				t.Fatalf("timestamps not truncated to the second: %+v", issued)
			}
			// 10:00:00.123 + 1h rounds up to the next whole second.
			if issued.Expiration == nil || !issued.Expiration.Equal(wantIAT.Add(time.Hour+time.Second)) {
				t.Fatalf("exp=%v", issued.Expiration)
			}

			got, err := svc.Verify(raw)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got.ID != issued.ID || got.Subject != issued.Subject || got.Issuer != "beekeeper" {
				t.Fatalf("verified %+v, issued %+v", got, issued)
			}
			if !got.Audience.Equal(NewAudience("web", "cli")) {
				t.Fatalf("audience=%v", got.Audience.Values())
			}
			if !got.IssuedAt.Equal(issued.IssuedAt) || !got.Expiration.Equal(*issued.Expiration) || !got.NotBefore.Equal(*issued.NotBefore) {
				t.Fatalf("timestamps changed in transit: %+v", got)
			}
			if got.Claims["tenant"] != "t1" || got.Claims["n"] != 3.0 || len(got.Claims) != 2 {
				t.Fatalf("custom claims=%v", got.Claims)
			}
		})
	}
}

func TestService_AuthorizeLifecycle(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
			svc := newTestService(t, scheme, ks, clock)

			const subject = "01HZY8N6X1Z9J0Q7D8S5V4T3R2"
			raw, _, err := svc.Issue(subject, "", Audience{}, time.Second, nil)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}

			sub, err := svc.Authorize(raw)
			if err != nil || sub != subject {
				t.Fatalf("Authorize immediately=%q,%v", sub, err)
			}

			clock.Advance(time.Second)
			if _, err := svc.Authorize(raw); !fault.IsExpiredToken(err) {
				t.Fatalf("Authorize after ttl=%v, want expired", err)
			}

			// Verify ignores timestamps.
			if _, err := svc.Verify(raw); err != nil {
				t.Fatalf("Verify after ttl: %v", err)
			}
		})
	}
}

func TestService_SubSecondClockKeepsFullTTL(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			t.Parallel()

			start := time.Date(2026, 5, 1, 12, 0, 0, 900_000_000, time.UTC)
			clock := &fakeClock{now: start}
			svc := newTestService(t, scheme, ks, clock)

			const subject = "01HZY8N6X1Z9J0Q7D8S5V4T3R2"
			raw, issued, err := svc.Issue(subject, "", Audience{}, 500*time.Millisecond, nil)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if want := time.Date(2026, 5, 1, 12, 0, 2, 0, time.UTC); !issued.Expiration.Equal(want) {
				t.Fatalf("exp=%v, want %v", issued.Expiration, want)
			}

			if sub, err := svc.Authorize(raw); err != nil || sub != subject {
				t.Fatalf("Authorize immediately=%q,%v", sub, err)
			}

			// The full ttl is honoured from the untruncated issue time.
			clock.Advance(500*time.Millisecond - time.Nanosecond)
			if _, err := svc.Authorize(raw); err != nil {
				t.Fatalf("Authorize before ttl elapsed: %v", err)
			}

			clock.Advance(time.Second)
			if _, err := svc.Authorize(raw); !fault.IsExpiredToken(err) {
				t.Fatalf("Authorize after rounded exp=%v, want expired", err)
			}
		})
	}
}

func TestCeilSecond(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if got := ceilSecond(base); !got.Equal(base) {
		t.Fatalf("whole second moved: %v", got)
	}
	if got := ceilSecond(base.Add(time.Nanosecond)); !got.Equal(base.Add(time.Second)) {
		t.Fatalf("ceil=%v", got)
	}
}

func TestService_AuthorizeChecksSignatureBeforeExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, SchemeV4Public, GenerateKeySet(time.Now()), clock)
	other := newTestService(t, SchemeV4Public, GenerateKeySet(time.Now()), clock)

	raw, _, err := other.Issue("sub", "", Audience{}, time.Second, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clock.Advance(time.Hour)

	// Expired and signed by a foreign key: the signature failure wins.
	if _, err := svc.Authorize(raw); !fault.IsInvalidToken(err) || fault.IsExpiredToken(err) {
		t.Fatalf("Authorize=%v, want invalid token", err)
	}
}

func TestService_RejectsTamperedTokens(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	for _, scheme := range schemes {
		t.Run(scheme, func(t *testing.T) {
			t.Parallel()

			clock := &fakeClock{now: time.Now()}
			svc := newTestService(t, scheme, ks, clock)

			raw, _, err := svc.Issue("sub", "", Audience{}, time.Hour, nil)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}

			for _, bad := range []string{"", "garbage", tamper(raw), raw + "x"} {
				if _, err := svc.Authorize(bad); !fault.IsInvalidToken(err) {
					t.Fatalf("Authorize(%q)=%v, want invalid token", bad, err)
				}
			}
		})
	}
}

// tamper flips one payload character away from the trailing base64 padding bits.
func tamper(raw string) string {
	b := []byte(raw)
	i := len(b) - 10
	for b[i] == '.' {
		i--
	}
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestService_SchemesDoNotCrossVerify(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	clock := &fakeClock{now: time.Now()}
	public := newTestService(t, SchemeV4Public, ks, clock)
	local := newTestService(t, SchemeV4Local, ks, clock)

	raw, _, err := public.Issue("sub", "", Audience{}, time.Hour, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := local.Verify(raw); !fault.IsInvalidToken(err) {
		t.Fatalf("v4.local accepted a v4.public token: %v", err)
	}
}

func TestService_NotBeforeWithSkew(t *testing.T) {
	t.Parallel()

	ks := GenerateKeySet(time.Now())
	issuerClock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 10, 0, time.UTC)}
	issuer := newTestService(t, SchemeV4Public, ks, issuerClock)

	raw, _, err := issuer.Issue("sub", "", Audience{}, time.Hour, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Verifier 10s behind: inside the default 30s skew.
	behind := newTestService(t, SchemeV4Public, ks, &fakeClock{now: issuerClock.now.Add(-10 * time.Second)})
	if _, err := behind.Authorize(raw); err != nil {
		t.Fatalf("within skew: %v", err)
	}

	// Verifier 5 minutes behind: token not valid yet.
	far := newTestService(t, SchemeV4Public, ks, &fakeClock{now: issuerClock.now.Add(-5 * time.Minute)})
	if _, err := far.Authorize(raw); !fault.IsInvalidToken(err) {
		t.Fatalf("beyond skew=%v, want invalid token", err)
	}
}

func TestService_IssueValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, SchemeV4Public, GenerateKeySet(time.Now()), &fakeClock{now: time.Now()})

	if _, _, err := svc.Issue("", "", Audience{}, time.Hour, nil); !fault.IsInvalidInput(err) {
		t.Fatalf("empty subject=%v", err)
	}
	for _, reserved := range []string{"sub", "exp", "jti"} {
		_, _, err := svc.Issue("sub", "", Audience{}, time.Hour, map[string]any{reserved: "x"})
		if !fault.IsConversion(err) {
			t.Fatalf("reserved claim %q=%v, want conversion error", reserved, err)
		}
	}

	raw, tok, err := svc.Issue("sub", "", Audience{}, 0, nil)
	if err != nil || tok.Expiration != nil {
		t.Fatalf("ttl=0 should omit exp: %+v %v", tok, err)
	}
	if sub, err := svc.Authorize(raw); err != nil || sub != "sub" {
		t.Fatalf("Authorize without exp=%q,%v", sub, err)
	}
	if tok.Issuer != "beekeeper" {
		t.Fatalf("issuer default=%q", tok.Issuer)
	}
}

func TestAudience_JSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		aud  Audience
		want string
	}{
		{aud: Audience{}, want: `null`},
		{aud: NewAudience("web"), want: `"web"`},
		{aud: NewAudience("web", "cli"), want: `["web","cli"]`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(tc.aud)
		if err != nil || string(b) != tc.want {
			t.Fatalf("Marshal(%v)=%s,%v want %s", tc.aud.Values(), b, err, tc.want)
		}
		var back Audience
		if err := json.Unmarshal(b, &back); err != nil || !back.Equal(tc.aud) {
			t.Fatalf("Unmarshal(%s)=%v,%v", b, back.Values(), err)
		}
	}

	var bad Audience
	if err := json.Unmarshal([]byte(`[1,2]`), &bad); !fault.IsConversion(err) {
		t.Fatalf("numeric audience=%v", err)
	}
}

func TestNewSigner_Errors(t *testing.T) {
	t.Parallel()

	if _, err := NewSigner("v1.public", GenerateKeySet(time.Now())); err == nil {
		t.Fatalf("expected unknown scheme error")
	}
	for _, scheme := range schemes {
		if _, err := NewSigner(scheme, KeySet{SecretKeyHex: "zz", SymmetricKeyHex: "zz"}); err == nil {
			t.Fatalf("%s: expected bad key error", scheme)
		}
	}
}
