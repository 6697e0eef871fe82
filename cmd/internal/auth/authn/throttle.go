package authn

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdihakim148/beekeeper/cmd/security/token"
)

// Throttle is a per-identifier token bucket for login attempts.
//
// Identifiers are keyed by fingerprint so raw usernames and emails never sit in the
// map. Buckets idle for longer than the sweep interval are dropped.
type Throttle struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	fp    token.Fingerprinter
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[token.Fingerprint]*bucket
	lastSweep time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// ThrottleConfig configures a Throttle.
type ThrottleConfig struct {
	// Every is the refill interval of one attempt.
	Every time.Duration
	// Burst is the number of attempts allowed back to back.
	Burst int
	// Idle is how long an untouched bucket is kept.
	Idle time.Duration
}

// DefaultThrottleConfig allows 5 quick attempts, then one every 12 seconds.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{Every: 12 * time.Second, Burst: 5, Idle: 15 * time.Minute}
}

// NewThrottle builds a throttle. Non-positive values fall back to the defaults.
func NewThrottle(cfg ThrottleConfig, fp token.Fingerprinter) *Throttle {
	def := DefaultThrottleConfig()
	if cfg.Every <= 0 {
		cfg.Every = def.Every
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.Idle <= 0 {
		cfg.Idle = def.Idle
	}
	return &Throttle{
		limit:   rate.Every(cfg.Every),
		burst:   cfg.Burst,
		idle:    cfg.Idle,
		fp:      fp,
		now:     time.Now,
		buckets: make(map[token.Fingerprint]*bucket),
	}
}

// Allow consumes one attempt for identifier and reports whether it may proceed.
func (t *Throttle) Allow(identifier string) bool {
	if t == nil {
		return true
	}
	key := t.fp.Short(identifier)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked(now)
	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Reset forgets identifier, typically after a successful login.
func (t *Throttle) Reset(identifier string) {
	if t == nil {
		return
	}
	key := t.fp.Short(identifier)

	t.mu.Lock()
	delete(t.buckets, key)
	t.mu.Unlock()
}

func (t *Throttle) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < t.idle {
		return
	}
	for k, b := range t.buckets {
		if now.Sub(b.seen) >= t.idle {
			delete(t.buckets, k)
		}
	}
	t.lastSweep = now
}

func (t *Throttle) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buckets)
}
