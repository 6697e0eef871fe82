package authn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/credential"
	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/session"
	"github.com/abdihakim148/beekeeper/cmd/security/token"
)

// PrincipalStore is the persistence the authenticator needs.
type PrincipalStore interface {
	Create(ctx context.Context, p identity.Principal) (identity.ID, error)
	// Lookup resolves a username, email or phone. The result carries the password hash.
	Lookup(ctx context.Context, identifier string) (identity.Principal, error)
}

// PasswordRehasher is implemented by stores that can replace a stored hash. When the
// store implements it, outdated hashes are upgraded on successful login.
type PasswordRehasher interface {
	SetPasswordHash(ctx context.Context, id identity.ID, hash string) error
}

// Observer receives one call per orchestrated operation.
type Observer interface {
	ObserveAuth(op, result string)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(op, result string)

func (f ObserverFunc) ObserveAuth(op, result string) { f(op, result) }

type nopObserver struct{}

func (nopObserver) ObserveAuth(string, string) {}

const (
	OpRegister  = "register"
	OpLogin     = "login"
	OpAuthorize = "authorize"

	// ResultThrottled labels logins refused by the throttle.
	ResultThrottled = "throttled"
)

// Issued is a freshly signed token plus the claims it carries and the principal it was
// issued to (never with a password hash).
type Issued struct {
	Token     string             `json:"token"`
	Claims    session.Token      `json:"claims"`
	Principal identity.Principal `json:"principal"`
}

// Authenticator wires principals, credentials and tokens together.
type Authenticator struct {
	store    PrincipalStore
	creds    *credential.Service
	sessions *session.Service

	throttle *Throttle
	obs      Observer
	log      *slog.Logger
	fp       token.Fingerprinter
	now      func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithThrottle enables per-identifier login throttling.
func WithThrottle(t *Throttle) Option {
	return func(a *Authenticator) { a.throttle = t }
}

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option {
	return func(a *Authenticator) {
		if o != nil {
			a.obs = o
		}
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithFingerprinter sets how identifiers and tokens are digested for logs.
func WithFingerprinter(fp token.Fingerprinter) Option {
	return func(a *Authenticator) { a.fp = fp }
}

// WithClock overrides the clock used for creation times.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// New constructs an Authenticator.
func New(store PrincipalStore, creds *credential.Service, sessions *session.Service, opts ...Option) (*Authenticator, error) {
	if store == nil || creds == nil || sessions == nil {
		return nil, fmt.Errorf("authn: store, credentials and sessions are required")
	}
	a := &Authenticator{
		store:    store,
		creds:    creds,
		sessions: sessions,
		obs:      nopObserver{},
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Register validates in, stores a new principal and issues its first token.
//
// If persistence fails the hash is discarded and no token is issued. Conflicts and
// validation failures are returned as is; anything unexpected is Internal.
func (a *Authenticator) Register(ctx context.Context, in RegisterInput) (out Issued, err error) {
	const op = "authn.Register"
	defer func() { a.obs.ObserveAuth(OpRegister, fault.KindName(err)) }()

	in = in.normalized()
	if err := in.Validate(); err != nil {
		return Issued{}, err
	}
	contact, err := in.contact()
	if err != nil {
		return Issued{}, err
	}
	hash, err := a.creds.Hash(in.Password)
	if err != nil {
		return Issued{}, err
	}

	p := identity.Principal{
		Username:     in.Username,
		Contact:      contact,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC().Truncate(time.Second),
	}
	id, err := a.store.Create(ctx, p)
	if err != nil {
		if !fault.Expected(err) {
			a.log.Error("auth.register.store.fail", "err", err)
			return Issued{}, fault.Internal(op, err)
		}
		return Issued{}, err
	}
	p.ID = id
	p = p.WithoutSecret()

	raw, claims, err := a.sessions.IssueDefault(string(id), nil)
	if err != nil {
		a.log.Error("auth.register.issue.fail", "err", err, "principal_id", id)
		return Issued{}, fault.Internal(op, err)
	}
	a.log.Info("auth.register.success", "principal_id", id, "jti", claims.ID)
	return Issued{Token: raw, Claims: claims, Principal: p}, nil
}

// Authenticate resolves identifier, checks password and issues a token.
//
// An unknown identifier returns a NotFound error and a wrong password an Unauthorized
// one. A dummy verification runs on a miss so both paths cost about the same.
// Throttled attempts fail Unauthorized before any hashing.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (out Issued, err error) {
	const op = "authn.Authenticate"

	result := ""
	defer func() {
		if result == "" {
			result = fault.KindName(err)
		}
		a.obs.ObserveAuth(OpLogin, result)
	}()

	key, ok := identity.ParseLookupKey(identifier)
	if !ok || password == "" {
		return Issued{}, fault.Invalid(op, "identifier and password are required")
	}
	who := a.fp.Short(key.String())

	if !a.throttle.Allow(key.String()) {
		result = ResultThrottled
		a.log.Warn("auth.login.failed", "reason", ResultThrottled, "identifier_fp", who)
		return Issued{}, fault.Unauthorized(op, ResultThrottled)
	}

	p, err := a.store.Lookup(ctx, identifier)
	if err != nil {
		if fault.IsNotFound(err) {
			a.creds.VerifyDummy(password)
			a.log.Info("auth.login.failed", "reason", "not_found", "identifier_fp", who)
			return Issued{}, err
		}
		a.log.Error("auth.login.lookup.fail", "err", err, "identifier_fp", who)
		if fault.Expected(err) {
			return Issued{}, err
		}
		return Issued{}, fault.Internal(op, err)
	}

	if err := a.creds.Verify(password, p.PasswordHash); err != nil {
		if fault.IsUnauthorized(err) {
			a.log.Info("auth.login.failed", "reason", "bad_password", "principal_id", p.ID)
		} else {
			a.log.Error("auth.login.verify.fail", "err", err, "principal_id", p.ID)
		}
		return Issued{}, err
	}
	a.throttle.Reset(key.String())
	a.maybeRehash(ctx, p, password)

	raw, claims, err := a.sessions.IssueDefault(string(p.ID), nil)
	if err != nil {
		a.log.Error("auth.login.issue.fail", "err", err, "principal_id", p.ID)
		return Issued{}, fault.Internal(op, err)
	}
	a.log.Info("auth.login.success", "principal_id", p.ID, "jti", claims.ID)
	return Issued{Token: raw, Claims: claims, Principal: p.WithoutSecret()}, nil
}

func (a *Authenticator) maybeRehash(ctx context.Context, p identity.Principal, password string) {
	rh, ok := a.store.(PasswordRehasher)
	if !ok || !a.creds.NeedsRehash(p.PasswordHash) {
		return
	}
	hash, err := a.creds.Hash(password)
	if err != nil {
		a.log.Warn("auth.login.rehash.skip", "err", err, "principal_id", p.ID)
		return
	}
	if err := rh.SetPasswordHash(ctx, p.ID, hash); err != nil {
		a.log.Warn("auth.login.rehash.fail", "err", err, "principal_id", p.ID)
		return
	}
	a.log.Info("auth.login.rehash", "principal_id", p.ID, "hasher", a.creds.Hasher().Name())
}

// Authorize verifies a bearer token and returns the principal it was issued to.
func (a *Authenticator) Authorize(ctx context.Context, raw string) (id identity.ID, err error) {
	defer func() { a.obs.ObserveAuth(OpAuthorize, fault.KindName(err)) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	sub, err := a.sessions.Authorize(raw)
	if err != nil {
		a.log.Debug("auth.authorize.failed", "reason", fault.KindName(err), "token_fp", a.fp.Short(raw))
		return "", err
	}
	return identity.ID(sub), nil
}

// Sessions exposes the token service (CLI and tests).
func (a *Authenticator) Sessions() *session.Service { return a.sessions }
