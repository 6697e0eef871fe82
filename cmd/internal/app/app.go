// Package app wires the beekeeper server runtime: config, logging, storage, the
// authenticator and the HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/abdihakim148/beekeeper/cmd/credential"
	authapi "github.com/abdihakim148/beekeeper/cmd/internal/auth/api"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/authn"
	"github.com/abdihakim148/beekeeper/cmd/internal/auth/session"
	"github.com/abdihakim148/beekeeper/cmd/internal/telemetry"
	"github.com/abdihakim148/beekeeper/cmd/security/password"
	"github.com/abdihakim148/beekeeper/cmd/storage"
)

// principalStore is what both the authenticator and the /me endpoint need.
type principalStore interface {
	authn.PrincipalStore
	authapi.PrincipalReader
}

// App owns the process-scoped resources.
type App struct {
	cfg Config
	log Logger

	db   *storage.DB
	pool *pgxpool.Pool

	auth    *authn.Authenticator
	handler http.Handler
}

// New constructs a fully wired App. Without DatabaseURL every table lives in memory.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	fp, err := SecurityFingerprinter(cfg)
	if err != nil {
		return nil, err
	}

	reg := telemetry.NewRegistry()
	metrics, err := telemetry.New(reg)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, db: storage.Open(storage.WithObserver(metrics))}

	var principals principalStore = a.db.Principals
	if cfg.DatabaseURL != "" {
		pool, pg, err := openPostgresPrincipals(ctx, cfg, metrics)
		if err != nil {
			_ = a.db.Close()
			return nil, err
		}
		a.pool, principals = pool, pg
		log.Info("db.enabled.postgres_principals", "schema", cfg.DBSchema)
	} else {
		log.Info("db.disabled.inmemory_principals")
	}

	fail := func(err error) (*App, error) {
		a.close()
		return nil, err
	}

	pwCfg, err := password.FromEnv()
	if err != nil {
		return fail(err)
	}
	hasher, err := credential.NewHasher(cfg.Hasher, pwCfg)
	if err != nil {
		return fail(err)
	}
	creds, err := credential.NewService(hasher, pwCfg.Policy)
	if err != nil {
		return fail(err)
	}

	sessions, _, err := session.Open(cfg.Session, log.Warn)
	if err != nil {
		return fail(err)
	}

	a.auth, err = authn.New(principals, creds, sessions,
		authn.WithThrottle(authn.NewThrottle(cfg.Throttle, fp)),
		authn.WithObserver(metrics),
		authn.WithLogger(log),
		authn.WithFingerprinter(fp),
	)
	if err != nil {
		return fail(err)
	}

	api, err := authapi.NewHandler(log, cfg.Auth, a.auth, principals, a.db.Members)
	if err != nil {
		return fail(err)
	}

	mux := http.NewServeMux()
	routes{
		log:     log,
		cfg:     cfg,
		pool:    a.pool,
		api:     api,
		metrics: telemetry.Handler(reg),
	}.register(mux)
	a.handler = WithRequestLogging(WithSecurityHeaders(mux), log)

	log.Info("app.ready",
		"hasher", hasher.Name(),
		"session_scheme", sessions.Scheme(),
		"fingerprint_keyed", fp.Keyed(),
	)
	return a, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts down and
// releases the stores.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZero(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZero(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZero(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZero(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZero(a.cfg.MaxHeaderBytes, 1<<20),
	}
	defer a.close()

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pool != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func nonZero[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
