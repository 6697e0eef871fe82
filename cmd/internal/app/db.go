package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdihakim148/beekeeper/cmd/storage"
)

// NewDBPool builds a pgxpool from cfg and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

// openPostgresPrincipals connects, then creates the principals table when missing.
// The caller owns the returned pool.
func openPostgresPrincipals(ctx context.Context, cfg Config, obs storage.Observer) (*pgxpool.Pool, *storage.PostgresPrincipals, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := storage.NewPostgresPrincipals(pool,
		storage.WithSchema(cfg.DBSchema),
		storage.WithPostgresObserver(obs),
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, st, nil
}
