package storage

import (
	"sync/atomic"
	"time"
)

// DB is the process-scoped in-memory store. Construct it once at startup with Open,
// pass it to the components that need it and Close it on shutdown.
type DB struct {
	Principals *Principals
	Members    *Members
	Scopes     *Scopes

	closed atomic.Bool
}

type options struct {
	observer Observer
	now      func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithObserver reports every table operation to o.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithClock overrides the clock used for generated IDs and creation times.
func WithClock(now func() time.Time) Option {
	return func(opts *options) { opts.now = now }
}

// Open constructs the tables.
func Open(opts ...Option) *DB {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &DB{
		Principals: NewPrincipals(o.observer, o.now),
		Members:    NewMembers(o.observer),
		Scopes:     NewScopes(o.observer),
	}
}

// Close releases every table. Operations on a closed table fail with an Internal error
// wrapping ErrClosed. Close is idempotent.
func (db *DB) Close() error {
	if db == nil || db.closed.Swap(true) {
		return nil
	}
	db.Principals.close()
	db.Members.close()
	db.Scopes.close()
	return nil
}
