package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// ErrClosed is the cause attached to operations on a closed table.
var ErrClosed = errors.New("storage: closed")

// guard is the single lock behind an in-memory table.
//
// poisoned is set when a mutation panics while holding the lock; the table state may
// be half-written at that point, so nothing touches it again.
type guard struct {
	mu       sync.RWMutex
	poisoned atomic.Bool
	closed   atomic.Bool
}

func (g *guard) check(op string) error {
	if g.poisoned.Load() {
		return fault.OpError{Op: op, Kind: fault.ErrLockPoisoned, Msg: "table poisoned by an earlier failure"}
	}
	if g.closed.Load() {
		return fault.Internal(op, ErrClosed)
	}
	return nil
}

// write runs fn under the exclusive lock.
func (g *guard) write(ctx context.Context, op string, fn func() error) (err error) {
	if err := ctx.Err(); err != nil {
		return fault.Internal(op, err)
	}
	if err := g.check(op); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// Re-check: the table may have been poisoned or closed while we waited.
	if err := g.check(op); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			g.poisoned.Store(true)
			err = fault.OpError{Op: op, Kind: fault.ErrLockPoisoned, Msg: fmt.Sprint(r)}
		}
	}()
	return fn()
}

// read runs fn under the shared lock. A panicking reader does not poison the table.
func (g *guard) read(ctx context.Context, op string, fn func() error) (err error) {
	if err := ctx.Err(); err != nil {
		return fault.Internal(op, err)
	}
	if err := g.check(op); err != nil {
		return err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := g.check(op); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fault.Internal(op, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

// close marks the table closed and runs reset under the exclusive lock.
func (g *guard) close(reset func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed.Swap(true) {
		return
	}
	reset()
}
