package storage

import (
	"context"
	"strings"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// MemTableConfig describes how a MemTable derives keys from and patches its records.
type MemTableConfig[K comparable, T any, P any] struct {
	// Name is the table name reported to observers.
	Name string
	// Item is the record name used in NotFound / Conflict errors.
	Item string

	Key func(T) K
	// Unique returns the unique secondary keys of a record as "<field>:<value>".
	// Optional.
	Unique func(T) []string
	// Apply returns the record with patch applied. It must not change the primary key.
	Apply func(T, P) (T, error)
	// Clone returns a deep copy. Optional for records without reference fields.
	Clone func(T) T
	// Validate rejects records that must never be stored. It runs on Create and Update
	// and on the result of every Patch. Optional.
	Validate func(T) error

	Observer Observer
}

// MemTable is a generic in-memory Table. Rows and unique keys share one lock.
type MemTable[K comparable, T any, P any] struct {
	cfg MemTableConfig[K, T, P]
	obs Observer

	g      guard
	rows   map[K]T
	unique map[string]K
}

var _ Table[string, struct{}, struct{}] = (*MemTable[string, struct{}, struct{}])(nil)

// NewMemTable returns an empty table.
func NewMemTable[K comparable, T any, P any](cfg MemTableConfig[K, T, P]) *MemTable[K, T, P] {
	if cfg.Key == nil {
		panic("storage: MemTableConfig.Key is required")
	}
	if cfg.Item == "" {
		cfg.Item = cfg.Name
	}
	return &MemTable[K, T, P]{
		cfg:    cfg,
		obs:    observerOrNop(cfg.Observer),
		rows:   make(map[K]T),
		unique: make(map[string]K),
	}
}

func (t *MemTable[K, T, P]) Name() string { return t.cfg.Name }

func (t *MemTable[K, T, P]) op(name string) string { return t.cfg.Name + "." + name }

func (t *MemTable[K, T, P]) clone(v T) T {
	if t.cfg.Clone == nil {
		return v
	}
	return t.cfg.Clone(v)
}

func (t *MemTable[K, T, P]) validate(v T) error {
	if t.cfg.Validate == nil {
		return nil
	}
	return t.cfg.Validate(v)
}

func (t *MemTable[K, T, P]) uniqueKeys(v T) []string {
	if t.cfg.Unique == nil {
		return nil
	}
	return t.cfg.Unique(v)
}

// claimable reports the first unique key of v owned by a row other than self.
func (t *MemTable[K, T, P]) claimable(v T, self K, selfExists bool) (string, bool) {
	for _, u := range t.uniqueKeys(v) {
		owner, ok := t.unique[u]
		if !ok {
			continue
		}
		if selfExists && owner == self {
			continue
		}
		return u, false
	}
	return "", true
}

func (t *MemTable[K, T, P]) conflict(op, uniqueKey string) error {
	field := "key"
	if uniqueKey != "" {
		field, _, _ = strings.Cut(uniqueKey, ":")
	}
	return fault.ConflictError{Op: op, Resource: t.cfg.Item, Field: field}
}

func (t *MemTable[K, T, P]) notFound(op string) error {
	return fault.NotFoundError{Op: op, Resource: t.cfg.Item}
}

// swap replaces the unique keys of old with those of next for the row at key.
func (t *MemTable[K, T, P]) swap(key K, old *T, next *T) {
	if old != nil {
		for _, u := range t.uniqueKeys(*old) {
			if t.unique[u] == key {
				delete(t.unique, u)
			}
		}
	}
	if next != nil {
		for _, u := range t.uniqueKeys(*next) {
			t.unique[u] = key
		}
	}
}

// Create inserts item. The primary key and every unique key must be free.
func (t *MemTable[K, T, P]) Create(ctx context.Context, item T) (K, error) {
	op := t.op(OpCreate)
	key := t.cfg.Key(item)

	err := t.validate(item)
	if err == nil {
		err = t.g.write(ctx, op, func() error {
			if _, exists := t.rows[key]; exists {
				return t.conflict(op, "")
			}
			if u, ok := t.claimable(item, key, false); !ok {
				return t.conflict(op, u)
			}
			stored := t.clone(item)
			t.rows[key] = stored
			t.swap(key, nil, &stored)
			return nil
		})
	}
	t.obs.ObserveOp(t.cfg.Name, OpCreate, err)
	if err != nil {
		var zero K
		return zero, err
	}
	return key, nil
}

// Read returns a copy of the row at key.
func (t *MemTable[K, T, P]) Read(ctx context.Context, key K) (T, error) {
	op := t.op(OpRead)

	var out T
	err := t.g.read(ctx, op, func() error {
		v, ok := t.rows[key]
		if !ok {
			return t.notFound(op)
		}
		out = t.clone(v)
		return nil
	})
	t.obs.ObserveOp(t.cfg.Name, OpRead, err)
	return out, err
}

// Patch applies patch to the row at key and returns the result.
func (t *MemTable[K, T, P]) Patch(ctx context.Context, key K, patch P) (T, error) {
	op := t.op(OpPatch)

	var out T
	err := t.g.write(ctx, op, func() error {
		old, ok := t.rows[key]
		if !ok {
			return t.notFound(op)
		}
		if t.cfg.Apply == nil {
			return fault.Unsupported(op, "table has no patch function")
		}
		next, err := t.cfg.Apply(t.clone(old), patch)
		if err != nil {
			return err
		}
		if err := t.validate(next); err != nil {
			return err
		}
		if t.cfg.Key(next) != key {
			return fault.ConversionError{Op: op, Field: "key", Msg: "patch must not change the primary key"}
		}
		if u, ok := t.claimable(next, key, true); !ok {
			return t.conflict(op, u)
		}
		t.swap(key, &old, &next)
		t.rows[key] = next
		out = t.clone(next)
		return nil
	})
	t.obs.ObserveOp(t.cfg.Name, OpPatch, err)
	return out, err
}

// Update replaces the row keyed by item.
func (t *MemTable[K, T, P]) Update(ctx context.Context, item T) (K, error) {
	op := t.op(OpUpdate)
	key := t.cfg.Key(item)

	err := t.validate(item)
	if err == nil {
		err = t.g.write(ctx, op, func() error {
			old, ok := t.rows[key]
			if !ok {
				return t.notFound(op)
			}
			if u, ok := t.claimable(item, key, true); !ok {
				return t.conflict(op, u)
			}
			next := t.clone(item)
			t.swap(key, &old, &next)
			t.rows[key] = next
			return nil
		})
	}
	t.obs.ObserveOp(t.cfg.Name, OpUpdate, err)
	if err != nil {
		var zero K
		return zero, err
	}
	return key, nil
}

// Delete removes the row at key.
func (t *MemTable[K, T, P]) Delete(ctx context.Context, key K) error {
	op := t.op(OpDelete)

	err := t.g.write(ctx, op, func() error {
		old, ok := t.rows[key]
		if !ok {
			return t.notFound(op)
		}
		t.swap(key, &old, nil)
		delete(t.rows, key)
		return nil
	})
	t.obs.ObserveOp(t.cfg.Name, OpDelete, err)
	return err
}

// ReadUnique returns the row owning a unique secondary key ("<field>:<value>").
func (t *MemTable[K, T, P]) ReadUnique(ctx context.Context, uniqueKey string) (T, error) {
	op := t.op(OpLookup)

	var out T
	err := t.g.read(ctx, op, func() error {
		key, ok := t.unique[uniqueKey]
		if !ok {
			return t.notFound(op)
		}
		v, ok := t.rows[key]
		if !ok {
			return fault.OpError{Op: op, Kind: fault.ErrInconsistentData, Msg: "unique key points at a missing row"}
		}
		out = t.clone(v)
		return nil
	})
	t.obs.ObserveOp(t.cfg.Name, OpLookup, err)
	return out, err
}

// Filter returns copies of every row for which keep returns true, in no particular order.
func (t *MemTable[K, T, P]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	op := t.op(OpList)

	var out []T
	err := t.g.read(ctx, op, func() error {
		for _, v := range t.rows {
			if keep == nil || keep(v) {
				out = append(out, t.clone(v))
			}
		}
		return nil
	})
	t.obs.ObserveOp(t.cfg.Name, OpList, err)
	return out, err
}

// Len returns the number of rows. A closed or poisoned table reports 0.
func (t *MemTable[K, T, P]) Len() int {
	n := 0
	_ = t.g.read(context.Background(), t.op("len"), func() error {
		n = len(t.rows)
		return nil
	})
	return n
}

func (t *MemTable[K, T, P]) close() {
	t.g.close(func() {
		t.rows = nil
		t.unique = nil
	})
}
