package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// Members is the indexed membership store.
//
// Rows are keyed by (tenant, principal). Two secondary indexes are derived from them:
// tenant -> principals and principal -> tenants. Rows and both indexes sit behind one
// lock and every mutation rewrites all three inside the same critical section, so the
// indexes are consistent with the rows whenever the lock is free.
type Members struct {
	obs Observer

	g           guard
	rows        map[identity.MemberKey]identity.Membership
	byTenant    map[identity.ID][]identity.ID
	byPrincipal map[identity.ID][]identity.ID

	// onMutate runs inside every mutation after validation. Tests use it to inject faults.
	onMutate func(op string)
}

var _ Table[identity.MemberKey, identity.Membership, identity.MembershipPatch] = (*Members)(nil)

// NewMembers returns an empty membership store.
func NewMembers(obs Observer) *Members {
	return &Members{
		obs:         observerOrNop(obs),
		rows:        make(map[identity.MemberKey]identity.Membership),
		byTenant:    make(map[identity.ID][]identity.ID),
		byPrincipal: make(map[identity.ID][]identity.ID),
	}
}

func (s *Members) Name() string { return TableMembers }

func (s *Members) notFound(op string) error {
	return fault.NotFoundError{Op: op, Resource: ItemMember}
}

func (s *Members) mutating(op string) {
	if s.onMutate != nil {
		s.onMutate(op)
	}
}

func validateMemberKey(op string, k identity.MemberKey) error {
	if k.TenantID.IsZero() {
		return fault.ConversionError{Op: op, Field: "tenant_id", Msg: "missing tenant id"}
	}
	if k.PrincipalID.IsZero() {
		return fault.ConversionError{Op: op, Field: "principal_id", Msg: "missing principal id"}
	}
	if !canonicalID(k.TenantID) {
		return fault.ConversionError{Op: op, Field: "tenant_id", Expected: "ulid", Found: "string", Msg: "invalid tenant id"}
	}
	if !canonicalID(k.PrincipalID) {
		return fault.ConversionError{Op: op, Field: "principal_id", Expected: "ulid", Found: "string", Msg: "invalid principal id"}
	}
	return nil
}

// validateMembership checks the key and every role id of m.
func validateMembership(op string, m identity.Membership) error {
	if err := validateMemberKey(op, m.Key()); err != nil {
		return err
	}
	for _, r := range m.Roles {
		if !canonicalID(r) {
			return fault.ConversionError{Op: op, Field: "roles", Expected: "ulid", Found: "string", Msg: "invalid role id"}
		}
	}
	return nil
}

func canonicalID(id identity.ID) bool {
	parsed, err := identity.ParseID(string(id))
	return err == nil && parsed == id
}

// Create inserts m. It fails with a ConflictError when (tenant, principal) is taken and
// leaves the existing record untouched.
func (s *Members) Create(ctx context.Context, m identity.Membership) (identity.MemberKey, error) {
	const op = "members.create"
	key := m.Key()

	err := validateMembership(op, m)
	if err == nil {
		err = s.g.write(ctx, op, func() error {
			if _, exists := s.rows[key]; exists {
				return fault.ConflictError{Op: op, Resource: ItemMember, Field: "key"}
			}
			s.mutating(op)
			s.insert(m.Clone())
			return nil
		})
	}
	s.obs.ObserveOp(TableMembers, OpCreate, err)
	if err != nil {
		return identity.MemberKey{}, err
	}
	return key, nil
}

// Read returns the membership at key.
func (s *Members) Read(ctx context.Context, key identity.MemberKey) (identity.Membership, error) {
	const op = "members.read"

	var out identity.Membership
	err := s.g.read(ctx, op, func() error {
		m, ok := s.rows[key]
		if !ok {
			return s.notFound(op)
		}
		out = m.Clone()
		return nil
	})
	s.obs.ObserveOp(TableMembers, OpRead, err)
	return out, err
}

// Patch applies the supplied fields to the membership at key. Index entries are
// removed and re-inserted even though the key cannot change.
func (s *Members) Patch(ctx context.Context, key identity.MemberKey, patch identity.MembershipPatch) (identity.Membership, error) {
	const op = "members.patch"

	var out identity.Membership
	err := s.g.write(ctx, op, func() error {
		old, ok := s.rows[key]
		if !ok {
			return s.notFound(op)
		}
		next := patch.Apply(old)
		s.mutating(op)
		s.remove(old.Key())
		s.insert(next)
		out = next.Clone()
		return nil
	})
	s.obs.ObserveOp(TableMembers, OpPatch, err)
	return out, err
}

// Update replaces the full record at m.Key().
func (s *Members) Update(ctx context.Context, m identity.Membership) (identity.MemberKey, error) {
	const op = "members.update"
	key := m.Key()

	err := validateMembership(op, m)
	if err == nil {
		err = s.g.write(ctx, op, func() error {
			if _, ok := s.rows[key]; !ok {
				return s.notFound(op)
			}
			s.mutating(op)
			s.remove(key)
			s.insert(m.Clone())
			return nil
		})
	}
	s.obs.ObserveOp(TableMembers, OpUpdate, err)
	if err != nil {
		return identity.MemberKey{}, err
	}
	return key, nil
}

// Replace swaps the record at key for m, which may carry a different (tenant, principal).
// key must exist; m.Key() must be free unless it equals key.
func (s *Members) Replace(ctx context.Context, key identity.MemberKey, m identity.Membership) (identity.Membership, error) {
	const op = "members.replace"
	next := m.Key()

	err := validateMembership(op, m)
	if err == nil {
		err = s.g.write(ctx, op, func() error {
			if _, ok := s.rows[key]; !ok {
				return s.notFound(op)
			}
			if next != key {
				if _, taken := s.rows[next]; taken {
					return fault.ConflictError{Op: op, Resource: ItemMember, Field: "key"}
				}
			}
			s.mutating(op)
			s.remove(key)
			s.insert(m.Clone())
			return nil
		})
	}
	s.obs.ObserveOp(TableMembers, OpReplace, err)
	if err != nil {
		return identity.Membership{}, err
	}
	return m.Clone(), nil
}

// Delete removes the membership at key and strips it from both indexes.
func (s *Members) Delete(ctx context.Context, key identity.MemberKey) error {
	const op = "members.delete"

	err := s.g.write(ctx, op, func() error {
		if _, ok := s.rows[key]; !ok {
			return s.notFound(op)
		}
		s.mutating(op)
		s.remove(key)
		return nil
	})
	s.obs.ObserveOp(TableMembers, OpDelete, err)
	return err
}

// DeleteFields is not defined for memberships; it always fails with ErrUnsupported.
func (s *Members) DeleteFields(ctx context.Context, key identity.MemberKey, fields ...string) error {
	err := fault.Unsupported("members.delete_fields", fmt.Sprintf("cannot delete fields %v of a membership", fields))
	s.obs.ObserveOp(TableMembers, "delete_fields", err)
	return err
}

// ListByTenant returns the memberships of tenant in index order.
func (s *Members) ListByTenant(ctx context.Context, tenant identity.ID) ([]identity.Membership, error) {
	return s.list(ctx, "members.list_by_tenant", func() []identity.MemberKey {
		principals := s.byTenant[tenant]
		keys := make([]identity.MemberKey, len(principals))
		for i, p := range principals {
			keys[i] = identity.MemberKey{TenantID: tenant, PrincipalID: p}
		}
		return keys
	})
}

// ListByPrincipal returns the memberships of principal in index order.
func (s *Members) ListByPrincipal(ctx context.Context, principal identity.ID) ([]identity.Membership, error) {
	return s.list(ctx, "members.list_by_principal", func() []identity.MemberKey {
		tenants := s.byPrincipal[principal]
		keys := make([]identity.MemberKey, len(tenants))
		for i, t := range tenants {
			keys[i] = identity.MemberKey{TenantID: t, PrincipalID: principal}
		}
		return keys
	})
}

func (s *Members) list(ctx context.Context, op string, keys func() []identity.MemberKey) ([]identity.Membership, error) {
	out := []identity.Membership{}
	err := s.g.read(ctx, op, func() error {
		for _, k := range keys() {
			m, ok := s.rows[k]
			if !ok {
				return fault.OpError{Op: op, Kind: fault.ErrInconsistentData, Msg: "index references a missing membership"}
			}
			out = append(out, m.Clone())
		}
		return nil
	})
	s.obs.ObserveOp(TableMembers, OpList, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the number of memberships.
func (s *Members) Len() int {
	n := 0
	_ = s.g.read(context.Background(), "members.len", func() error {
		n = len(s.rows)
		return nil
	})
	return n
}

// CheckIndexes verifies that both indexes are exactly the projection of the rows.
// It returns a fault.ErrInconsistentData error describing the first violation found.
func (s *Members) CheckIndexes(ctx context.Context) error {
	const op = "members.check_indexes"

	return s.g.read(ctx, op, func() error {
		inconsistent := func(format string, args ...any) error {
			return fault.OpError{Op: op, Kind: fault.ErrInconsistentData, Msg: fmt.Sprintf(format, args...)}
		}

		for k := range s.rows {
			if !slices.Contains(s.byTenant[k.TenantID], k.PrincipalID) {
				return inconsistent("tenant %s is missing principal %s", k.TenantID, k.PrincipalID)
			}
			if !slices.Contains(s.byPrincipal[k.PrincipalID], k.TenantID) {
				return inconsistent("principal %s is missing tenant %s", k.PrincipalID, k.TenantID)
			}
		}

		entries := 0
		for t, principals := range s.byTenant {
			if len(principals) == 0 {
				return inconsistent("tenant %s has an empty index entry", t)
			}
			for i, p := range principals {
				if _, ok := s.rows[identity.MemberKey{TenantID: t, PrincipalID: p}]; !ok {
					return inconsistent("tenant %s references absent principal %s", t, p)
				}
				if slices.Index(principals, p) != i {
					return inconsistent("tenant %s lists principal %s twice", t, p)
				}
			}
			entries += len(principals)
		}
		for p, tenants := range s.byPrincipal {
			if len(tenants) == 0 {
				return inconsistent("principal %s has an empty index entry", p)
			}
			for i, t := range tenants {
				if _, ok := s.rows[identity.MemberKey{TenantID: t, PrincipalID: p}]; !ok {
					return inconsistent("principal %s references absent tenant %s", p, t)
				}
				if slices.Index(tenants, t) != i {
					return inconsistent("principal %s lists tenant %s twice", p, t)
				}
			}
		}
		if entries != len(s.rows) {
			return inconsistent("tenant index holds %d entries for %d rows", entries, len(s.rows))
		}
		return nil
	})
}

// insert writes m and its index entries. Callers hold the write lock.
func (s *Members) insert(m identity.Membership) {
	k := m.Key()
	s.rows[k] = m
	s.byTenant[k.TenantID] = appendUnique(s.byTenant[k.TenantID], k.PrincipalID)
	s.byPrincipal[k.PrincipalID] = appendUnique(s.byPrincipal[k.PrincipalID], k.TenantID)
}

// remove deletes the row at k and its index entries. Callers hold the write lock.
func (s *Members) remove(k identity.MemberKey) {
	delete(s.rows, k)
	dropFromIndex(s.byTenant, k.TenantID, k.PrincipalID)
	dropFromIndex(s.byPrincipal, k.PrincipalID, k.TenantID)
}

// appendUnique removes a stale occurrence of id before appending it.
func appendUnique(list []identity.ID, id identity.ID) []identity.ID {
	list = slices.DeleteFunc(list, func(e identity.ID) bool { return e == id })
	return append(list, id)
}

func dropFromIndex(idx map[identity.ID][]identity.ID, key, id identity.ID) {
	list := slices.DeleteFunc(idx[key], func(e identity.ID) bool { return e == id })
	if len(list) == 0 {
		delete(idx, key)
		return
	}
	idx[key] = list
}

func (s *Members) close() {
	s.g.close(func() {
		s.rows = nil
		s.byTenant = nil
		s.byPrincipal = nil
	})
}
