package storage

import (
	"context"
	"sort"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// ScopePatch changes the permission granted by a scope.
type ScopePatch struct {
	Permission *identity.Permission
}

func applyScopePatch(s identity.Scope, p ScopePatch) (identity.Scope, error) {
	if p.Permission != nil {
		perm, err := identity.ParsePermission(string(*p.Permission))
		if err != nil {
			return identity.Scope{}, err
		}
		s.Permission = perm
	}
	return s, nil
}

// validateScope requires s to survive its own canonical encoding.
func validateScope(s identity.Scope) error {
	parsed, err := identity.ParseScope(s.String())
	if err != nil {
		return err
	}
	if parsed != s {
		return fault.ConversionError{Op: "scopes.validate", Field: "scope", Msg: "scope is not canonical"}
	}
	return nil
}

// Scopes is the in-memory scope table keyed by (owner, resource name).
type Scopes struct {
	*MemTable[identity.ScopeKey, identity.Scope, ScopePatch]
}

// NewScopes returns an empty scope table.
func NewScopes(obs Observer) *Scopes {
	return &Scopes{
		MemTable: NewMemTable(MemTableConfig[identity.ScopeKey, identity.Scope, ScopePatch]{
			Name:     TableScopes,
			Item:     ItemScope,
			Key:      identity.Scope.Key,
			Apply:    applyScopePatch,
			Validate: validateScope,
			Observer: obs,
		}),
	}
}

// ListByOwner returns the scopes of owner sorted by resource name.
func (t *Scopes) ListByOwner(ctx context.Context, owner identity.ID) ([]identity.Scope, error) {
	out, err := t.Filter(ctx, func(s identity.Scope) bool { return s.OwnerID == owner })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
