package storage

import "context"

// Table is the generic record-store contract.
//
// K is the primary key, T the record and P its typed patch descriptor.
// Create fails with a fault.ConflictError when the key (or any unique secondary key)
// is taken; Read, Patch, Update and Delete fail with a fault.NotFoundError when the key
// is absent.
type Table[K comparable, T any, P any] interface {
	Name() string
	Create(ctx context.Context, item T) (K, error)
	Read(ctx context.Context, key K) (T, error)
	Patch(ctx context.Context, key K, patch P) (T, error)
	Update(ctx context.Context, item T) (K, error)
	Delete(ctx context.Context, key K) error
}

// Table and item names used in errors, logs and metrics.
const (
	TablePrincipals = "principals"
	TableMembers    = "members"
	TableScopes     = "scopes"

	ItemPrincipal = "principal"
	ItemMember    = "member"
	ItemScope     = "scope"
)

// Operation names reported to observers.
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpPatch   = "patch"
	OpUpdate  = "update"
	OpReplace = "replace"
	OpDelete  = "delete"
	OpLookup  = "lookup"
	OpList    = "list"
)
