package storage

import (
	"context"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// PrincipalPatch is the typed partial update for a principal. Nil fields are untouched.
type PrincipalPatch struct {
	Username     *string
	Contact      *identity.Contact
	PasswordHash *string
}

func applyPrincipalPatch(p identity.Principal, patch PrincipalPatch) (identity.Principal, error) {
	if patch.Username != nil {
		p.Username = *patch.Username
	}
	if patch.Contact != nil {
		if err := patch.Contact.Validate(); err != nil {
			return identity.Principal{}, err
		}
		p.Contact = patch.Contact.Clone()
	}
	if patch.PasswordHash != nil {
		p.PasswordHash = *patch.PasswordHash
	}
	return p, nil
}

func principalUniqueKeys(p identity.Principal) []string {
	keys := p.LookupKeys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}

// Principals is the in-memory principal table. Username, email and phone are unique
// (after normalization) and double as lookup keys.
type Principals struct {
	*MemTable[identity.ID, identity.Principal, PrincipalPatch]
	now func() time.Time
}

// NewPrincipals returns an empty principal table.
func NewPrincipals(obs Observer, now func() time.Time) *Principals {
	if now == nil {
		now = time.Now
	}
	return &Principals{
		MemTable: NewMemTable(MemTableConfig[identity.ID, identity.Principal, PrincipalPatch]{
			Name:     TablePrincipals,
			Item:     ItemPrincipal,
			Key:      func(p identity.Principal) identity.ID { return p.ID },
			Unique:   principalUniqueKeys,
			Apply:    applyPrincipalPatch,
			Clone:    identity.Principal.Clone,
			Observer: obs,
		}),
		now: now,
	}
}

// Create assigns an ID (when unset) and a creation time, then inserts p.
func (t *Principals) Create(ctx context.Context, p identity.Principal) (identity.ID, error) {
	const op = "principals.create"

	if p.ID.IsZero() {
		id, err := identity.NewID(t.now())
		if err != nil {
			return "", err
		}
		p.ID = id
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC().Truncate(time.Second)
	}
	if len(p.LookupKeys()) == 0 {
		return "", fault.Invalid(op, "username, email or phone is required")
	}
	return t.MemTable.Create(ctx, p)
}

// Lookup resolves a login identifier (username, email or phone) to its principal.
// The returned value carries the stored password hash.
func (t *Principals) Lookup(ctx context.Context, identifier string) (identity.Principal, error) {
	key, ok := identity.ParseLookupKey(identifier)
	if !ok {
		return identity.Principal{}, fault.NotFoundError{Op: "principals.lookup", Resource: ItemPrincipal}
	}
	return t.ReadUnique(ctx, key.String())
}

// SetPasswordHash replaces the stored hash of id.
func (t *Principals) SetPasswordHash(ctx context.Context, id identity.ID, hash string) error {
	_, err := t.Patch(ctx, id, PrincipalPatch{PasswordHash: &hash})
	return err
}
