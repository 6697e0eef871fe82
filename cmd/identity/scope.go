package identity

import (
	"encoding/json"
	"strings"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// Permission is the capability a scope grants on a resource.
type Permission string

const (
	PermissionRead   Permission = "read"
	PermissionWrite  Permission = "write"
	PermissionDelete Permission = "delete"
	PermissionAdmin  Permission = "admin"
)

// ParsePermission strictly parses s (case-insensitive).
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionRead, PermissionWrite, PermissionDelete, PermissionAdmin:
		return p, nil
	default:
		return "", fault.ConversionError{
			Op:       "identity.ParsePermission",
			Field:    "permission",
			Expected: "permission",
			Found:    "string",
			Msg:      "unknown permission",
		}
	}
}

// Scope is an authorizable capability: a permission on a named resource of an owner
// (the service the resource belongs to).
type Scope struct {
	OwnerID    ID
	Name       string
	Permission Permission
}

// ScopeKey is the primary key of a scope: one permission per (owner, resource).
type ScopeKey struct {
	OwnerID ID
	Name    string
}

// Key returns the primary key of s.
func (s Scope) Key() ScopeKey { return ScopeKey{OwnerID: s.OwnerID, Name: s.Name} }

// String returns the canonical encoding "<owner-id>:<resource-name>:<permission>".
func (s Scope) String() string {
	return string(s.OwnerID) + ":" + s.Name + ":" + string(s.Permission)
}

// ParseScope parses the canonical encoding. It requires exactly three colon-separated
// fields, a valid owner id, a non-empty name and a known permission.
func ParseScope(s string) (Scope, error) {
	const op = "identity.ParseScope"

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Scope{}, fault.ConversionError{Op: op, Field: "scope", Msg: "invalid scope"}
	}
	owner, err := ParseID(parts[0])
	if err != nil {
		return Scope{}, fault.ConversionError{Op: op, Field: "scope", Msg: "invalid scope owner id"}
	}
	name := strings.TrimSpace(parts[1])
	if name == "" {
		return Scope{}, fault.ConversionError{Op: op, Field: "scope", Msg: "empty scope name"}
	}
	perm, err := ParsePermission(parts[2])
	if err != nil {
		return Scope{}, fault.ConversionError{Op: op, Field: "scope", Msg: "invalid scope permission"}
	}
	return Scope{OwnerID: owner, Name: name, Permission: perm}, nil
}

// MarshalJSON encodes s as its canonical string.
func (s Scope) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// UnmarshalJSON decodes the canonical string.
func (s *Scope) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fault.ConversionError{Op: "identity.Scope.UnmarshalJSON", Field: "scope", Expected: "string"}
	}
	parsed, err := ParseScope(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
