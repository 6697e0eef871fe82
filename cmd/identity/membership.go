package identity

import (
	"slices"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// MemberKey is the composite primary key of a membership.
type MemberKey struct {
	TenantID    ID
	PrincipalID ID
}

// Membership associates a principal with a tenant.
// Tenant and principal are back-references; a membership owns neither.
type Membership struct {
	TenantID    ID     `json:"tenant_id"`
	PrincipalID ID     `json:"principal_id"`
	Title       string `json:"title"`
	Owner       bool   `json:"owner"`
	Roles       []ID   `json:"roles"`
}

// Key returns the composite key of m.
func (m Membership) Key() MemberKey {
	return MemberKey{TenantID: m.TenantID, PrincipalID: m.PrincipalID}
}

// Clone returns a deep copy (Roles is never shared).
func (m Membership) Clone() Membership {
	if m.Roles != nil {
		m.Roles = slices.Clone(m.Roles)
	}
	return m
}

// MembershipPatch is the typed partial update for a membership.
// Nil fields are left untouched.
type MembershipPatch struct {
	Title *string
	Owner *bool
	Roles *[]ID
}

// IsEmpty reports whether the patch changes nothing.
func (p MembershipPatch) IsEmpty() bool {
	return p.Title == nil && p.Owner == nil && p.Roles == nil
}

// Apply returns m with the patch fields applied.
func (p MembershipPatch) Apply(m Membership) Membership {
	m = m.Clone()
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Owner != nil {
		m.Owner = *p.Owner
	}
	if p.Roles != nil {
		m.Roles = slices.Clone(*p.Roles)
	}
	return m
}

// DecodeMembershipPatch converts an untyped field map (e.g. a decoded JSON body) into a
// MembershipPatch. Supported keys: title, owner, roles. Other keys are ignored.
// A value of the wrong type is a ConversionError naming the field.
func DecodeMembershipPatch(fields map[string]any) (MembershipPatch, error) {
	const op = "identity.DecodeMembershipPatch"

	var p MembershipPatch
	if v, ok := fields["title"]; ok {
		s, ok := v.(string)
		if !ok {
			return MembershipPatch{}, fault.Conversion(op, "title", "string", v)
		}
		p.Title = &s
	}
	if v, ok := fields["owner"]; ok {
		b, ok := v.(bool)
		if !ok {
			return MembershipPatch{}, fault.Conversion(op, "owner", "bool", v)
		}
		p.Owner = &b
	}
	if v, ok := fields["roles"]; ok {
		roles, err := decodeRoles(v)
		if err != nil {
			return MembershipPatch{}, err
		}
		p.Roles = &roles
	}
	return p, nil
}

func decodeRoles(v any) ([]ID, error) {
	const op = "identity.DecodeMembershipPatch"

	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []ID:
		raw = make([]string, len(t))
		for i, id := range t {
			raw[i] = string(id)
		}
	case []any:
		raw = make([]string, len(t))
		for i, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, fault.Conversion(op, "roles", "[]string", v)
			}
			raw[i] = s
		}
	default:
		return nil, fault.Conversion(op, "roles", "[]string", v)
	}

	out := make([]ID, 0, len(raw))
	for _, s := range raw {
		id, err := ParseID(s)
		if err != nil {
			return nil, fault.ConversionError{Op: op, Field: "roles", Expected: "ulid", Found: "string", Msg: "invalid role id"}
		}
		out = append(out, id)
	}
	return out, nil
}
