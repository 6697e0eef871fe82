package identity

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

func mustID(t *testing.T) ID {
	t.Helper()
	id, err := NewID(time.Now().UTC())
	if err != nil {
		t.Fatalf("NewID: %v", err)
	}
	return id
}

func TestParseID(t *testing.T) {
	t.Parallel()

	id := mustID(t)
	got, err := ParseID(string(id))
	if err != nil || got != id {
		t.Fatalf("ParseID(%q)=%q,%v", id, got, err)
	}

	_, err = ParseID("not-a-ulid")
	var ce fault.ConversionError
	if !errors.As(err, &ce) || ce.Field != "id" {
		t.Fatalf("expected conversion error on id, got %v", err)
	}
}

func TestID_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	id := mustID(t)
	var m Membership
	in := `{"tenant_id":"` + strings.ToLower(string(id)) + `","principal_id":"","roles":["` + string(id) + `"]}`
	if err := json.Unmarshal([]byte(in), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m.TenantID != id || !m.PrincipalID.IsZero() || len(m.Roles) != 1 || m.Roles[0] != id {
		t.Fatalf("decoded %+v", m)
	}

	for _, in := range []string{
		`{"tenant_id":"not-a-ulid"}`,
		`{"tenant_id":7}`,
		`{"roles":["junk"]}`,
	} {
		if err := json.Unmarshal([]byte(in), &m); !fault.IsConversion(err) {
			t.Fatalf("Unmarshal(%s) err=%v", in, err)
		}
	}
}

func TestParseLookupKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want LookupKey
	}{
		{in: "  Alice@Example.COM ", want: LookupKey{Kind: LookupEmail, Value: "alice@example.com"}},
		{in: "+1 650-253-0000", want: LookupKey{Kind: LookupPhone, Value: "+16502530000"}},
		{in: "BeeKeeper", want: LookupKey{Kind: LookupUsername, Value: "beekeeper"}},
		{in: "42abc", want: LookupKey{Kind: LookupUsername, Value: "42abc"}},
	}
	for _, tc := range cases {
		got, ok := ParseLookupKey(tc.in)
		if !ok || got != tc.want {
			t.Fatalf("ParseLookupKey(%q)=%+v,%v want %+v", tc.in, got, ok, tc.want)
		}
	}

	if _, ok := ParseLookupKey("   "); ok {
		t.Fatalf("expected blank identifier to be rejected")
	}
}

func TestPrincipal_LookupKeysAndJSON(t *testing.T) {
	t.Parallel()

	p := Principal{
		ID:           mustID(t),
		Username:     "Alice",
		Contact:      Contact{Email: &Email{Address: "Alice@example.com"}, Phone: &Phone{Number: "+16502530000"}},
		PasswordHash: "$argon2id$secret",
	}

	keys := p.LookupKeys()
	if len(keys) != 3 {
		t.Fatalf("keys=%v", keys)
	}
	if keys[0].String() != "username:alice" || keys[1].String() != "email:alice@example.com" || keys[2].String() != "phone:+16502530000" {
		t.Fatalf("unexpected keys %v", keys)
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for k := range raw {
		if k != "id" && k != "username" && k != "contact" && k != "created_at" {
			t.Fatalf("unexpected field %q in %s", k, b)
		}
	}

	clean := p.WithoutSecret()
	if clean.PasswordHash != "" || p.PasswordHash == "" {
		t.Fatalf("WithoutSecret must clear only the copy")
	}
	clean.Contact.Email.Address = "changed@example.com"
	if p.Contact.Email.Address != "Alice@example.com" {
		t.Fatalf("clone aliases contact")
	}
}

func TestContact_JSON(t *testing.T) {
	t.Parallel()

	var c Contact
	if err := json.Unmarshal([]byte(`{"email":"bob@example.com","email_verified":true}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Email == nil || !c.Email.Verified || c.Phone != nil {
		t.Fatalf("unexpected contact %+v", c)
	}

	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"email":"bob@example.com","email_verified":true}` {
		t.Fatalf("marshal=%s", b)
	}

	bad := []string{
		`{}`,
		`{"phone":null,"email":null}`,
		`{"email":"not-an-email"}`,
		`{"phone":"12"}`,
	}
	for _, in := range bad {
		var c Contact
		if err := json.Unmarshal([]byte(in), &c); !fault.IsConversion(err) {
			t.Fatalf("Unmarshal(%s) expected conversion error, got %v", in, err)
		}
	}
}

func TestDecodeMembershipPatch(t *testing.T) {
	t.Parallel()

	role := mustID(t)

	p, err := DecodeMembershipPatch(map[string]any{
		"title":   "Lead",
		"roles":   []any{string(role)},
		"ignored": 12,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Title == nil || *p.Title != "Lead" || p.Owner != nil || p.Roles == nil || len(*p.Roles) != 1 {
		t.Fatalf("unexpected patch %+v", p)
	}

	cases := []struct {
		name  string
		in    map[string]any
		field string
	}{
		{name: "title", in: map[string]any{"title": 5.0}, field: "title"},
		{name: "owner", in: map[string]any{"owner": "yes"}, field: "owner"},
		{name: "roles type", in: map[string]any{"roles": "r1"}, field: "roles"},
		{name: "roles elem", in: map[string]any{"roles": []any{1.0}}, field: "roles"},
		{name: "roles id", in: map[string]any{"roles": []string{"nope"}}, field: "roles"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeMembershipPatch(tc.in)
			var ce fault.ConversionError
			if !errors.As(err, &ce) || ce.Field != tc.field {
				t.Fatalf("expected conversion error on %q, got %v", tc.field, err)
			}
		})
	}
}

func TestMembershipPatch_ApplyIsolation(t *testing.T) {
	t.Parallel()

	r1 := mustID(t)
	m := Membership{TenantID: mustID(t), PrincipalID: mustID(t), Title: "Owner", Owner: true, Roles: []ID{r1}}

	title := "Lead"
	got := MembershipPatch{Title: &title}.Apply(m)
	if got.Title != "Lead" || !got.Owner || len(got.Roles) != 1 || got.Roles[0] != r1 {
		t.Fatalf("title patch leaked: %+v", got)
	}

	owner := false
	got = MembershipPatch{Owner: &owner}.Apply(m)
	if got.Title != "Owner" || got.Owner || len(got.Roles) != 1 {
		t.Fatalf("owner patch leaked: %+v", got)
	}

	got.Roles[0] = "mutated"
	if m.Roles[0] != r1 {
		t.Fatalf("Apply aliases roles")
	}
	if !(MembershipPatch{}).IsEmpty() {
		t.Fatalf("zero patch should be empty")
	}
}

func TestScope_ParseAndString(t *testing.T) {
	t.Parallel()

	owner := mustID(t)
	raw := string(owner) + ":invoices:write"

	s, err := ParseScope(raw)
	if err != nil {
		t.Fatalf("ParseScope: %v", err)
	}
	if s.OwnerID != owner || s.Name != "invoices" || s.Permission != PermissionWrite {
		t.Fatalf("unexpected scope %+v", s)
	}
	if s.String() != raw {
		t.Fatalf("String()=%q want %q", s.String(), raw)
	}

	b, _ := json.Marshal(s)
	var back Scope
	if err := json.Unmarshal(b, &back); err != nil || back != s {
		t.Fatalf("json round trip: %v %+v", err, back)
	}

	bad := []string{
		"",
		string(owner) + ":invoices",
		string(owner) + ":invoices:write:extra",
		"nope:invoices:write",
		string(owner) + "::write",
		string(owner) + ":invoices:fly",
	}
	for _, in := range bad {
		if _, err := ParseScope(in); !fault.IsConversion(err) {
			t.Fatalf("ParseScope(%q) expected conversion error, got %v", in, err)
		}
	}
}
