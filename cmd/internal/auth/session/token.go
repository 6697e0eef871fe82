package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// Registered claim names. Custom claims may not use them.
const (
	ClaimID         = "jti"
	ClaimIssuer     = "iss"
	ClaimSubject    = "sub"
	ClaimAudience   = "aud"
	ClaimExpiration = "exp"
	ClaimNotBefore  = "nbf"
	ClaimIssuedAt   = "iat"
)

var registered = []string{ClaimID, ClaimIssuer, ClaimSubject, ClaimAudience, ClaimExpiration, ClaimNotBefore, ClaimIssuedAt}

// IsRegisteredClaim reports whether name is one of the fixed claim names.
func IsRegisteredClaim(name string) bool { return slices.Contains(registered, name) }

// Audience is none, one or many recipients. It encodes as an absent claim, a string
// or an array respectively.
type Audience struct {
	values []string
}

// NewAudience returns an audience holding values (empty strings are dropped).
func NewAudience(values ...string) Audience {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return Audience{values: out}
}

// Values returns a copy of the recipients.
func (a Audience) Values() []string { return slices.Clone(a.values) }

// IsZero reports whether there is no audience.
func (a Audience) IsZero() bool { return len(a.values) == 0 }

// Contains reports whether v is a recipient.
func (a Audience) Contains(v string) bool { return slices.Contains(a.values, v) }

// Equal reports whether a and b list the same recipients in the same order.
func (a Audience) Equal(b Audience) bool { return slices.Equal(a.values, b.values) }

// claim returns the claim value, or nil when there is no audience.
func (a Audience) claim() any {
	switch len(a.values) {
	case 0:
		return nil
	case 1:
		return a.values[0]
	default:
		return a.Values()
	}
}

func (a Audience) MarshalJSON() ([]byte, error) { return json.Marshal(a.claim()) }

func (a *Audience) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	aud, err := audienceFromClaim(raw)
	if err != nil {
		return err
	}
	*a = aud
	return nil
}

func audienceFromClaim(v any) (Audience, error) {
	switch t := v.(type) {
	case nil:
		return Audience{}, nil
	case string:
		return NewAudience(t), nil
	case []string:
		return NewAudience(t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Audience{}, fault.Conversion("session.Audience", ClaimAudience, "string or []string", v)
			}
			out = append(out, s)
		}
		return NewAudience(out...), nil
	default:
		return Audience{}, fault.Conversion("session.Audience", ClaimAudience, "string or []string", v)
	}
}

// Token is the decoded claim set of a signed token.
type Token struct {
	ID         string         `json:"jti"`
	Issuer     string         `json:"iss"`
	Subject    string         `json:"sub"`
	Audience   Audience       `json:"aud"`
	Expiration *time.Time     `json:"exp,omitempty"`
	NotBefore  *time.Time     `json:"nbf,omitempty"`
	IssuedAt   time.Time      `json:"iat"`
	Claims     map[string]any `json:"claims,omitempty"`
}

// ClaimMap flattens t into one claim map: registered claims plus custom claims at the
// top level. Times are left as time.Time for the Signer to encode.
func (t Token) ClaimMap() (map[string]any, error) {
	const op = "session.Token.ClaimMap"

	out := make(map[string]any, len(t.Claims)+len(registered))
	for k, v := range t.Claims {
		if IsRegisteredClaim(k) {
			return nil, fault.ConversionError{Op: op, Field: k, Msg: "custom claim uses a registered name"}
		}
		out[k] = v
	}

	out[ClaimID] = t.ID
	out[ClaimIssuer] = t.Issuer
	out[ClaimSubject] = t.Subject
	out[ClaimIssuedAt] = t.IssuedAt.UTC()
	if aud := t.Audience.claim(); aud != nil {
		out[ClaimAudience] = aud
	}
	if t.Expiration != nil {
		out[ClaimExpiration] = t.Expiration.UTC()
	}
	if t.NotBefore != nil {
		out[ClaimNotBefore] = t.NotBefore.UTC()
	}
	return out, nil
}

// tokenFromClaims rebuilds a Token from a verified claim map. Time claims may be RFC 3339
// strings (PASETO) or numeric dates (JWT).
func tokenFromClaims(m map[string]any) (Token, error) {
	const op = "session.tokenFromClaims"

	var t Token
	var err error

	str := func(name string) (string, error) {
		v, ok := m[name]
		if !ok || v == nil {
			return "", nil
		}
		s, ok := v.(string)
		if !ok {
			return "", fault.Conversion(op, name, "string", v)
		}
		return s, nil
	}

	if t.ID, err = str(ClaimID); err != nil {
		return Token{}, err
	}
	if t.Issuer, err = str(ClaimIssuer); err != nil {
		return Token{}, err
	}
	if t.Subject, err = str(ClaimSubject); err != nil {
		return Token{}, err
	}
	if t.Audience, err = audienceFromClaim(m[ClaimAudience]); err != nil {
		return Token{}, err
	}

	iat, err := timeClaim(m, ClaimIssuedAt)
	if err != nil {
		return Token{}, err
	}
	if iat != nil {
		t.IssuedAt = *iat
	}
	if t.Expiration, err = timeClaim(m, ClaimExpiration); err != nil {
		return Token{}, err
	}
	if t.NotBefore, err = timeClaim(m, ClaimNotBefore); err != nil {
		return Token{}, err
	}

	custom := maps.Clone(m)
	for _, k := range registered {
		delete(custom, k)
	}
	if len(custom) > 0 {
		t.Claims = custom
	}
	return t, nil
}

func timeClaim(m map[string]any, name string) (*time.Time, error) {
	v, ok := m[name]
	if !ok || v == nil {
		return nil, nil
	}

	var t time.Time
	switch x := v.(type) {
	case time.Time:
		t = x
	case string:
		parsed, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return nil, fault.ConversionError{Op: "session.timeClaim", Field: name, Expected: "RFC3339", Found: "string"}
		}
		t = parsed
	case float64:
		sec, frac := math.Modf(x)
		t = time.Unix(int64(sec), int64(frac*1e9))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, fault.Conversion("session.timeClaim", name, "number", v)
		}
		sec, frac := math.Modf(f)
		t = time.Unix(int64(sec), int64(frac*1e9))
	default:
		return nil, fault.Conversion("session.timeClaim", name, "time", v)
	}
	t = t.UTC()
	return &t, nil
}

func (t Token) String() string {
	return fmt.Sprintf("token(jti=%s sub=%s iss=%s)", t.ID, t.Subject, t.Issuer)
}
