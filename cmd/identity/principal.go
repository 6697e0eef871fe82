package identity

import (
	"encoding/json"
	"time"
)

// Principal is an authenticable identity (user).
//
// PasswordHash is only populated on the path between a store and the credential
// verifier; values returned to callers after registration carry an empty hash.
type Principal struct {
	ID           ID
	Username     string
	Contact      Contact
	PasswordHash string
	CreatedAt    time.Time
}

// Clone returns a deep copy.
func (p Principal) Clone() Principal {
	p.Contact = p.Contact.Clone()
	return p
}

// WithoutSecret returns a copy with the password hash cleared.
func (p Principal) WithoutSecret() Principal {
	p = p.Clone()
	p.PasswordHash = ""
	return p
}

// LookupKeys returns the unique secondary keys of p (username, email, phone).
func (p Principal) LookupKeys() []LookupKey {
	var keys []LookupKey
	if u := NormalizeUsername(p.Username); u != "" {
		keys = append(keys, LookupKey{Kind: LookupUsername, Value: u})
	}
	if p.Contact.Email != nil {
		if e := NormalizeEmail(p.Contact.Email.Address); e != "" {
			keys = append(keys, LookupKey{Kind: LookupEmail, Value: e})
		}
	}
	if p.Contact.Phone != nil {
		if n, ok := NormalizePhone(p.Contact.Phone.Number); ok {
			keys = append(keys, LookupKey{Kind: LookupPhone, Value: n})
		}
	}
	return keys
}

type principalJSON struct {
	ID        ID        `json:"id"`
	Username  string    `json:"username,omitempty"`
	Contact   Contact   `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalJSON never emits the password hash.
func (p Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(principalJSON{
		ID:        p.ID,
		Username:  p.Username,
		Contact:   p.Contact,
		CreatedAt: p.CreatedAt,
	})
}
