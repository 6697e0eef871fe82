package identity

import (
	"encoding/json"
	"time"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity/ids"
)

// ID identifies principals, tenants and roles. It always holds a canonical ULID.
type ID string

// NewID returns a fresh ULID-backed ID.
func NewID(now time.Time) (ID, error) {
	s, err := ids.NewULID(now)
	if err != nil {
		return "", fault.Internal("identity.NewID", err)
	}
	return ID(s), nil
}

// ParseID strictly parses s. Malformed input is a ConversionError on field "id".
func ParseID(s string) (ID, error) {
	c, err := ids.Canonical(s)
	if err != nil {
		return "", fault.ConversionError{
			Op:       "identity.ParseID",
			Field:    "id",
			Expected: "ulid",
			Found:    "string",
			Msg:      "invalid id",
		}
	}
	return ID(c), nil
}

func (id ID) String() string { return string(id) }

// IsZero reports whether id is unset.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON parses a JSON string through ParseID, so decoded ids are canonical.
// An empty string or null leaves id unset.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fault.ConversionError{Op: "identity.ID.UnmarshalJSON", Field: "id", Expected: "string", Msg: "invalid id"}
	}
	if raw == "" {
		*id = ""
		return nil
	}
	parsed, err := ParseID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
