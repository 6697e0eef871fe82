package identity

import (
	"encoding/json"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/abdihakim148/beekeeper/cmd/fault"
)

// Email is an address plus its verification state.
type Email struct {
	Address  string
	Verified bool
}

// NewEmail validates address and returns an unverified Email.
func NewEmail(address string) (Email, error) {
	address = strings.TrimSpace(address)
	if err := validation.Validate(address, validation.Required, is.Email); err != nil {
		return Email{}, fault.ConversionError{Op: "identity.NewEmail", Field: "email", Msg: "invalid email address"}
	}
	return Email{Address: address}, nil
}

// Phone is an E.164 number plus its verification state.
type Phone struct {
	Number   string
	Verified bool
}

// NewPhone validates and normalizes number and returns an unverified Phone.
func NewPhone(number string) (Phone, error) {
	e164, ok := NormalizePhone(number)
	if !ok {
		return Phone{}, fault.ConversionError{Op: "identity.NewPhone", Field: "phone", Msg: "invalid phone number"}
	}
	return Phone{Number: e164}, nil
}

// Contact holds the reachable channels of a principal. At least one must be set.
type Contact struct {
	Email *Email
	Phone *Phone
}

// IsZero reports whether neither channel is set.
func (c Contact) IsZero() bool { return c.Email == nil && c.Phone == nil }

// Validate checks that at least one channel is present and well-formed.
func (c Contact) Validate() error {
	const op = "identity.Contact.Validate"
	if c.IsZero() {
		return fault.ConversionError{Op: op, Field: "contact", Msg: "neither phone nor email provided"}
	}
	if c.Email != nil {
		if _, err := NewEmail(c.Email.Address); err != nil {
			return err
		}
	}
	if c.Phone != nil {
		if _, ok := NormalizePhone(c.Phone.Number); !ok {
			return fault.ConversionError{Op: op, Field: "phone", Msg: "invalid phone number"}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c Contact) Clone() Contact {
	out := Contact{}
	if c.Email != nil {
		e := *c.Email
		out.Email = &e
	}
	if c.Phone != nil {
		p := *c.Phone
		out.Phone = &p
	}
	return out
}

type contactJSON struct {
	Phone         *string `json:"phone,omitempty"`
	PhoneVerified *bool   `json:"phone_verified,omitempty"`
	Email         *string `json:"email,omitempty"`
	EmailVerified *bool   `json:"email_verified,omitempty"`
}

// MarshalJSON emits the flat shape {"phone","phone_verified","email","email_verified"}.
func (c Contact) MarshalJSON() ([]byte, error) {
	var out contactJSON
	if c.Phone != nil {
		n, v := c.Phone.Number, c.Phone.Verified
		out.Phone, out.PhoneVerified = &n, &v
	}
	if c.Email != nil {
		a, v := c.Email.Address, c.Email.Verified
		out.Email, out.EmailVerified = &a, &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the flat shape; nulls count as absent.
func (c *Contact) UnmarshalJSON(b []byte) error {
	var in contactJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Contact{}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		p, err := NewPhone(*in.Phone)
		if err != nil {
			return err
		}
		p.Verified = in.PhoneVerified != nil && *in.PhoneVerified
		out.Phone = &p
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		e, err := NewEmail(*in.Email)
		if err != nil {
			return err
		}
		e.Verified = in.EmailVerified != nil && *in.EmailVerified
		out.Email = &e
	}
	if out.IsZero() {
		return fault.ConversionError{Op: "identity.Contact.UnmarshalJSON", Field: "contact", Msg: "neither phone nor email provided"}
	}
	*c = out
	return nil
}
