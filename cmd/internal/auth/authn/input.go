package authn

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/abdihakim148/beekeeper/cmd/fault"
	"github.com/abdihakim148/beekeeper/cmd/identity"
)

// usernameRe starts with a letter so a username never classifies as a phone number at
// login.
var usernameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*$`)

// RegisterInput is the registration request.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (in RegisterInput) normalized() RegisterInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}

// Validate checks shape only. Password strength is the credential service's call.
func (in RegisterInput) Validate() error {
	const op = "authn.RegisterInput.Validate"

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Length(3, 64), validation.Match(usernameRe)),
		validation.Field(&in.Email, is.Email),
		validation.Field(&in.Password, validation.Required),
	)
	if err != nil {
		return conversionFromValidation(op, err)
	}
	if in.Email == "" && in.Phone == "" {
		return fault.ConversionError{Op: op, Field: "contact", Msg: "neither phone nor email provided"}
	}
	return nil
}

// contact builds the principal contact from the validated input.
func (in RegisterInput) contact() (identity.Contact, error) {
	var c identity.Contact
	if in.Email != "" {
		e, err := identity.NewEmail(in.Email)
		if err != nil {
			return identity.Contact{}, err
		}
		c.Email = &e
	}
	if in.Phone != "" {
		p, err := identity.NewPhone(in.Phone)
		if err != nil {
			return identity.Contact{}, err
		}
		c.Phone = &p
	}
	return c, nil
}

// conversionFromValidation reports the first failing field (alphabetically) of an ozzo
// error set.
func conversionFromValidation(op string, err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fault.ConversionError{Op: op, Msg: err.Error()}
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	first := fields[0]
	return fault.ConversionError{Op: op, Field: first, Msg: errs[first].Error()}
}
