package fault

import (
	"errors"
	"fmt"
	"reflect"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
// - Kind MUST be one of the sentinel kinds.
// - Msg may include human-readable context; do not include secrets.
// - Err is the optional lower-layer cause. It stays reachable through errors.Is/As
//   so logs keep full context, but Message never exposes it.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NotFoundError reports a missing record. Resource is the table/item name
// ("member", "principal", "scope").
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a uniqueness violation on create.
// Field is the logical unique key that collided ("key", "email", "username", ...).
type ConflictError struct {
	Op       string
	Resource string
	Field    string
}

func (e ConflictError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	if e.Resource != "" {
		s += ": " + e.Resource
	}
	if e.Field != "" {
		s += ": " + e.Field
	}
	return s
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// ConversionError reports a value that does not fit its target field.
// Status is the caller-facing classification (HTTP-like); zero means 400.
type ConversionError struct {
	Op       string
	Field    string
	Expected string
	Found    string
	Status   int
	Msg      string
}

func (e ConversionError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, ErrConversion)
	if e.Expected != "" || e.Found != "" {
		s += fmt.Sprintf(": expected %s instead got %s", orUnknown(e.Expected), orUnknown(e.Found))
	}
	if e.Field != "" {
		s += fmt.Sprintf(" for field `%s`", e.Field)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e ConversionError) Unwrap() error { return ErrConversion }

// StatusCode returns the caller-facing status, defaulting to 400.
func (e ConversionError) StatusCode() int {
	if e.Status == 0 {
		return 400
	}
	return e.Status
}

// Message is the caller-facing text.
func (e ConversionError) Message() string {
	if e.StatusCode() >= 500 {
		return "internal server error"
	}
	switch {
	case e.Msg != "" && e.Field != "":
		return fmt.Sprintf("%s for field `%s`", e.Msg, e.Field)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return "invalid data format for field " + e.Field
	default:
		return "invalid data format"
	}
}

// WithField returns a copy naming field.
func (e ConversionError) WithField(field string) ConversionError {
	e.Field = field
	return e
}

// WithStatus returns a copy with a different caller-facing status.
func (e ConversionError) WithStatus(status int) ConversionError {
	e.Status = status
	return e
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Conversion builds a ConversionError for field from the expected type and the value found.
func Conversion(op, field string, expected string, found any) ConversionError {
	return ConversionError{
		Op:       op,
		Field:    field,
		Expected: expected,
		Found:    typeName(found),
	}
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return reflect.TypeOf(v).String()
}

// Internal wraps an unexpected lower-layer failure.
func Internal(op string, err error) error {
	return OpError{Op: op, Kind: ErrInternal, Err: err}
}

// Invalid reports rejected caller input.
func Invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// Unauthorized reports a credential mismatch; reason is for logs only.
func Unauthorized(op, reason string) error {
	return OpError{Op: op, Kind: ErrUnauthorized, Msg: reason}
}

// Unsupported reports an operation the entity does not define.
func Unsupported(op, msg string) error {
	return OpError{Op: op, Kind: ErrUnsupported, Msg: msg}
}

// IsNotFound reports whether err represents ErrNotFound (including NotFoundError).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err represents ErrConflict (including ConflictError).
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsUnauthorized reports whether err represents ErrUnauthorized.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsInvalidToken reports whether err represents ErrInvalidToken.
func IsInvalidToken(err error) bool { return errors.Is(err, ErrInvalidToken) }

// IsExpiredToken reports whether err represents ErrExpiredToken.
func IsExpiredToken(err error) bool { return errors.Is(err, ErrExpiredToken) }

// IsConversion reports whether err represents ErrConversion.
func IsConversion(err error) bool { return errors.Is(err, ErrConversion) }

// IsUnsupported reports whether err represents ErrUnsupported.
func IsUnsupported(err error) bool { return errors.Is(err, ErrUnsupported) }

// IsLockPoisoned reports whether err represents ErrLockPoisoned.
func IsLockPoisoned(err error) bool { return errors.Is(err, ErrLockPoisoned) }

// IsInconsistentData reports whether err represents ErrInconsistentData.
func IsInconsistentData(err error) bool { return errors.Is(err, ErrInconsistentData) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsInternal reports whether err is unexpected: explicitly Internal, a concurrency-control
// failure, or a foreign error that never went through this package.
func IsInternal(err error) bool {
	if err == nil {
		return false
	}
	k := Kind(err)
	return k == ErrInternal || k == ErrLockPoisoned || k == ErrInconsistentData
}
