package fault

import (
	"errors"
	"net/http"
)

// Status maps err to an HTTP status code.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ce ConversionError
	if errors.As(err, &ce) {
		return ce.StatusCode()
	}
	switch Kind(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrUnauthorized, ErrInvalidToken, ErrExpiredToken:
		return http.StatusUnauthorized
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnsupported:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Expected reports whether err is a reportable outcome (as opposed to an internal
// failure that must be logged with context and surfaced generically).
func Expected(err error) bool {
	return err != nil && !IsInternal(err)
}

// Message returns caller-safe text for err. Internal causes are never exposed.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var ce ConversionError
	if errors.As(err, &ce) {
		return ce.Message()
	}
	var nf NotFoundError
	if errors.As(err, &nf) && nf.Resource != "" {
		return nf.Resource + " not found"
	}
	var cf ConflictError
	if errors.As(err, &cf) && cf.Resource != "" {
		return cf.Resource + " already exists"
	}
	switch Kind(err) {
	case ErrNotFound:
		return "not found"
	case ErrConflict:
		return "already exists"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalidToken:
		return "invalid token"
	case ErrExpiredToken:
		return "expired token"
	case ErrUnsupported:
		return "unsupported operation"
	case ErrInvalidInput:
		var oe OpError
		if errors.As(err, &oe) && oe.Msg != "" {
			return oe.Msg
		}
		return "invalid input"
	default:
		return "internal server error"
	}
}
