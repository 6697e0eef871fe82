package fault

import "errors"

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrNotFound         = errors.New("not_found")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidToken     = errors.New("invalid_token")
	ErrExpiredToken     = errors.New("expired_token")
	ErrConversion       = errors.New("conversion")
	ErrLockPoisoned     = errors.New("lock_poisoned")
	ErrInconsistentData = errors.New("inconsistent_data")
	ErrUnsupported      = errors.New("unsupported_operation")
	ErrInternal         = errors.New("internal")
	ErrInvalidInput     = errors.New("invalid_input")
)

var kinds = []error{
	ErrNotFound,
	ErrConflict,
	ErrUnauthorized,
	ErrInvalidToken,
	ErrExpiredToken,
	ErrConversion,
	ErrLockPoisoned,
	ErrInconsistentData,
	ErrUnsupported,
	ErrInvalidInput,
	ErrInternal,
}

// Kind returns the sentinel kind carried by err, or ErrInternal for foreign errors.
// A nil err has no kind.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	// The outermost OpError decides: an Internal wrapper around an expected error
	// stays Internal.
	var oe OpError
	if errors.As(err, &oe) && oe.Kind != nil {
		return oe.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// KindName returns a metrics-friendly label for err ("ok" when err is nil).
func KindName(err error) string {
	k := Kind(err)
	if k == nil {
		return "ok"
	}
	return k.Error()
}
