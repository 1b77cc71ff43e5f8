package availability

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps persistence failures. It is never turned into an empty result.
	ErrStoreUnavailable  = errors.New("availability store unavailable")
	// ErrSlotUnavailable is returned when a booking does not fit the schedule or overlaps another booking
	ErrSlotUnavailable   = errors.New("requested slot is not available")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrStaffNotInTenant  = errors.New("staff member does not work for this tenant")
	ErrExceptionNotFound = errors.New("no exception on that date")
)

// ValidationError reports malformed input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
