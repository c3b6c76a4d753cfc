package reconciler

import (
	"errors"
	"fmt"
)

// ErrInvalidState is matched by every ValidationError.
var ErrInvalidState = errors.New("inconsistent edit state")

// ValidationError reports an edit state Reconcile refuses to translate.
// Nothing is emitted when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidState, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidState, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidState
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
