package breeds

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the single error kind for any failure to produce a
	// sub-breed list, whatever the root cause.
	ErrNotFound = errors.New("breed not found")
	// ErrInvalidArgument is returned when a component is built with a missing dependency.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NotFoundError carries the detail behind an ErrNotFound. Reason is the
// human-readable message; Err is the underlying cause, if any.
type NotFoundError struct {
	Breed  string
	Reason string
	Err    error
}

// NewNotFoundError builds a NotFoundError for breed with an optional cause.
func NewNotFoundError(breed, reason string, cause error) *NotFoundError {
	return &NotFoundError{Breed: breed, Reason: reason, Err: cause}
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

// Unwrap exposes the underlying cause.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// Is reports NotFoundError as ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
