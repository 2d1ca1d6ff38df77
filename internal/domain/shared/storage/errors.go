package storage

import (
	"errors"
	"fmt"
)

// ErrUnavailable marks a transport or backend failure in any store.
// Callers may retry; the core never does.
var ErrUnavailable = errors.New("storage: store unavailable")

// UnavailableError carries the failed operation alongside the driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUnavailable.Error(), e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error { return []error{ErrUnavailable, e.Err} }

// Unavailable wraps err unless it is nil or already classified.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return &UnavailableError{Op: op, Err: err}
}
