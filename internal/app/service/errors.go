package service

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a logic-level violation (empty normalized key, cursor
// regression). It always aborts the run and is never retried blindly.
var ErrInvariant = errors.New("invariant violation")

// TransientError wraps a network or upstream failure. The batch it aborts is
// safe to retry on the next run without cleanup.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError, or returns nil for a nil err.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
