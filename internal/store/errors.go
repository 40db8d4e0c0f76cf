package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a single-row fetch finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrAuthRequired is returned by write accessors before any query runs
	// when the caller has no live session.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden is returned when the session lacks the needed role.
	ErrForbidden = errors.New("forbidden")
)

// QueryError wraps a driver failure with the operation that caused it.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *QueryError) Unwrap() error { return e.Err }

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Err: err}
}

// ValidationError reports a rejected write, such as a detail record the
// database refused after the base account row was stored.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
