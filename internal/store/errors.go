package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the store.
var (
	// ErrNoDocument is returned by Load when the canonical file does not
	// exist yet.
	ErrNoDocument = errors.New("store: document does not exist")
	// ErrNoRoute is returned by Snapshot.Route when no rule matches and no
	// default backend is configured.
	ErrNoRoute = errors.New("store: no matching rule and no default backend")
	// ErrBadCredential is returned by Rotate when the presented current
	// password is wrong.
	ErrBadCredential = errors.New("store: current password does not match")
)

// ValidationError collects every problem found in a document so a caller
// gets the full list in one round trip. It implements the error interface.
type ValidationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "document validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("document validation failed: %s", e.Errors[0])
	}
	return fmt.Sprintf("document validation failed with %d errors:\n  - %s",
		len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// Addf appends a formatted problem.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns the accumulator as an error, or nil when empty.
func (e *ValidationError) ToError() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsValidation reports whether err is (or wraps) a ValidationError.
// Admin handlers use it to pick 400 over 500.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
