// Package fetch abstracts obtaining bytes for a source locator and
// writing them to a destination path.
//
// This file defines sentinel errors and an error wrapper for
// classifying fetch failures. These enable callers to use
// errors.Is/errors.As for typed assertions rather than string matching.
package fetch

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/stainfetch/types"
)

// Sentinel errors for fetch failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrTransient indicates a retryable network failure: timeout,
	// connection reset, 5xx response.
	ErrTransient = errors.New("transient network failure")

	// ErrNotFound indicates the source does not exist: 4xx response or
	// missing local file. Never retried.
	ErrNotFound = errors.New("source not found")

	// ErrIO indicates a local filesystem failure on the destination
	// side. Never retried.
	ErrIO = errors.New("local i/o failure")
)

// Error wraps an underlying error with fetch classification.
// It preserves the original error in the chain for inspection via errors.As.
type Error struct {
	// Kind is the sentinel error for classification.
	Kind error
	// Op is the operation that failed (e.g. "get", "copy", "write").
	Op string
	// Source is the source locator involved.
	Source string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// newError creates a classified fetch error.
func newError(kind error, op, source string, err error) *Error {
	return &Error{Kind: kind, Op: op, Source: source, Err: err}
}

// Retryable reports whether err may succeed on a subsequent attempt.
// Only transient network failures are retryable.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Classify maps a fetch error to the ledger failure taxonomy.
// Unclassified errors fall back to permanent i/o and are not retried.
func Classify(err error) types.FailureClass {
	switch {
	case errors.Is(err, ErrTransient):
		return types.FailureTransientNetwork
	case errors.Is(err, ErrNotFound):
		return types.FailureNotFound
	default:
		return types.FailureIO
	}
}
