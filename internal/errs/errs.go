// Package errs defines the error kinds shared by every supplygraph package.
//
// Callers match kinds with errors.Is against the sentinels; the structured
// types carry the detail and unwrap to their sentinel.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrNotFound          = errors.New("not found")
	ErrNotDirected       = errors.New("graph is not directed")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrSourceUnavailable = errors.New("snapshot source unavailable")
)

// SchemaMismatchError reports a positional array that cannot be aligned with
// its declared schema. Row is -1 when the problem is with the schema itself.
type SchemaMismatchError struct {
	Kind   string // "node" or "relationship"
	Name   string // node type or relationship type
	Row    int
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("schema mismatch: %s type %q: %s", e.Kind, e.Name, e.Reason)
	}
	return fmt.Sprintf("schema mismatch: %s type %q row %d: %s", e.Kind, e.Name, e.Row, e.Reason)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// SourceUnavailableError wraps a failed snapshot fetch. It is never a signal
// that the snapshot is empty.
type SourceUnavailableError struct {
	Timestamp int
	Err       error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("fetching snapshot %d: %v", e.Timestamp, e.Err)
}

func (e *SourceUnavailableError) Unwrap() []error { return []error{ErrSourceUnavailable, e.Err} }

// NotFound returns an ErrNotFound wrapped with the kind and id of the missing item.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// InvalidArgument returns an ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Unavailable wraps err as a SourceUnavailableError for timestamp t unless it
// already is one. The cause stays reachable through errors.Is.
func Unavailable(t int, err error) error {
	if err == nil {
		return nil
	}
	var sue *SourceUnavailableError
	if errors.As(err, &sue) {
		return err
	}
	return &SourceUnavailableError{Timestamp: t, Err: err}
}
