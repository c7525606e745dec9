// Package engineerr defines the error taxonomy surfaced by the storage
// engine: ValueError for bad arguments or invariant violations, IoError for
// disk failures, and LockError for contention that cannot be resolved.
// Semantic misses (missing record, missing page, missing tuple slot) are
// never represented as errors here; callers get an "absent" zero value plus
// a bool, per spec.
package engineerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind distinguishes the error taxonomy. Branch on it with Is, not
// errors.Is: Kind is a plain discriminant, not a sentinel error value.
type Kind int

const (
	// KindValue marks a bad argument or on-disk invariant violation: a
	// wrong page length, an out-of-range offset, a name longer than 32
	// bytes, an RID that does not target the page it was given to.
	KindValue Kind = iota + 1
	// KindIO marks a disk read/write/seek/sync failure.
	KindIO
	// KindLock marks file-lock contention that could not be resolved.
	KindLock
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "ValueError"
	case KindIO:
		return "IoError"
	case KindLock:
		return "LockError"
	default:
		return "UnknownError"
	}
}

// engineError carries a Kind plus an optional wrapped cause so callers can
// both branch with engineerr.Is(err, engineerr.KindIO) and inspect the
// underlying I/O failure with errors.Unwrap/errors.As.
type engineError struct {
	kind  Kind
	msg   string
	cause error
}

func (e *engineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *engineError) Unwrap() error { return e.cause }

// Value builds a ValueError with the given message.
func Value(msg string) error {
	return &engineError{kind: KindValue, msg: msg}
}

// Valuef builds a ValueError with a formatted message.
func Valuef(format string, args ...interface{}) error {
	return &engineError{kind: KindValue, msg: fmt.Sprintf(format, args...)}
}

// IO wraps a disk I/O failure as an IoError. cause is typically an
// *os.PathError returned by an *os.File in the pager's underlying storage.
func IO(cause error, msg string) error {
	return &engineError{kind: KindIO, msg: msg, cause: errors.WithStack(cause)}
}

// Lock wraps a lock acquisition failure as a LockError.
func Lock(cause error, msg string) error {
	return &engineError{kind: KindLock, msg: msg, cause: errors.WithStack(cause)}
}

// Is reports whether err carries the given Kind anywhere in its chain. This
// is the intended way to branch on engine error kinds:
//
//	if engineerr.Is(err, engineerr.KindIO) { ... }
func Is(err error, kind Kind) bool {
	for err != nil {
		if ee, ok := err.(*engineError); ok && ee.kind == kind {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
