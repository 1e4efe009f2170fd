package store

import (
	"errors"
	"fmt"
)

// Kind classifies a store failure so callers can decide between
// log-and-skip (background sync) and surfacing to the user (write path).
type Kind string

const (
	KindNetwork    Kind = "network"    // store unreachable or connection dropped
	KindValidation Kind = "validation" // store rejected a write
	KindAuth       Kind = "auth"       // credentials or session rejected
	KindNotFound   Kind = "not_found"
)

// Error is a typed store failure. Stores wrap driver errors at the
// boundary instead of swallowing them, so persistent misconfiguration is
// visible to any caller that cares.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a kind and operation name.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, defaulting to KindNetwork for untyped
// errors since those are almost always transport failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindNetwork
}

// IsNotFound reports whether err is a not-found store error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// ErrPushUnsupported is returned by Subscribe on stores that have no push
// channel; the sync engine falls back to polling.
var ErrPushUnsupported = errors.New("store: push subscriptions not supported")
