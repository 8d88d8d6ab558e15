// Package rxerr implements the error taxonomy of §7: a closed set of
// kinds shared by every component, instead of one error type per
// condition the way the teacher's errors.go declares ErrRepositoryUnknown,
// ErrManifestUnknown, etc. A single kind plus a human message lets every
// layer (store, CAS, client, HTTP server) map consistently to the same
// vocabulary without importing each other's error types.
package rxerr

import "fmt"

// Kind classifies an Error into one of the six buckets from §7.
type Kind string

const (
	Locator      Kind = "LocatorError"
	Manifest     Kind = "ManifestError"
	Content      Kind = "ContentError"
	Registry     Kind = "RegistryError"
	ResourceType Kind = "ResourceTypeError"
	Transport    Kind = "TransportError"
)

// Error is the concrete error type returned by every ResourceX package.
type Error struct {
	Kind    Kind
	Reason  string // machine-readable sub-kind, e.g. "digest-mismatch"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind (and, if
// target.Reason is set, the same Reason). It lets callers write
// errors.Is(err, rxerr.New(rxerr.Registry, "", "")) style kind checks.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return true
}

// New builds an Error of the given kind.
func New(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap builds an Error of the given kind wrapping err.
func Wrap(kind Kind, reason, message string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message, Err: err}
}

// Recoverable reports whether an error arising from a single registry
// probe should allow the multi-registry client to try the next registry
// in the chain, per §7 "RegistryError and TransportError ... are
// recoverable within the chain". Digest mismatches are explicitly
// excluded: they are surfaced immediately.
func Recoverable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind == Registry && e.Reason == "digest-mismatch" {
		return false
	}
	return e.Kind == Registry || e.Kind == Transport
}
