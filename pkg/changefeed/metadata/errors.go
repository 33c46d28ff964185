package metadata

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/changefeed/pkg/changefeed/resource"
)

// Sentinel errors for registration and build.
var (
	// ErrEmptyClass indicates a ClassSpec without a class tag.
	ErrEmptyClass = errors.New("class is required")

	// ErrDuplicateClass indicates the class was already registered.
	ErrDuplicateClass = errors.New("class already registered")

	// ErrMissingTarget indicates a redirection key with source fields but no target provider.
	ErrMissingTarget = errors.New("redirection key has no target provider")

	// ErrUnknownParent indicates a ClassSpec whose Parent was never registered.
	ErrUnknownParent = errors.New("parent class not registered")

	// ErrInheritanceCycle indicates a class that is, through its parents, its own ancestor.
	ErrInheritanceCycle = errors.New("class inheritance cycle")

	// ErrNilResolver indicates RegisterResolver was called with a nil function.
	ErrNilResolver = errors.New("resolver is required")
)

// ClassError wraps a registration or build error with the offending class.
type ClassError struct {
	Class resource.Class
	Err   error
}

// Error implements the error interface.
func (e *ClassError) Error() string {
	return fmt.Sprintf("class %s: %v", e.Class, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ClassError) Unwrap() error {
	return e.Err
}

// ResolutionError describes a provider that failed while resolving an origin,
// a redirection target or a multi-source resolver. Resolution errors never
// propagate to callers; they are reported and treated as "no result".
type ResolutionError struct {
	// Class is the class of the entity the provider was invoked on.
	Class resource.Class
	// EntityID is the identity of that entity.
	EntityID string
	// Provider names the provider: "origin", "resolver" or "redirect:<key>".
	Provider string
	// Err is the error returned by the provider, or a *PanicError.
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s of %s/%s: %v", e.Provider, e.Class, e.EntityID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a provider.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("provider panicked: %v", e.Value)
}
