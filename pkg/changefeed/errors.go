package changefeed

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine construction.
var (
	// ErrNilTables indicates New was called without compiled metadata tables.
	ErrNilTables = errors.New("metadata tables cannot be nil")

	// ErrNilPublisher indicates New was called without a publisher.
	ErrNilPublisher = errors.New("publisher cannot be nil")
)

// PublishError wraps a publisher failure with unit-of-work context.
// It is logged and handed to the handler set with WithPublishErrorHandler;
// it is never returned from a hook.
type PublishError struct {
	// UnitOfWorkID identifies the committed unit of work.
	UnitOfWorkID string
	// Events is the number of events in the refused batch.
	Events int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %d events for unit of work %s: %v", e.Events, e.UnitOfWorkID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *PublishError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised while grouping or publishing a batch.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during commit: %v", e.Value)
}
