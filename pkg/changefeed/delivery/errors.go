package delivery

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDispatcherClosed indicates Publish was called after Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")

	// ErrQueueFull indicates a non-blocking dispatcher dropped a batch.
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrBusClosed indicates Deliver was called on a closed bus.
	ErrBusClosed = errors.New("bus is closed")

	// ErrOutboxClosed indicates the outbox was used after Close.
	ErrOutboxClosed = errors.New("outbox is closed")

	// ErrDeadLetterQueueFull indicates the dead letter queue reached its size limit.
	ErrDeadLetterQueueFull = errors.New("dead letter queue is full")

	// ErrNotFound indicates the requested entry does not exist.
	ErrNotFound = errors.New("not found")
)

// DeliveryError wraps a sink failure with batch context.
type DeliveryError struct {
	// BatchID identifies the batch that failed.
	BatchID string
	// Sink is the name the sink was registered under.
	Sink string
	// Attempts is the number of delivery attempts made.
	Attempts int
	// Err is the last error returned by the sink.
	Err error
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver batch %s to %s after %d attempts: %v", e.BatchID, e.Sink, e.Attempts, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// permanentError marks an error that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. Sinks return it for failures such as
// encoding errors, where another attempt would fail the same way.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
