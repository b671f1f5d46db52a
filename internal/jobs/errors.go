package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNoCoveringBackend is the configuration-fatal condition raised when no
// backend anywhere can serve the requested platform.
var ErrNoCoveringBackend = errors.New("no backend covers the requested platform")

// TransientError marks a network/timeout-class backend failure eligible for
// bounded retry.
type TransientError struct {
	Backend string
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Backend, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a contract violation, such as a response shape the
// backend no longer matches. It is never retried.
type PermanentError struct {
	Backend string
	Err     error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s: permanent failure: %v", e.Backend, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the named backend.
func Transient(backend string, err error) error {
	return &TransientError{Backend: backend, Err: err}
}

// Permanent wraps err as a PermanentError for the named backend.
func Permanent(backend string, err error) error {
	return &PermanentError{Backend: backend, Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Retryable reports whether a backend error is worth another attempt.
// Context cancellation and permanent failures are never retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
