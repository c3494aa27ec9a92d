package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLeaseExpired is returned by a registry when the lease is unknown or expired.
	ErrLeaseExpired = errors.New("lease unknown or expired")

	// ErrRegistryRejected is returned by a registry that refused a registration
	// for a reason retrying cannot fix (for example an invalid descriptor).
	ErrRegistryRejected = errors.New("registration rejected by registry")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("runtime already started")

	// ErrClosed is returned by a runtime after Shutdown.
	ErrClosed = errors.New("runtime is shut down")
)

// ValidationError reports a malformed or missing request payload.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}

	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ExecutionError wraps a failure raised by the user analysis hook.
type ExecutionError struct {
	Task  string
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of task %q failed: %v", e.Task, e.Cause)
}

// Unwrap returns the hook's original error.
func (e *ExecutionError) Unwrap() error { return e.Cause }

// RegistrationError reports that the registry was unreachable or refused the
// registration. Rejected is true when retrying cannot succeed.
type RegistrationError struct {
	Endpoint string
	Rejected bool
	Cause    error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("registration at %s failed: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying transport or registry error.
func (e *RegistrationError) Unwrap() error { return e.Cause }

// RenewalError reports a failed lease renewal.
type RenewalError struct {
	LeaseID string
	Cause   error
}

// Error implements the error interface.
func (e *RenewalError) Error() string {
	return fmt.Sprintf("renewal of lease %s failed: %v", e.LeaseID, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RenewalError) Unwrap() error { return e.Cause }

// ShutdownTimeoutError reports that a shutdown phase exceeded its bound and
// was forcibly terminated.
type ShutdownTimeoutError struct {
	Phase   string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("shutdown phase %q exceeded %s", e.Phase, e.Timeout)
}
