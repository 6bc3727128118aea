// ABOUTME: Operator-facing error taxonomy for call resolution and identity.
// ABOUTME: Typed errors matchable with errors.As; each unwraps to its cause.

package callerr

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed operator input. It never reaches the
// transport or the gate hardware.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// Invalid is shorthand for building a ValidationError.
func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// HardwareUnreachableError means the gate controller did not acknowledge the
// health check. The call session is left untouched.
type HardwareUnreachableError struct {
	GateID string
	Err    error
}

func (e *HardwareUnreachableError) Error() string {
	return fmt.Sprintf("gate %s unreachable: %v", e.GateID, e.Err)
}

func (e *HardwareUnreachableError) Unwrap() error { return e.Err }

// ActuationFailedError means the open command was sent but not honored.
type ActuationFailedError struct {
	GateID string
	Err    error
}

func (e *ActuationFailedError) Error() string {
	return fmt.Sprintf("gate %s did not open: %v", e.GateID, e.Err)
}

func (e *ActuationFailedError) Unwrap() error { return e.Err }

// SubmissionError means issue logging failed on the server or the network.
// The operator may retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("issue submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
