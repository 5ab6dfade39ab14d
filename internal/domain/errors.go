// Package domain contains domain models and business logic errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	// ErrNotFound is returned when the requested VM is not registered.
	ErrNotFound = errors.New("vm not found")

	// ErrDuplicateID is returned when creating a VM with an already registered id.
	ErrDuplicateID = errors.New("vm id already registered")

	// ErrChassisLimit is returned when the chassis VM ceiling is reached.
	ErrChassisLimit = errors.New("chassis vm limit exceeded")
)

// InvalidConfigError reports a malformed chassis profile or configuration
// value. It is fatal at startup and never recoverable at runtime.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// InvalidArgumentError reports a malformed caller-supplied value on a runtime
// operation, such as an empty VM id or a negative demand. Unlike
// InvalidConfigError it is an ordinary request failure, not a startup fault.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %s: %s", e.Field, e.Reason)
}

// InsufficientResourcesError reports a reservation request that exceeds the
// remaining capacity of one resource dimension. No partial reservation is
// made when it is returned.
type InsufficientResourcesError struct {
	Dimension Dimension
	Available float64
	Requested float64
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient %s: available %g, requested %g",
		e.Dimension, e.Available, e.Requested)
}

// InvalidTransitionError reports a lifecycle event applied to a VM in a state
// that does not permit it. The VM is left unchanged.
type InvalidTransitionError struct {
	From  VMState
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s not allowed from %s", e.Event, e.From)
}
