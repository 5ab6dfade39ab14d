package domain

import (
	"time"
)

// VMState represents the lifecycle state of a simulated cellular process.
type VMState string

const (
	VMStateCreated VMState = "CREATED"
	VMStateRunning VMState = "RUNNING"
	VMStatePaused  VMState = "PAUSED"
	VMStateStopped VMState = "STOPPED"
	VMStateError   VMState = "ERROR"
)

// Event is a lifecycle event applied to a VM.
type Event string

const (
	EventStart   Event = "StartVM"
	EventPause   Event = "PauseVM"
	EventResume  Event = "ResumeVM"
	EventDestroy Event = "DestroyVM"
	EventFault   Event = "Fault"
)

// VMRecord is a VM's state machine plus its reservation metadata. Records are
// owned exclusively by the hypervisor registry; the scheduler mutates only the
// scheduling fields, never the reservation.
type VMRecord struct {
	ID       string
	State    VMState
	Demand   ResourceDemand
	Priority int

	CreatedAt       time.Time
	LastScheduledAt time.Time

	// LastScheduledTick orders the active queue deterministically; the
	// wall-clock timestamp above is for display only.
	LastScheduledTick uint64

	SliceCount     uint64
	ScheduledTotal time.Duration

	ErrorReason string
}

// DefaultPriority is the mid-range priority assigned when the caller does not
// specify one.
const DefaultPriority = 5

// Transition returns the state reached by applying event to from, or an
// InvalidTransitionError when the pair is not in the lifecycle table.
// EventDestroy is valid from every state including Error, which makes
// DestroyVM the universal recovery action.
func Transition(from VMState, event Event) (VMState, error) {
	switch event {
	case EventStart:
		if from == VMStateCreated {
			return VMStateRunning, nil
		}
	case EventPause:
		if from == VMStateRunning {
			return VMStatePaused, nil
		}
	case EventResume:
		if from == VMStatePaused {
			return VMStateRunning, nil
		}
	case EventDestroy:
		if from != VMStateStopped {
			return VMStateStopped, nil
		}
	case EventFault:
		if from != VMStateStopped && from != VMStateError {
			return VMStateError, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Event: event}
}

// IsRunning reports whether the VM is eligible for scheduling.
func (vm *VMRecord) IsRunning() bool {
	return vm.State == VMStateRunning
}

// IsTerminal reports whether the VM has left the lifecycle for good.
func (vm *VMRecord) IsTerminal() bool {
	return vm.State == VMStateStopped
}

// Uptime returns the wall time since the VM was created.
func (vm *VMRecord) Uptime(now time.Time) time.Duration {
	if vm.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(vm.CreatedAt)
}
