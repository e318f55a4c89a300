package rtkernel

import "errors"

// Recoverable kernel errors. Callers match them with errors.Is; returned
// values usually carry context wrapped around one of these.
var (
	// ErrQueueFull is returned when an event could not be enqueued because the
	// target queue had no free slot. The event was not delivered.
	ErrQueueFull = errors.New("rtkernel: queue full")

	// ErrInvalidObject is returned for operations on a task slot that was never
	// registered, or that is not in a state admitting the operation.
	ErrInvalidObject = errors.New("rtkernel: invalid object")

	// ErrOutOfRange is returned for a priority, signal or capacity outside its
	// configured bound.
	ErrOutOfRange = errors.New("rtkernel: out of range")

	// ErrPriorityTaken is returned when registering a second task at an
	// occupied priority.
	ErrPriorityTaken = errors.New("rtkernel: priority already taken")

	// ErrPoolExhausted is returned by Pool.Get when no event is free.
	ErrPoolExhausted = errors.New("rtkernel: event pool exhausted")

	// ErrConfig is returned for an invalid Config.
	ErrConfig = errors.New("rtkernel: invalid config")
)
