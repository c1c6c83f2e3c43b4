package pkg

import "errors"

// Capacity errors: a fixed-size structure is full. Always reported to the
// caller as a value, never grown dynamically.
var (
	// ErrQueueFull indicates the alarm queue is at capacity.
	ErrQueueFull = errors.New("alarm queue full")

	// ErrTableFull indicates the task table is at capacity.
	ErrTableFull = errors.New("task table full")

	// ErrWaitersFull indicates a primitive's waiter queue is at capacity.
	ErrWaitersFull = errors.New("waiter queue full")

	// ErrNoMemory indicates a fixed-size descriptor structure is full.
	ErrNoMemory = errors.New("insufficient memory")
)

// Protocol errors: a malformed or unsupported USB request. Handled locally
// by stalling the offending endpoint, never escalated.
var (
	// ErrStall indicates an endpoint stall condition.
	ErrStall = errors.New("endpoint stalled")

	// ErrNAK indicates a NAK response (endpoint not ready).
	ErrNAK = errors.New("NAK received")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidRequest indicates an invalid or unsupported request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidEndpoint indicates an invalid endpoint address.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")
)

// State errors: an operation attempted while its precondition does not
// hold. Always recoverable at the call site.
var (
	// ErrNotConfigured indicates the device is not in the Configured state.
	ErrNotConfigured = errors.New("device not configured")

	// ErrInvalidState indicates an invalid state for the operation.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyRunning indicates the executor or stack is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the executor or stack is not running.
	ErrNotRunning = errors.New("not running")

	// ErrCancelled indicates the task was cancelled while suspended.
	ErrCancelled = errors.New("task cancelled")

	// ErrTimeout indicates a suspension point lost the race to its deadline.
	ErrTimeout = errors.New("wait timed out")

	// ErrReset indicates a bus reset was received.
	ErrReset = errors.New("bus reset")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorClass categorizes a recoverable runtime error.
type ErrorClass int

// Error classes.
const (
	ClassNone     ErrorClass = iota // No error
	ClassCapacity                   // Fixed-size structure full
	ClassProtocol                   // Malformed or unsupported USB request
	ClassState                      // Operation precondition not met
)

// String returns a string representation of the error class.
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassCapacity:
		return "capacity"
	case ClassProtocol:
		return "protocol"
	case ClassState:
		return "state"
	default:
		return "unknown"
	}
}

// Classify returns the error class of a runtime sentinel error.
// Unknown errors classify as ClassState: they gate on a precondition the
// caller can re-establish, and must never unwind past the executor.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrQueueFull),
		errors.Is(err, ErrTableFull),
		errors.Is(err, ErrWaitersFull),
		errors.Is(err, ErrNoMemory):
		return ClassCapacity
	case errors.Is(err, ErrStall),
		errors.Is(err, ErrNAK),
		errors.Is(err, ErrProtocol),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidEndpoint),
		errors.Is(err, ErrSetupPacketTooShort),
		errors.Is(err, ErrDescriptorTooShort),
		errors.Is(err, ErrDescriptorTypeMismatch),
		errors.Is(err, ErrBufferTooSmall),
		errors.Is(err, ErrNotSupported):
		return ClassProtocol
	default:
		return ClassState
	}
}
