// Package hal defines the Hardware Abstraction Layer for USB device
// controllers.
//
// The [Controller] interface is a register-level, non-blocking contract:
// every method either completes immediately or reports that the hardware
// is not ready (ErrNAK). Waiting is the stack's job, done by suspending
// the calling task until the controller raises a completion [Event]
// through the installed event handler.
//
// The event handler is the controller's interrupt line. Implementations
// may invoke it from any goroutine; handlers must be safe for interrupt
// context (wake-registry marks and atomic flag updates only).
package hal
