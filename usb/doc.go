// Package usb implements a USB 2.0 device stack on top of the
// cooperative executor.
//
// The stack divides the work between interrupt context and task context.
// [Stack.OnInterrupt] is the controller's interrupt entry: it records the
// event in atomic pending flags and marks the affected task ready through
// the wake registry, nothing more. The control task ([Stack.Run],
// registered on the executor) drains those flags, parses SETUP packets,
// and drives enumeration; application tasks move data with
// [Stack.ReadEndpoint] and [Stack.WriteEndpoint], suspending until the
// corresponding transfer-complete interrupt.
//
// # Device States
//
// The [Device] tracks the USB 2.0 state machine restricted to the three
// states visible to firmware: Default after a bus reset, Addressed after
// SET_ADDRESS, Configured after SET_CONFIGURATION. Transitions happen
// only through standard control requests; a malformed or unsupported
// request stalls EP0 and leaves the state untouched. A bus reset returns
// the device to Default from any state and clears the data endpoints.
//
// # Descriptors
//
// Descriptor types marshal themselves bit-exact per USB 2.0, little
// endian, with the MarshalTo(buf) int convention: callers own the buffer
// and a zero return means it was too small. Class drivers contribute
// class-specific interface and endpoint descriptors as pre-encoded byte
// slices, spliced into the configuration descriptor in table order.
package usb
