// Package sim provides an in-memory USB bus implementing hal.Controller.
//
// The [Bus] plays both roles: the device stack drives its Controller
// side, and tests and examples drive the host side (Reset, SubmitSetup,
// SubmitOut, TakeIn). Host-side mutations raise the corresponding
// controller events on the caller's goroutine, standing in for the USB
// interrupt.
//
// Control transfers are stepped: the host submits a SETUP packet, the
// executor is stepped so the control task services it, and the host then
// inspects the result. [Bus.ControlTransfer] bundles the sequence for
// enumeration-style tests.
package sim
