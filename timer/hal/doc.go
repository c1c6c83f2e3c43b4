// Package hal defines the Hardware Abstraction Layer interface for the
// softmcu time driver.
//
// The HAL models the two registers of a conventional microcontroller timer
// block: a free-running monotonic counter and a compare (alarm) register
// that raises an interrupt when the counter reaches it. Platform vendors
// implement [Counter] to enable the time driver on their hardware; the
// [github.com/ardnew/softmcu/timer/hal/sim] package provides a manually
// advanced counter for deterministic tests, and
// [github.com/ardnew/softmcu/timer/hal/clock] provides a wall-clock backed
// counter for running on a host.
package hal
