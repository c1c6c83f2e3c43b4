// Package clock provides a wall-clock backed counter implementing
// [hal.Counter] for running the softmcu runtime on a host.
//
// The counter derives its value from the host monotonic clock at a tick
// period fixed at construction time, and schedules compare-match interrupts
// with [time.AfterFunc]. It is intended for examples and soak tests, not
// for deterministic unit tests; use
// [github.com/ardnew/softmcu/timer/hal/sim] for those.
package clock
