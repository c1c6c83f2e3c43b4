// Package executor implements the softmcu cooperative scheduler.
//
// The executor multiplexes a fixed set of tasks onto one logical core.
// Exactly one task executes at a time and runs until it voluntarily
// suspends; there is no preemption between tasks. Interrupt handlers may
// run at any time but communicate with tasks only through the wake
// registry.
//
// # Task Model
//
// A task is a [Func] registered before the executor starts. Each task gets
// a stable slot index in the wake registry and a [Context] handle through
// which it suspends. Following the thread-plus-channel translation of
// await-style control flow, every task body runs on a dedicated goroutine
// lock-stepped with the dispatcher: the dispatcher resumes one task, the
// task runs to its next suspension point or to completion, and control
// returns to the dispatcher. The goroutines are an implementation detail;
// observable scheduling is single-core cooperative.
//
// # Scheduling Policy
//
// There are no priorities. Each pass drains the ready set and polls every
// ready task exactly once, in ascending slot order (the documented
// deterministic order). When the ready set is empty the dispatcher blocks
// on the registry's notify channel, the analogue of a wait-for-interrupt
// instruction; the time driver's compare-match interrupt provides deadline
// wake-ups. The ready flag is always set before the notify token, and the
// dispatcher re-checks the flags before blocking, so no wake is lost
// between the ready-set check and the halt.
//
// # Faults
//
// A panicking task is recovered, logged, and marked Completed; the rest of
// the system keeps running. Corruption of scheduler invariants (a poll of
// a task that is already running) is fatal and routes to [pkg.Fault].
package executor
