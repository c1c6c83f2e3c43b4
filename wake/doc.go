// Package wake implements the wake registry: the synchronization boundary
// between interrupt context and cooperative tasks.
//
// The registry is a fixed-capacity table of per-task ready flags packed
// into a single atomic word. Interrupt handlers mark tasks ready through
// [Waker.Wake]; the executor drains the ready set with
// [Registry.TakeReadySet]. Marking is a single atomic read-modify-write
// (release) and draining is a single atomic swap (acquire), so a mark that
// races a drain is either included in that drain or survives into the next
// one; it is never lost and never observed twice.
//
// # Interrupt-to-Task Handoff
//
// A mark always sets the ready flag before signalling the notify channel,
// and the executor always re-checks the flags before sleeping on that
// channel. This orders the "halt" against interrupt delivery so a wake
// arriving between the executor's ready-set check and its sleep cannot be
// missed.
//
// # Cancellation
//
// [Registry.Retire] permanently disables a slot. A [Waker] targeting a
// retired slot is a safe no-op, which makes dropping a suspended task's
// continuation safe even with wakers still outstanding.
package wake
