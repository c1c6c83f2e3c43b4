// Package cosync provides synchronization primitives for cooperative
// tasks.
//
// The primitives suspend the calling task instead of blocking a thread: a
// task that cannot make progress parks itself through its [TaskContext]
// and is woken by the peer operation through the wake registry. All of
// them use fixed-capacity waiter storage and never allocate on the
// signal/wake path.
//
//   - [Mutex] guards a value with FIFO handoff among suspended waiters.
//   - [Signal] is a single-slot latest-value cell; a new value overwrites
//     an unconsumed one.
//   - [Channel] is a bounded FIFO with exactly-once delivery.
//
// The non-suspending variants (TryLock, TryTake, TrySend, TryReceive) and
// the producer sides (Unlock on behalf of a grant, Signal, TrySend) are
// safe from interrupt context. The suspending operations must only be
// called from task context.
//
// # Timeouts
//
// LockTimeout, WaitTimeout, and ReceiveTimeout race the operation against
// a time driver alarm. Exactly one side wins: on success the alarm is
// cancelled, on timeout the waiter registration is removed, so neither a
// stale alarm nor a stale waiter slot survives the call.
package cosync
