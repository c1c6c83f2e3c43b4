// Package sim provides a manually advanced counter implementing
// [hal.Counter] for deterministic tests.
//
// The counter only moves when [Counter.Advance] is called, and compare-match
// interrupts fire synchronously inside Advance, on the caller's goroutine.
// This makes timer-dependent behavior fully reproducible: a test advances
// the counter, the compare handler runs, wakers fire, and the executor can
// then be stepped to observe the effect.
package sim
