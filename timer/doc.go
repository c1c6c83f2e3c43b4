// Package timer implements the softmcu time driver: the sole source of
// "now" and "wake me at T" for the rest of the runtime.
//
// The driver converts a free-running 32-bit hardware counter (reached
// through [hal.Counter]) into a monotonic [Tick] and a fixed-capacity alarm
// queue ordered by deadline. Tasks schedule wake-ups with
// [Driver.Schedule] or suspend directly with [Driver.Sleep]; the
// compare-match interrupt drives [Driver.OnTimerInterrupt], which fires all
// due alarms and reprograms the compare register to the next deadline.
//
// # Wraparound
//
// Ticks wrap after 2^32 counts. All comparisons use signed 32-bit tick
// distances ([TickReached], [TickBefore]) rather than raw ordering, so a
// deadline within one half counter period of now fires correctly across
// the overflow boundary. Deadlines further out than 2^31 ticks are
// indistinguishable from the past and fire immediately.
//
// # Capacity
//
// The alarm queue never grows. Scheduling into a full queue returns
// [pkg.ErrQueueFull]; it is the caller's capacity error to handle.
package timer
