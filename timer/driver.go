package timer

import (
	"sync"
	"sync/atomic"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer/hal"
	"github.com/ardnew/softmcu/wake"
)

// MaxAlarms is the alarm queue capacity.
const MaxAlarms = 32

// AlarmHandle identifies a scheduled alarm for cancellation. Handles are
// never reused within a driver's lifetime.
type AlarmHandle uint32

// alarm is one pending (deadline, waker) pair.
type alarm struct {
	deadline Tick
	waker    wake.Waker
	handle   AlarmHandle
}

// Driver turns a hardware counter into a monotonic tick count and an
// ordered alarm queue.
//
// Schedule and Cancel are safe from task context; OnTimerInterrupt is
// invoked from the compare-match interrupt installed on the counter.
// The queue is guarded by a mutex held only for bounded, non-suspending
// critical sections.
type Driver struct {
	hw hal.Counter

	mu     sync.Mutex
	queue  [MaxAlarms]alarm // ordered by deadline ascending, ties by insertion
	count  int
	nextID AlarmHandle

	scheduled atomic.Uint64
	fired     atomic.Uint64
	cancelled atomic.Uint64
}

// NewDriver creates a time driver over the given counter and installs
// its compare-match interrupt handler.
func NewDriver(hw hal.Counter) *Driver {
	d := &Driver{hw: hw}
	hw.SetHandler(d.OnTimerInterrupt)
	return d
}

// Now returns the current tick. Wait-free; never decreases except by
// wrapping modulo the counter width.
func (d *Driver) Now() Tick {
	return Tick(d.hw.Now())
}

// Schedule inserts an alarm firing the waker at the given deadline.
// A deadline at or before the current tick fires the waker immediately.
// Returns ErrQueueFull when the queue is at capacity.
func (d *Driver) Schedule(deadline Tick, waker wake.Waker) (AlarmHandle, error) {
	now := d.Now()
	if TickReached(now, deadline) {
		d.scheduled.Add(1)
		d.fired.Add(1)
		waker.Wake()
		return 0, nil
	}

	d.mu.Lock()
	if d.count == MaxAlarms {
		d.mu.Unlock()
		return 0, pkg.ErrQueueFull
	}

	d.nextID++
	a := alarm{deadline: deadline, waker: waker, handle: d.nextID}

	// Insert ordered by distance from now; equal deadlines keep insertion
	// order. All queued deadlines are in the future relative to now, so
	// the modulo distance is a total order.
	pos := d.count
	dist := deadline.Sub(now)
	for i := 0; i < d.count; i++ {
		if dist < d.queue[i].deadline.Sub(now) {
			pos = i
			break
		}
	}
	copy(d.queue[pos+1:d.count+1], d.queue[pos:d.count])
	d.queue[pos] = a
	d.count++

	if pos == 0 {
		d.hw.SetCompare(uint32(deadline))
	}
	d.mu.Unlock()

	d.scheduled.Add(1)
	pkg.LogDebug(pkg.ComponentTimer, "alarm scheduled",
		"deadline", uint32(deadline),
		"handle", uint32(a.handle))
	return a.handle, nil
}

// Cancel retracts a pending alarm. Returns true if the alarm was still
// queued, false if it had already fired, been cancelled, or fired
// immediately at schedule time.
func (d *Driver) Cancel(h AlarmHandle) bool {
	if h == 0 {
		return false
	}

	d.mu.Lock()
	for i := 0; i < d.count; i++ {
		if d.queue[i].handle != h {
			continue
		}
		copy(d.queue[i:d.count-1], d.queue[i+1:d.count])
		d.queue[d.count-1] = alarm{}
		d.count--
		if i == 0 {
			d.reprogramLocked()
		}
		d.mu.Unlock()
		d.cancelled.Add(1)
		return true
	}
	d.mu.Unlock()
	return false
}

// NextDeadline returns the nearest pending alarm deadline. The second
// return is false when the queue is empty.
func (d *Driver) NextDeadline() (Tick, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.count == 0 {
		return 0, false
	}
	return d.queue[0].deadline, true
}

// OnTimerInterrupt services the compare-match interrupt: it pops and fires
// every alarm whose deadline has been reached, then reprograms the compare
// register to the next deadline or disables it when the queue is empty.
// Wakers are invoked outside the queue lock.
func (d *Driver) OnTimerInterrupt() {
	var due [MaxAlarms]wake.Waker
	n := 0

	d.mu.Lock()
	now := d.Now()
	for d.count > 0 && TickReached(now, d.queue[0].deadline) {
		due[n] = d.queue[0].waker
		n++
		copy(d.queue[0:d.count-1], d.queue[1:d.count])
		d.queue[d.count-1] = alarm{}
		d.count--
	}
	d.reprogramLocked()
	d.mu.Unlock()

	for i := 0; i < n; i++ {
		due[i].Wake()
	}
	if n > 0 {
		d.fired.Add(uint64(n))
		pkg.LogDebug(pkg.ComponentTimer, "alarms fired",
			"count", n,
			"tick", uint32(now))
	}
}

// reprogramLocked arms the compare register for the queue head, or
// disables it when the queue is empty. Caller holds d.mu.
func (d *Driver) reprogramLocked() {
	if d.count > 0 {
		d.hw.SetCompare(uint32(d.queue[0].deadline))
	} else {
		d.hw.DisableCompare()
	}
}

// Stats is a point-in-time snapshot of driver activity.
type Stats struct {
	Scheduled uint64 // alarms accepted by Schedule
	Fired     uint64 // wakers invoked, including immediate past-deadline fires
	Cancelled uint64 // alarms retracted before firing
	Pending   int    // alarms currently queued
}

// Stats returns a snapshot of driver activity counters.
func (d *Driver) Stats() Stats {
	d.mu.Lock()
	pending := d.count
	d.mu.Unlock()
	return Stats{
		Scheduled: d.scheduled.Load(),
		Fired:     d.fired.Load(),
		Cancelled: d.cancelled.Load(),
		Pending:   pending,
	}
}
