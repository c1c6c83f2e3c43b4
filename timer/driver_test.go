package timer

import (
	"errors"
	"testing"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer/hal/sim"
	"github.com/ardnew/softmcu/wake"
)

// newTestDriver returns a driver over a simulated counter plus a registry
// and a helper minting wakers with observable ready state.
func newTestDriver(t *testing.T, start uint32) (*Driver, *sim.Counter, *wake.Registry) {
	t.Helper()
	c := sim.New(start)
	return NewDriver(c), c, wake.NewRegistry()
}

func newWaker(t *testing.T, r *wake.Registry) wake.Waker {
	t.Helper()
	id, err := r.Register()
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return r.Waker(id)
}

func TestScheduleFiresAtDeadline(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w := newWaker(t, r)

	if _, err := d.Schedule(50, w); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	c.Advance(49)
	if !r.TakeReadySet().Empty() {
		t.Fatal("alarm fired before deadline")
	}

	c.Advance(1)
	if !r.TakeReadySet().Contains(w.ID()) {
		t.Error("alarm did not fire at deadline")
	}
}

func TestScheduleFiresAfterDeadline(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w := newWaker(t, r)

	if _, err := d.Schedule(50, w); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	// One large step overshooting the deadline.
	c.Advance(500)
	if !r.TakeReadySet().Contains(w.ID()) {
		t.Error("alarm did not fire when deadline was overshot")
	}
}

func TestSchedulePastDeadlineFiresImmediately(t *testing.T) {
	d, _, r := newTestDriver(t, 100)
	w := newWaker(t, r)

	h, err := d.Schedule(50, w)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if h != 0 {
		t.Errorf("immediate fire returned handle %d, want 0", h)
	}
	if !r.TakeReadySet().Contains(w.ID()) {
		t.Error("past deadline did not fire immediately")
	}

	// Equal to now is also a fire, not a full-wrap sleep.
	w2 := newWaker(t, r)
	if _, err := d.Schedule(100, w2); err != nil {
		t.Fatalf("Schedule at now: %v", err)
	}
	if !r.TakeReadySet().Contains(w2.ID()) {
		t.Error("deadline equal to now did not fire immediately")
	}
}

func TestScheduleCapacity(t *testing.T) {
	d, _, r := newTestDriver(t, 0)
	w := newWaker(t, r)

	for i := 0; i < MaxAlarms; i++ {
		if _, err := d.Schedule(Tick(100+i), w); err != nil {
			t.Fatalf("Schedule %d: %v", i, err)
		}
	}
	if _, err := d.Schedule(1000, w); !errors.Is(err, pkg.ErrQueueFull) {
		t.Errorf("Schedule past capacity: got %v, want ErrQueueFull", err)
	}

	// Capacity recovers as alarms fire.
	st := d.Stats()
	if st.Pending != MaxAlarms {
		t.Errorf("Pending: got %d, want %d", st.Pending, MaxAlarms)
	}
}

func TestCancelRetractsAlarm(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w := newWaker(t, r)

	h, err := d.Schedule(50, w)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !d.Cancel(h) {
		t.Fatal("Cancel returned false for a queued alarm")
	}

	c.Advance(100)
	if !r.TakeReadySet().Empty() {
		t.Error("cancelled alarm fired")
	}
	if d.Cancel(h) {
		t.Error("second Cancel returned true")
	}
	if d.Cancel(0) {
		t.Error("Cancel(0) returned true")
	}
}

func TestCancelHeadReprograms(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w1 := newWaker(t, r)
	w2 := newWaker(t, r)

	h1, err := d.Schedule(50, w1)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := d.Schedule(80, w2); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	d.Cancel(h1)

	c.Advance(60)
	if !r.TakeReadySet().Empty() {
		t.Fatal("alarm fired before its deadline after head cancel")
	}
	c.Advance(20)
	if !r.TakeReadySet().Contains(w2.ID()) {
		t.Error("second alarm did not fire after head cancel")
	}
}

func TestMultipleAlarmsOneInterrupt(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w1 := newWaker(t, r)
	w2 := newWaker(t, r)
	w3 := newWaker(t, r)

	// Insert out of deadline order.
	if _, err := d.Schedule(70, w3); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := d.Schedule(30, w1); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, err := d.Schedule(50, w2); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	if next, ok := d.NextDeadline(); !ok || next != 30 {
		t.Errorf("NextDeadline: got %d,%v, want 30,true", uint32(next), ok)
	}

	// One step past all three deadlines fires all three.
	c.Advance(100)
	set := r.TakeReadySet()
	for _, w := range []wake.Waker{w1, w2, w3} {
		if !set.Contains(w.ID()) {
			t.Errorf("alarm for task %d did not fire", w.ID())
		}
	}

	st := d.Stats()
	if st.Fired != 3 {
		t.Errorf("Fired: got %d, want 3", st.Fired)
	}
	if st.Pending != 0 {
		t.Errorf("Pending: got %d, want 0", st.Pending)
	}
	if _, ok := d.NextDeadline(); ok {
		t.Error("NextDeadline reported a deadline on an empty queue")
	}
}

func TestWraparound(t *testing.T) {
	const start = 0xFFFFFFF0
	d, c, r := newTestDriver(t, start)
	w := newWaker(t, r)

	// Deadline 32 ticks ahead, landing past the 2^32 boundary at tick 16.
	deadline := d.Now().Add(32)
	if uint32(deadline) != 16 {
		t.Fatalf("deadline = %#x, want 0x10", uint32(deadline))
	}
	if _, err := d.Schedule(deadline, w); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	c.Advance(31)
	if !r.TakeReadySet().Empty() {
		t.Fatal("alarm fired before wrapped deadline")
	}
	c.Advance(1)
	if !r.TakeReadySet().Contains(w.ID()) {
		t.Error("alarm did not fire across the wraparound boundary")
	}
}

func TestStatsCounters(t *testing.T) {
	d, c, r := newTestDriver(t, 0)
	w := newWaker(t, r)

	if _, err := d.Schedule(10, w); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h, err := d.Schedule(20, w)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	d.Cancel(h)
	c.Advance(15)

	st := d.Stats()
	if st.Scheduled != 2 {
		t.Errorf("Scheduled: got %d, want 2", st.Scheduled)
	}
	if st.Fired != 1 {
		t.Errorf("Fired: got %d, want 1", st.Fired)
	}
	if st.Cancelled != 1 {
		t.Errorf("Cancelled: got %d, want 1", st.Cancelled)
	}
	if st.Pending != 0 {
		t.Errorf("Pending: got %d, want 0", st.Pending)
	}
}
