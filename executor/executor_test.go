package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/wake"
)

func TestRegisterCapacity(t *testing.T) {
	e := New()
	noop := func(tc *Context) error { return nil }

	for i := 0; i < wake.MaxTasks; i++ {
		if _, err := e.Register("t", noop); err != nil {
			t.Fatalf("Register %d: unexpected error: %v", i, err)
		}
	}
	if _, err := e.Register("overflow", noop); !errors.Is(err, pkg.ErrTableFull) {
		t.Errorf("Register past capacity: got %v, want ErrTableFull", err)
	}
}

func TestRegisterNilFunc(t *testing.T) {
	e := New()
	if _, err := e.Register("nil", nil); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Register(nil): got %v, want ErrInvalidParameter", err)
	}
}

func TestRunToCompletion(t *testing.T) {
	e := New()
	ran := false
	id, err := e.Register("once", func(tc *Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	if !ran {
		t.Error("task body did not run")
	}
	if got := e.State(id); got != StateCompleted {
		t.Errorf("State: got %v, want completed", got)
	}
	if got := e.Remaining(); got != 0 {
		t.Errorf("Remaining: got %d, want 0", got)
	}
}

func TestRunToSuspension(t *testing.T) {
	e := New()
	steps := 0
	id, err := e.Register("stepper", func(tc *Context) error {
		for i := 0; i < 3; i++ {
			steps++
			if err := tc.Suspend(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// First poll runs to the first suspension point, and only there.
	e.RunUntilIdle()
	if steps != 1 {
		t.Fatalf("after first poll: steps = %d, want 1", steps)
	}
	if got := e.State(id); got != StateWaiting {
		t.Fatalf("State: got %v, want waiting", got)
	}

	// Without a wake the task is never re-polled.
	if polls := e.RunUntilIdle(); polls != 0 {
		t.Fatalf("idle pass polled %d tasks, want 0", polls)
	}
	if steps != 1 {
		t.Fatalf("task advanced without a wake: steps = %d", steps)
	}

	// Each wake buys exactly one poll.
	w := e.Registry().Waker(id)
	w.Wake()
	e.RunUntilIdle()
	if steps != 2 {
		t.Fatalf("after second poll: steps = %d, want 2", steps)
	}

	w.Wake()
	e.RunUntilIdle()
	w.Wake()
	e.RunUntilIdle()
	if got := e.State(id); got != StateCompleted {
		t.Errorf("State: got %v, want completed", got)
	}
}

func TestAscendingSlotOrder(t *testing.T) {
	e := New()
	var order []wake.TaskID

	mk := func(name string) Func {
		return func(tc *Context) error {
			order = append(order, tc.ID())
			return nil
		}
	}
	// Register out of the order we expect them polled in; slots are
	// assigned ascending regardless.
	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := e.Register(name, mk(name)); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	e.RunUntilIdle()

	want := []wake.TaskID{0, 1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("polled %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("poll %d: task %d, want %d", i, order[i], want[i])
		}
	}
}

func TestWakeDuringPass(t *testing.T) {
	// A task woken while another task is being polled runs in the same
	// RunUntilIdle call, on a subsequent drain.
	e := New()
	var order []string
	var wakeB wake.Waker

	idA, err := e.Register("a", func(tc *Context) error {
		if err := tc.Suspend(); err != nil {
			return err
		}
		order = append(order, "a")
		wakeB.Wake()
		return nil
	})
	if err != nil {
		t.Fatalf("Register a: %v", err)
	}
	_, err = e.Register("b", func(tc *Context) error {
		wakeB = tc.Waker()
		if err := tc.Suspend(); err != nil {
			return err
		}
		order = append(order, "b")
		return nil
	})
	if err != nil {
		t.Fatalf("Register b: %v", err)
	}

	// Initial polls park both tasks at their suspension points.
	e.RunUntilIdle()

	e.Registry().MarkReady(idA)
	e.RunUntilIdle()

	want := []string{"a", "b"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestPanicContainment(t *testing.T) {
	e := New()
	idPanic, err := e.Register("boom", func(tc *Context) error {
		panic("deliberate")
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ran := false
	idOK, err := e.Register("survivor", func(tc *Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	if got := e.State(idPanic); got != StateCompleted {
		t.Errorf("panicked task state: got %v, want completed", got)
	}
	if !ran {
		t.Error("surviving task did not run after peer panic")
	}
	if got := e.State(idOK); got != StateCompleted {
		t.Errorf("surviving task state: got %v, want completed", got)
	}
	if got := e.Stats().Faults; got != 1 {
		t.Errorf("Stats.Faults: got %d, want 1", got)
	}
}

func TestCancelUnwindsTask(t *testing.T) {
	e := New()
	var got error
	cleanedUp := false
	id, err := e.Register("victim", func(tc *Context) error {
		defer func() { cleanedUp = true }()
		got = tc.Suspend()
		return got
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()
	if e.State(id) != StateWaiting {
		t.Fatalf("task not parked before cancel")
	}

	e.Cancel(id)
	e.RunUntilIdle()

	if !errors.Is(got, pkg.ErrCancelled) {
		t.Errorf("Suspend after cancel: got %v, want ErrCancelled", got)
	}
	if !cleanedUp {
		t.Error("deferred cleanup did not run on cancel")
	}
	if e.State(id) != StateCompleted {
		t.Errorf("State: got %v, want completed", e.State(id))
	}

	// Late wakes targeting the retired slot are no-ops.
	e.Registry().Waker(id).Wake()
	if polls := e.RunUntilIdle(); polls != 0 {
		t.Errorf("retired slot polled %d times after late wake", polls)
	}
}

func TestCancelCompletedIsNoop(t *testing.T) {
	e := New()
	id, err := e.Register("done", func(tc *Context) error { return nil })
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	e.RunUntilIdle()
	e.Cancel(id) // must not panic or resurrect the slot
	if polls := e.RunUntilIdle(); polls != 0 {
		t.Errorf("completed slot polled %d times after cancel", polls)
	}
}

func TestYield(t *testing.T) {
	e := New()
	var order []string
	if _, err := e.Register("first", func(tc *Context) error {
		order = append(order, "first-1")
		if err := tc.Yield(); err != nil {
			return err
		}
		order = append(order, "first-2")
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := e.Register("second", func(tc *Context) error {
		order = append(order, "second")
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	want := []string{"first-1", "second", "first-2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunBlocksUntilWake(t *testing.T) {
	e := New()
	released := make(chan struct{})
	id, err := e.Register("gated", func(tc *Context) error {
		if err := tc.Suspend(); err != nil {
			return err
		}
		close(released)
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	// Wake from outside the executor, as an interrupt handler would.
	time.Sleep(10 * time.Millisecond)
	e.Registry().Waker(id).Wake()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("task not released by external wake")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after all tasks completed")
	}
}

func TestRunContextCancel(t *testing.T) {
	e := New()
	if _, err := e.Register("forever", func(tc *Context) error {
		for {
			if err := tc.Suspend(); err != nil {
				return err
			}
		}
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run: got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestRunAlreadyRunning(t *testing.T) {
	e := New()
	id, err := e.Register("parked", func(tc *Context) error {
		return tc.Suspend()
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)

	if err := e.Run(context.Background()); !errors.Is(err, pkg.ErrAlreadyRunning) {
		t.Errorf("second Run: got %v, want ErrAlreadyRunning", err)
	}

	cancel()
	<-done
	_ = id
}

func TestStats(t *testing.T) {
	e := New()
	if _, err := e.Register("a", func(tc *Context) error { return nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := e.Register("b", func(tc *Context) error {
		if err := tc.Suspend(); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	st := e.Stats()
	if st.Tasks != 2 {
		t.Errorf("Tasks: got %d, want 2", st.Tasks)
	}
	if st.Remaining != 1 {
		t.Errorf("Remaining: got %d, want 1", st.Remaining)
	}
	if st.Polls != 2 {
		t.Errorf("Polls: got %d, want 2", st.Polls)
	}
	if st.Completions != 1 {
		t.Errorf("Completions: got %d, want 1", st.Completions)
	}
}

func TestTaskFaultError(t *testing.T) {
	e := New()
	id, err := e.Register("failing", func(tc *Context) error {
		return pkg.ErrProtocol
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	if got := e.State(id); got != StateCompleted {
		t.Errorf("State: got %v, want completed", got)
	}
	if got := e.Stats().Faults; got != 1 {
		t.Errorf("Stats.Faults: got %d, want 1", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateWaiting, "waiting"},
		{StateReady, "ready"},
		{StateRunning, "running"},
		{StateCompleted, "completed"},
		{State(255), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
