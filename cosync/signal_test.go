package cosync_test

import (
	"errors"
	"testing"

	"github.com/ardnew/softmcu/cosync"
	"github.com/ardnew/softmcu/executor"
	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer"
	"github.com/ardnew/softmcu/timer/hal/sim"
)

func TestSignalBuffersOneValue(t *testing.T) {
	s := cosync.NewSignal[int]()

	if _, ok := s.TryTake(); ok {
		t.Error("TryTake on empty signal succeeded")
	}

	s.Signal(1)
	v, ok := s.TryTake()
	if !ok || v != 1 {
		t.Errorf("TryTake = %d,%v, want 1,true", v, ok)
	}
	if _, ok := s.TryTake(); ok {
		t.Error("value delivered twice")
	}
}

func TestSignalOverwrite(t *testing.T) {
	s := cosync.NewSignal[int]()
	s.Signal(1)
	s.Signal(2)
	s.Signal(3)

	v, ok := s.TryTake()
	if !ok || v != 3 {
		t.Errorf("TryTake = %d,%v, want latest value 3,true", v, ok)
	}
}

func TestSignalReset(t *testing.T) {
	s := cosync.NewSignal[int]()
	s.Signal(7)
	s.Reset()
	if _, ok := s.TryTake(); ok {
		t.Error("TryTake after Reset succeeded")
	}
}

func TestSignalWaitSuspends(t *testing.T) {
	s := cosync.NewSignal[int]()
	e := executor.New()

	var got int
	id, err := e.Register("waiter", func(tc *executor.Context) error {
		v, err := s.Wait(tc)
		if err != nil {
			return err
		}
		got = v
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()
	if e.State(id) != executor.StateWaiting {
		t.Fatal("waiter did not park on empty signal")
	}

	s.Signal(9)
	e.RunUntilIdle()

	if e.State(id) != executor.StateCompleted {
		t.Fatal("waiter not woken by Signal")
	}
	if got != 9 {
		t.Errorf("received %d, want 9", got)
	}
}

func TestSignalWaitPresentValue(t *testing.T) {
	s := cosync.NewSignal[int]()
	s.Signal(5)
	e := executor.New()

	id, err := e.Register("waiter", func(tc *executor.Context) error {
		v, err := s.Wait(tc)
		if err != nil {
			return err
		}
		if v != 5 {
			t.Errorf("received %d, want 5", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()
	if e.State(id) != executor.StateCompleted {
		t.Error("waiter suspended despite a buffered value")
	}
}

func TestSignalSecondWaiterBusy(t *testing.T) {
	s := cosync.NewSignal[int]()
	e := executor.New()

	if _, err := e.Register("first", func(tc *executor.Context) error {
		_, err := s.Wait(tc)
		return err
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	var got error
	if _, err := e.Register("second", func(tc *executor.Context) error {
		_, got = s.Wait(tc)
		if errors.Is(got, pkg.ErrBusy) {
			return nil
		}
		return got
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	e.RunUntilIdle()

	if !errors.Is(got, pkg.ErrBusy) {
		t.Errorf("second Wait: got %v, want ErrBusy", got)
	}

	s.Signal(1)
	e.RunUntilIdle()
	if e.Remaining() != 0 {
		t.Error("first waiter not released")
	}
}

func TestSignalWaitCancelled(t *testing.T) {
	s := cosync.NewSignal[int]()
	e := executor.New()

	var got error
	id, err := e.Register("waiter", func(tc *executor.Context) error {
		_, got = s.Wait(tc)
		return got
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	e.RunUntilIdle()

	e.Cancel(id)
	e.RunUntilIdle()

	if !errors.Is(got, pkg.ErrCancelled) {
		t.Errorf("Wait after cancel: got %v, want ErrCancelled", got)
	}

	// The waiter slot is free again for another task.
	e2 := executor.New()
	done := false
	if _, err := e2.Register("next", func(tc *executor.Context) error {
		_, err := s.Wait(tc)
		done = err == nil
		return err
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e2.RunUntilIdle()
	s.Signal(1)
	e2.RunUntilIdle()
	if !done {
		t.Error("waiter slot not released by cancellation")
	}
}

func TestSignalWaitTimeout(t *testing.T) {
	c := sim.New(0)
	drv := timer.NewDriver(c)
	s := cosync.NewSignal[int]()
	e := executor.New()

	var got error
	if _, err := e.Register("bounded", func(tc *executor.Context) error {
		_, got = s.WaitTimeout(tc, drv, 100)
		if errors.Is(got, pkg.ErrTimeout) {
			return nil
		}
		return got
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e.RunUntilIdle()

	c.Advance(100)
	e.RunUntilIdle()

	if !errors.Is(got, pkg.ErrTimeout) {
		t.Errorf("WaitTimeout: got %v, want ErrTimeout", got)
	}
	if pending := drv.Stats().Pending; pending != 0 {
		t.Errorf("stale alarm after timeout: Pending = %d", pending)
	}

	// The waiter registration was retracted; a later Signal just buffers.
	s.Signal(3)
	if v, ok := s.TryTake(); !ok || v != 3 {
		t.Errorf("TryTake = %d,%v, want 3,true", v, ok)
	}
}

func TestSignalWaitTimeoutDeliveryWins(t *testing.T) {
	c := sim.New(0)
	drv := timer.NewDriver(c)
	s := cosync.NewSignal[int]()
	e := executor.New()

	var got int
	if _, err := e.Register("bounded", func(tc *executor.Context) error {
		v, err := s.WaitTimeout(tc, drv, 100)
		if err != nil {
			return err
		}
		got = v
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	e.RunUntilIdle()

	c.Advance(50)
	s.Signal(8)
	e.RunUntilIdle()

	if got != 8 {
		t.Errorf("received %d, want 8", got)
	}
	if pending := drv.Stats().Pending; pending != 0 {
		t.Errorf("alarm not retracted after delivery: Pending = %d", pending)
	}
}
