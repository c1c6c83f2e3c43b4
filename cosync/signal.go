package cosync

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer"
)

// Signal is a single-slot latest-value cell. Signalling with no waiter
// buffers one value; signalling again before it is consumed overwrites
// it. At most one task may wait at a time.
//
// Signal and TryTake are safe from interrupt context.
type Signal[T any] struct {
	mu      sync.Mutex
	value   T
	present bool
	waiter  *waiter
}

// NewSignal creates an empty signal cell.
func NewSignal[T any]() *Signal[T] {
	return &Signal[T]{}
}

// Signal stores a value, replacing any unconsumed one, and wakes the
// waiting task if there is one.
func (s *Signal[T]) Signal(v T) {
	s.mu.Lock()
	s.value = v
	s.present = true
	w := s.waiter
	s.mu.Unlock()
	if w != nil {
		w.waker.Wake()
	}
}

// TryTake consumes the buffered value without suspending. The second
// return is false when no value is present.
func (s *Signal[T]) TryTake() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		var zero T
		return zero, false
	}
	v := s.value
	var zero T
	s.value = zero
	s.present = false
	return v, true
}

// Reset discards any buffered value.
func (s *Signal[T]) Reset() {
	s.mu.Lock()
	var zero T
	s.value = zero
	s.present = false
	s.mu.Unlock()
}

// Wait suspends the calling task until a value is present, then consumes
// it. Returns ErrBusy if another task is already waiting, and
// ErrCancelled if the task is cancelled while waiting.
func (s *Signal[T]) Wait(tc TaskContext) (T, error) {
	var zero T
	v, done, err := s.beginWait(tc)
	if done || err != nil {
		return v, err
	}

	for {
		serr := tc.Suspend()
		s.mu.Lock()
		if s.present {
			v := s.value
			s.value = zero
			s.present = false
			s.waiter = nil
			s.mu.Unlock()
			return v, nil
		}
		if serr != nil {
			s.waiter = nil
			s.mu.Unlock()
			return zero, serr
		}
		s.mu.Unlock()
	}
}

// WaitTimeout is Wait bounded by a deadline d ticks from now. Exactly one
// of delivery and timeout wins; the loser's registration is retracted.
// Returns ErrTimeout if the deadline passes first.
func (s *Signal[T]) WaitTimeout(tc TaskContext, drv *timer.Driver, d uint32) (T, error) {
	var zero T
	v, done, err := s.beginWait(tc)
	if done || err != nil {
		return v, err
	}

	deadline := drv.Now().Add(d)
	h, err := drv.Schedule(deadline, tc.Waker())
	if err != nil {
		s.mu.Lock()
		s.waiter = nil
		s.mu.Unlock()
		return zero, err
	}

	for {
		serr := tc.Suspend()
		s.mu.Lock()
		if s.present {
			v := s.value
			s.value = zero
			s.present = false
			s.waiter = nil
			s.mu.Unlock()
			drv.Cancel(h)
			return v, nil
		}
		if serr != nil {
			s.waiter = nil
			s.mu.Unlock()
			drv.Cancel(h)
			return zero, serr
		}
		if timer.TickReached(drv.Now(), deadline) {
			s.waiter = nil
			s.mu.Unlock()
			return zero, pkg.ErrTimeout
		}
		s.mu.Unlock()
	}
}

// beginWait consumes an already-present value or registers the caller as
// the waiter. done is true when a value was consumed.
func (s *Signal[T]) beginWait(tc TaskContext) (T, bool, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.present {
		v := s.value
		s.value = zero
		s.present = false
		return v, true, nil
	}
	if s.waiter != nil {
		return zero, false, pkg.ErrBusy
	}
	s.waiter = &waiter{waker: tc.Waker()}
	return zero, false, nil
}
