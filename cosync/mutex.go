package cosync

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer"
)

// Mutex guards a value of type T with cooperative mutual exclusion.
// Suspended waiters acquire in FIFO order: an unlock hands the lock
// directly to the oldest waiter, so a late TryLock cannot barge past it.
type Mutex[T any] struct {
	mu      sync.Mutex
	value   T
	locked  bool
	waiters waitq
}

// NewMutex creates a mutex guarding the given initial value.
func NewMutex[T any](value T) *Mutex[T] {
	return &Mutex[T]{value: value}
}

// TryLock acquires the mutex without suspending. On success it returns
// the guarded value and true; the caller must Unlock.
func (m *Mutex[T]) TryLock() (*T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, false
	}
	m.locked = true
	return &m.value, true
}

// Lock acquires the mutex, suspending the calling task while it is held
// elsewhere. On success it returns the guarded value; the caller must
// Unlock. Returns ErrWaitersFull if the waiter queue is at capacity and
// ErrCancelled if the task is cancelled while waiting.
func (m *Mutex[T]) Lock(tc TaskContext) (*T, error) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return &m.value, nil
	}
	w := &waiter{waker: tc.Waker()}
	if err := m.waiters.push(w); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	for {
		err := tc.Suspend()
		m.mu.Lock()
		if w.granted {
			m.mu.Unlock()
			if err != nil {
				// The grant arrived while the task was being cancelled.
				// Pass it on so the lock is not lost.
				m.Unlock()
				return nil, err
			}
			return &m.value, nil
		}
		if err != nil {
			m.waiters.remove(w)
			m.mu.Unlock()
			return nil, err
		}
		m.mu.Unlock()
	}
}

// LockTimeout is Lock bounded by a deadline d ticks from now. Exactly one
// of acquisition and timeout wins; the loser's registration (waiter slot
// or alarm) is retracted before returning. Returns ErrTimeout if the
// deadline passes first.
func (m *Mutex[T]) LockTimeout(tc TaskContext, drv *timer.Driver, d uint32) (*T, error) {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return &m.value, nil
	}
	w := &waiter{waker: tc.Waker()}
	if err := m.waiters.push(w); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.mu.Unlock()

	deadline := drv.Now().Add(d)
	h, err := drv.Schedule(deadline, tc.Waker())
	if err != nil {
		m.mu.Lock()
		m.waiters.remove(w)
		m.mu.Unlock()
		return nil, err
	}

	for {
		err := tc.Suspend()
		m.mu.Lock()
		if w.granted {
			m.mu.Unlock()
			drv.Cancel(h)
			if err != nil {
				m.Unlock()
				return nil, err
			}
			return &m.value, nil
		}
		if err != nil {
			m.waiters.remove(w)
			m.mu.Unlock()
			drv.Cancel(h)
			return nil, err
		}
		if timer.TickReached(drv.Now(), deadline) {
			m.waiters.remove(w)
			m.mu.Unlock()
			return nil, pkg.ErrTimeout
		}
		m.mu.Unlock()
	}
}

// Unlock releases the mutex. If tasks are waiting, the oldest waiter
// receives the lock directly and is woken; otherwise the mutex becomes
// free. Unlocking a free mutex faults.
func (m *Mutex[T]) Unlock() {
	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		pkg.Fault(pkg.ComponentSync, "unlock of unlocked mutex")
		return
	}
	w := m.waiters.pop()
	if w == nil {
		m.locked = false
		m.mu.Unlock()
		return
	}
	w.granted = true
	m.mu.Unlock()
	w.waker.Wake()
}
