package cosync

import (
	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/wake"
)

// maxWaiters bounds each primitive's waiter queue. Every task in the
// system can wait on the same primitive at once.
const maxWaiters = wake.MaxTasks

// TaskContext is the slice of the executor task handle the primitives
// need to suspend a task. *executor.Context satisfies it.
type TaskContext interface {
	// Waker returns a waker targeting the calling task.
	Waker() wake.Waker

	// Suspend parks the calling task until its waker fires. It returns
	// ErrCancelled if the task was cancelled while suspended.
	Suspend() error
}

// waiter is one suspended task's registration with a primitive. The
// granted flag is owned by the primitive's lock.
type waiter struct {
	waker   wake.Waker
	granted bool
}

// waitq is a fixed-capacity FIFO of waiter registrations. Not safe for
// concurrent use; callers hold the owning primitive's lock.
type waitq struct {
	entries [maxWaiters]*waiter
	head    int
	count   int
}

// push appends a waiter. Returns ErrWaitersFull at capacity.
func (q *waitq) push(w *waiter) error {
	if q.count == maxWaiters {
		return pkg.ErrWaitersFull
	}
	q.entries[(q.head+q.count)%maxWaiters] = w
	q.count++
	return nil
}

// pop removes and returns the oldest waiter, or nil if the queue is empty.
func (q *waitq) pop() *waiter {
	if q.count == 0 {
		return nil
	}
	w := q.entries[q.head]
	q.entries[q.head] = nil
	q.head = (q.head + 1) % maxWaiters
	q.count--
	return w
}

// remove unlinks a specific waiter, preserving the order of the rest.
// Returns false if the waiter is not queued.
func (q *waitq) remove(w *waiter) bool {
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % maxWaiters
		if q.entries[idx] != w {
			continue
		}
		for j := i; j < q.count-1; j++ {
			q.entries[(q.head+j)%maxWaiters] = q.entries[(q.head+j+1)%maxWaiters]
		}
		q.entries[(q.head+q.count-1)%maxWaiters] = nil
		q.count--
		return true
	}
	return false
}
