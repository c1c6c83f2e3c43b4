package executor

import (
	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/wake"
)

// Context is the handle a task uses to interact with its executor. It is
// valid only inside the task body it was passed to and only while that
// task is being polled.
type Context struct {
	exec *Executor
	slot *slot
}

// ID returns the task's slot index.
func (tc *Context) ID() wake.TaskID {
	return tc.slot.id
}

// Name returns the name the task was registered under.
func (tc *Context) Name() string {
	return tc.slot.name
}

// Executor returns the executor this task runs on.
func (tc *Context) Executor() *Executor {
	return tc.exec
}

// Waker returns a waker targeting this task. Wakers are plain values:
// copy them freely, hand them to interrupt handlers and primitives, and
// invoke them from any goroutine.
func (tc *Context) Waker() wake.Waker {
	return tc.exec.registry.Waker(tc.slot.id)
}

// Suspend parks the task until its waker fires. Control returns to the
// dispatcher; the task is re-polled on the pass after something calls the
// waker. Callers must arrange a wake source before suspending, and must
// re-check their wait condition afterward: a wake guarantees a poll, not
// that the condition holds.
//
// Returns ErrCancelled if the task was cancelled; the body should unwind
// and return.
func (tc *Context) Suspend() error {
	if tc.slot.cancelled.Load() {
		return pkg.ErrCancelled
	}
	tc.slot.yield <- yield{}
	<-tc.slot.resume
	if tc.slot.cancelled.Load() {
		return pkg.ErrCancelled
	}
	return nil
}

// Yield suspends the task but marks it ready again immediately, giving
// every other ready task a chance to run before this one is re-polled.
func (tc *Context) Yield() error {
	tc.Waker().Wake()
	return tc.Suspend()
}
