package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/wake"
)

// State is the lifecycle state of a task slot.
type State uint8

// Task states.
const (
	StateWaiting   State = iota // Suspended, waiting for a wake
	StateReady                  // Marked ready, not yet polled
	StateRunning                // Currently polled by the dispatcher
	StateCompleted              // Finished; never rescheduled
)

// String returns a string representation of the task state.
func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Func is a task entry point. It runs cooperatively: it must reach a
// suspension point (or return) in bounded time. A non-nil return is a task
// fault; it is logged and the task is marked Completed.
type Func func(tc *Context) error

// yield carries control from a task goroutine back to the dispatcher.
type yield struct {
	completed bool
	err       error
}

// slot is the dispatcher-side record of one registered task.
type slot struct {
	id   wake.TaskID
	name string
	fn   Func

	state   State // owned by the dispatcher
	started bool

	cancelled atomic.Bool

	resume chan struct{} // dispatcher -> task
	yield  chan yield    // task -> dispatcher
}

// Executor is the cooperative scheduler. It owns a fixed table of task
// slots and the wake registry the rest of the runtime wakes tasks through.
type Executor struct {
	registry *wake.Registry

	mu    sync.Mutex
	slots [wake.MaxTasks]*slot
	count int

	running atomic.Bool

	polls       atomic.Uint64
	completions atomic.Uint64
	faults      atomic.Uint64
}

// New creates an executor with an empty task table and a fresh wake
// registry.
func New() *Executor {
	return &Executor{registry: wake.NewRegistry()}
}

// Registry returns the executor's wake registry. Interrupt sources and
// primitives wake tasks through it.
func (e *Executor) Registry() *wake.Registry {
	return e.registry
}

// Register adds a task to the table and marks it ready for its first
// poll. The task list is fixed before start: registering on a running
// executor returns ErrAlreadyRunning, and a full table returns
// ErrTableFull.
func (e *Executor) Register(name string, fn Func) (wake.TaskID, error) {
	if e.running.Load() {
		return 0, pkg.ErrAlreadyRunning
	}
	if fn == nil {
		return 0, pkg.ErrInvalidParameter
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.registry.Register()
	if err != nil {
		return 0, err
	}
	s := &slot{
		id:     id,
		name:   name,
		fn:     fn,
		state:  StateReady,
		resume: make(chan struct{}),
		yield:  make(chan yield),
	}
	e.slots[id] = s
	e.count++

	e.registry.MarkReady(id)
	pkg.LogDebug(pkg.ComponentExecutor, "task registered",
		"task", id,
		"name", name)
	return id, nil
}

// State returns the current state of a task slot. Callers outside the
// dispatcher should only rely on it between stepping calls.
func (e *Executor) State(id wake.TaskID) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[id]
	if s == nil {
		return StateCompleted
	}
	return s.state
}

// Remaining returns the number of registered tasks not yet Completed.
func (e *Executor) Remaining() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := 0; i < wake.MaxTasks; i++ {
		if s := e.slots[i]; s != nil && s.state != StateCompleted {
			n++
		}
	}
	return n
}

// Cancel drops a suspended task. The task is woken one final time; its
// next suspension point returns ErrCancelled so the body unwinds and the
// slot completes. Outstanding wakers targeting the task become no-ops once
// the slot retires. Cancelling a completed or unknown task is a no-op.
func (e *Executor) Cancel(id wake.TaskID) {
	e.mu.Lock()
	s := e.slots[id]
	e.mu.Unlock()
	if s == nil || s.state == StateCompleted {
		return
	}
	s.cancelled.Store(true)
	e.registry.MarkReady(id)
	pkg.LogDebug(pkg.ComponentExecutor, "task cancelled", "task", id)
}

// RunUntilIdle drains ready sets and polls ready tasks, in ascending slot
// order, until no task is ready. It returns the number of polls performed.
// This is the deterministic stepper: interleave it with interrupt sources
// (advancing a simulated counter, injecting bus events) for reproducible
// tests.
func (e *Executor) RunUntilIdle() int {
	total := 0
	for {
		set := e.registry.TakeReadySet()
		if set.Empty() {
			return total
		}
		for {
			id, ok := set.Next()
			if !ok {
				break
			}
			e.mu.Lock()
			s := e.slots[id]
			e.mu.Unlock()
			if s == nil || s.state == StateCompleted {
				continue
			}
			e.poll(s)
			total++
		}
	}
}

// Run polls ready tasks until every registered task is Completed or ctx
// is done. When the ready set is empty it halts on the registry's notify
// channel until the next wake.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return pkg.ErrAlreadyRunning
	}
	defer e.running.Store(false)

	pkg.LogInfo(pkg.ComponentExecutor, "executor started", "tasks", e.count)
	for {
		e.RunUntilIdle()
		if e.Remaining() == 0 {
			pkg.LogInfo(pkg.ComponentExecutor, "all tasks completed")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.registry.Notify():
			// A ready flag was set after the last drain; loop and poll.
		}
	}
}

// poll runs one task until its next suspension point or completion.
func (e *Executor) poll(s *slot) {
	if s.state == StateRunning {
		pkg.Fault(pkg.ComponentExecutor, fmt.Sprintf("double poll of task %d (%s)", s.id, s.name))
		return
	}
	if !s.started {
		s.started = true
		go e.taskMain(s)
	}

	e.setState(s, StateRunning)
	e.polls.Add(1)
	s.resume <- struct{}{}
	y := <-s.yield

	if !y.completed {
		e.setState(s, StateWaiting)
		return
	}

	e.setState(s, StateCompleted)
	e.registry.Retire(s.id)
	e.completions.Add(1)
	switch {
	case y.err == nil:
		pkg.LogDebug(pkg.ComponentExecutor, "task completed",
			"task", s.id,
			"name", s.name)
	case s.cancelled.Load():
		pkg.LogDebug(pkg.ComponentExecutor, "cancelled task unwound",
			"task", s.id,
			"name", s.name)
	default:
		e.faults.Add(1)
		pkg.LogError(pkg.ComponentExecutor, "task faulted",
			"task", s.id,
			"name", s.name,
			"error", y.err)
	}
}

func (e *Executor) setState(s *slot, st State) {
	e.mu.Lock()
	s.state = st
	e.mu.Unlock()
}

// taskMain is the dedicated goroutine for one task. It waits for the
// first poll, runs the body with panic containment, and reports
// completion.
func (e *Executor) taskMain(s *slot) {
	<-s.resume

	tc := &Context{exec: e, slot: s}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		return s.fn(tc)
	}()

	s.yield <- yield{completed: true, err: err}
}

// Stats is a point-in-time snapshot of executor activity.
type Stats struct {
	Tasks       int    // registered tasks
	Remaining   int    // tasks not yet Completed
	Polls       uint64 // task polls performed
	Completions uint64 // tasks that reached Completed
	Faults      uint64 // tasks completed by fault (error or panic)
}

// Stats returns a snapshot of executor activity counters.
func (e *Executor) Stats() Stats {
	e.mu.Lock()
	tasks := e.count
	e.mu.Unlock()
	return Stats{
		Tasks:       tasks,
		Remaining:   e.Remaining(),
		Polls:       e.polls.Load(),
		Completions: e.completions.Load(),
		Faults:      e.faults.Load(),
	}
}
