package wake

import (
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softmcu/pkg"
)

// MaxTasks is the registry capacity. Task identifiers are slot indices in
// the range [0, MaxTasks).
const MaxTasks = 32

// TaskID identifies a registered task slot.
type TaskID uint8

// Registry is a fixed-capacity table of per-task ready flags.
//
// MarkReady is safe from any goroutine, including interrupt context.
// TakeReadySet must only be called by the executor that owns the registry.
type Registry struct {
	ready atomic.Uint32 // one ready bit per slot
	live  atomic.Uint32 // slots registered and not retired

	// notify carries at most one pending token for the executor's
	// low-power wait. MarkReady sets the ready bit before sending.
	notify chan struct{}

	// regMutex serializes Register/Retire (setup and teardown paths).
	regMutex sync.Mutex

	// Observability counters.
	wakes  atomic.Uint64
	drains atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{notify: make(chan struct{}, 1)}
}

// Register allocates the lowest free slot and returns its identifier.
// Returns ErrTableFull when all MaxTasks slots are in use.
func (r *Registry) Register() (TaskID, error) {
	r.regMutex.Lock()
	defer r.regMutex.Unlock()

	live := r.live.Load()
	if live == ^uint32(0) {
		return 0, pkg.ErrTableFull
	}
	id := TaskID(bits.TrailingZeros32(^live))
	r.live.Store(live | 1<<id)

	pkg.LogDebug(pkg.ComponentWake, "task slot registered", "task", id)
	return id, nil
}

// Retire permanently disables a slot. Subsequent wakes targeting it are
// no-ops and it is never reported ready again. The slot is not reused.
func (r *Registry) Retire(id TaskID) {
	r.regMutex.Lock()
	defer r.regMutex.Unlock()

	for {
		live := r.live.Load()
		if r.live.CompareAndSwap(live, live&^(1<<id)) {
			break
		}
	}
	pkg.LogDebug(pkg.ComponentWake, "task slot retired", "task", id)
}

// MarkReady sets the ready flag for a task. It is idempotent, safe from
// interrupt context, and a no-op for retired slots. Multiple marks before
// the next drain collapse to one.
func (r *Registry) MarkReady(id TaskID) {
	if id >= MaxTasks || r.live.Load()&(1<<id) == 0 {
		return
	}

	bit := uint32(1) << id
	for {
		ready := r.ready.Load()
		if ready&bit != 0 {
			break // already marked; still signal below
		}
		if r.ready.CompareAndSwap(ready, ready|bit) {
			r.wakes.Add(1)
			break
		}
	}

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// TakeReadySet atomically drains and returns all currently-ready task
// identifiers, clearing their flags. Marks racing the drain are either
// included or survive to the next drain.
func (r *Registry) TakeReadySet() ReadySet {
	r.drains.Add(1)
	return ReadySet(r.ready.Swap(0) & r.live.Load())
}

// Notify returns the executor's wake channel. A token is available whenever
// a mark occurred since the channel was last drained; the executor must
// re-check TakeReadySet after receiving.
func (r *Registry) Notify() <-chan struct{} {
	return r.notify
}

// Waker returns a waker bound to the given slot.
func (r *Registry) Waker(id TaskID) Waker {
	return Waker{registry: r, id: id}
}

// Stats is a point-in-time snapshot of registry activity.
type Stats struct {
	Wakes  uint64 // marks that set a previously-clear ready flag
	Drains uint64 // TakeReadySet calls
}

// Stats returns a snapshot of registry activity counters.
func (r *Registry) Stats() Stats {
	return Stats{
		Wakes:  r.wakes.Load(),
		Drains: r.drains.Load(),
	}
}

// ReadySet is a drained set of ready task identifiers.
type ReadySet uint32

// Empty returns true if no task is ready.
func (s ReadySet) Empty() bool {
	return s == 0
}

// Count returns the number of ready tasks.
func (s ReadySet) Count() int {
	return bits.OnesCount32(uint32(s))
}

// Contains returns true if the given task is in the set.
func (s ReadySet) Contains(id TaskID) bool {
	return id < MaxTasks && s&(1<<id) != 0
}

// Next removes and returns the lowest task identifier in the set.
// The second return is false when the set is empty. Ascending-index
// iteration is the executor's documented scheduling order.
func (s *ReadySet) Next() (TaskID, bool) {
	if *s == 0 {
		return 0, false
	}
	id := TaskID(bits.TrailingZeros32(uint32(*s)))
	*s &^= 1 << id
	return id, true
}

// Waker marks one specific task ready. The zero value is a no-op.
// Wakers are safe to copy, store, and call from interrupt context.
type Waker struct {
	registry *Registry
	id       TaskID
}

// Wake marks the waker's task ready. Idempotent; a no-op for the zero
// waker or a retired task.
func (w Waker) Wake() {
	if w.registry != nil {
		w.registry.MarkReady(w.id)
	}
}

// ID returns the task identifier this waker targets.
func (w Waker) ID() TaskID {
	return w.id
}

// Valid returns true if the waker is bound to a registry.
func (w Waker) Valid() bool {
	return w.registry != nil
}
