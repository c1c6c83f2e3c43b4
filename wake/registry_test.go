package wake

import (
	"errors"
	"sync"
	"testing"

	"github.com/ardnew/softmcu/pkg"
)

func TestRegisterAssignsAscendingSlots(t *testing.T) {
	r := NewRegistry()
	for want := TaskID(0); want < 4; want++ {
		id, err := r.Register()
		if err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if id != want {
			t.Errorf("Register() = %d, want %d", id, want)
		}
	}
}

func TestRegisterCapacity(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxTasks; i++ {
		if _, err := r.Register(); err != nil {
			t.Fatalf("Register() #%d error = %v", i, err)
		}
	}
	if _, err := r.Register(); !errors.Is(err, pkg.ErrTableFull) {
		t.Errorf("Register() beyond capacity error = %v, want %v", err, pkg.ErrTableFull)
	}
}

func TestMarkReadyIdempotent(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Register()

	r.MarkReady(id)
	r.MarkReady(id)
	r.MarkReady(id)

	set := r.TakeReadySet()
	if set.Count() != 1 {
		t.Errorf("TakeReadySet() count = %d, want 1", set.Count())
	}
	if !set.Contains(id) {
		t.Errorf("TakeReadySet() missing task %d", id)
	}
}

func TestTakeReadySetDrains(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register()
	b, _ := r.Register()

	r.MarkReady(a)
	r.MarkReady(b)

	first := r.TakeReadySet()
	if first.Count() != 2 {
		t.Fatalf("first drain count = %d, want 2", first.Count())
	}
	second := r.TakeReadySet()
	if !second.Empty() {
		t.Errorf("second drain = %v, want empty", second)
	}
}

// Every mark must be reflected in exactly one drain: no loss, no duplication.
func TestMarkDrainExactlyOnce(t *testing.T) {
	r := NewRegistry()
	var ids [8]TaskID
	for i := range ids {
		ids[i], _ = r.Register()
	}

	const marksPerTask = 1000
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id TaskID) {
			defer wg.Done()
			for i := 0; i < marksPerTask; i++ {
				r.MarkReady(id)
			}
		}(id)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	// Drain concurrently with marking. Track per-task drain observations;
	// a mark concurrent with a drain must land in exactly one drain.
	seen := make(map[TaskID]int)
	for {
		set := r.TakeReadySet()
		for {
			id, ok := set.Next()
			if !ok {
				break
			}
			seen[id]++
		}
		select {
		case <-done:
			// One final drain picks up any marks that raced the last one.
			final := r.TakeReadySet()
			for {
				id, ok := final.Next()
				if !ok {
					break
				}
				seen[id]++
			}
			for _, id := range ids {
				if seen[id] == 0 {
					t.Errorf("task %d never drained", id)
				}
			}
			if !r.TakeReadySet().Empty() {
				t.Error("drain after quiescence is non-empty")
			}
			return
		default:
		}
	}
}

func TestRetireMakesWakeNoOp(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Register()
	w := r.Waker(id)

	r.Retire(id)
	w.Wake()

	if set := r.TakeReadySet(); !set.Empty() {
		t.Errorf("drain after retired wake = %v, want empty", set)
	}
}

func TestRetireMasksPendingMark(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Register()

	r.MarkReady(id)
	r.Retire(id)

	if set := r.TakeReadySet(); set.Contains(id) {
		t.Errorf("retired task %d reported ready", id)
	}
}

func TestNotifyNoLostWake(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Register()

	// Empty drain, then a mark arriving before the executor sleeps must
	// leave a token so the sleep does not block forever.
	if set := r.TakeReadySet(); !set.Empty() {
		t.Fatalf("unexpected ready set %v", set)
	}
	r.MarkReady(id)

	select {
	case <-r.Notify():
	default:
		t.Fatal("no notify token after mark")
	}
	if set := r.TakeReadySet(); !set.Contains(id) {
		t.Errorf("ready set missing task %d after notify", id)
	}
}

func TestZeroWakerIsNoOp(t *testing.T) {
	var w Waker
	w.Wake() // must not panic
	if w.Valid() {
		t.Error("zero waker reports valid")
	}
}

func TestReadySetNextAscending(t *testing.T) {
	r := NewRegistry()
	var ids []TaskID
	for i := 0; i < 5; i++ {
		id, _ := r.Register()
		ids = append(ids, id)
	}
	// Mark out of order; iteration must be ascending.
	r.MarkReady(ids[3])
	r.MarkReady(ids[0])
	r.MarkReady(ids[4])

	set := r.TakeReadySet()
	var got []TaskID
	for {
		id, ok := set.Next()
		if !ok {
			break
		}
		got = append(got, id)
	}
	want := []TaskID{ids[0], ids[3], ids[4]}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("drain order[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	id, _ := r.Register()

	r.MarkReady(id)
	r.MarkReady(id) // collapses; only one wake counted
	r.TakeReadySet()

	s := r.Stats()
	if s.Wakes != 1 {
		t.Errorf("Stats().Wakes = %d, want 1", s.Wakes)
	}
	if s.Drains != 1 {
		t.Errorf("Stats().Drains = %d, want 1", s.Drains)
	}
}
