package cosync

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/timer"
)

// Channel is a bounded FIFO message queue between tasks. Send suspends
// while the buffer is full, Receive while it is empty. Delivery is
// exactly-once in send order.
//
// TrySend and TryReceive are safe from interrupt context.
type Channel[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int
	count int

	senders   waitq
	receivers waitq
}

// NewChannel creates a channel with the given buffer capacity. Capacity
// must be at least one; there is no rendezvous mode.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		pkg.Fault(pkg.ComponentSync, "channel capacity must be at least 1")
		capacity = 1
	}
	return &Channel[T]{buf: make([]T, capacity)}
}

// Cap returns the buffer capacity.
func (c *Channel[T]) Cap() int {
	return len(c.buf)
}

// Len returns the number of buffered messages.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// TrySend enqueues a message without suspending. Returns ErrQueueFull
// when the buffer is full.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	if c.count == len(c.buf) {
		c.mu.Unlock()
		return pkg.ErrQueueFull
	}
	w := c.enqueueLocked(v)
	c.mu.Unlock()
	if w != nil {
		w.waker.Wake()
	}
	return nil
}

// TryReceive dequeues a message without suspending. The second return is
// false when the buffer is empty.
func (c *Channel[T]) TryReceive() (T, bool) {
	c.mu.Lock()
	if c.count == 0 {
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	v, w := c.dequeueLocked()
	c.mu.Unlock()
	if w != nil {
		w.waker.Wake()
	}
	return v, true
}

// Send enqueues a message, suspending the calling task while the buffer
// is full. Returns ErrWaitersFull if the sender queue is at capacity and
// ErrCancelled if the task is cancelled while waiting.
func (c *Channel[T]) Send(tc TaskContext, v T) error {
	for {
		c.mu.Lock()
		if c.count < len(c.buf) {
			w := c.enqueueLocked(v)
			c.mu.Unlock()
			if w != nil {
				w.waker.Wake()
			}
			return nil
		}
		w := &waiter{waker: tc.Waker()}
		if err := c.senders.push(w); err != nil {
			c.mu.Unlock()
			return err
		}
		c.mu.Unlock()

		err := tc.Suspend()
		c.mu.Lock()
		c.senders.remove(w)
		c.mu.Unlock()
		if err != nil {
			return err
		}
	}
}

// Receive dequeues a message, suspending the calling task while the
// buffer is empty. Returns ErrWaitersFull if the receiver queue is at
// capacity and ErrCancelled if the task is cancelled while waiting.
func (c *Channel[T]) Receive(tc TaskContext) (T, error) {
	var zero T
	for {
		c.mu.Lock()
		if c.count > 0 {
			v, w := c.dequeueLocked()
			c.mu.Unlock()
			if w != nil {
				w.waker.Wake()
			}
			return v, nil
		}
		w := &waiter{waker: tc.Waker()}
		if err := c.receivers.push(w); err != nil {
			c.mu.Unlock()
			return zero, err
		}
		c.mu.Unlock()

		err := tc.Suspend()
		c.mu.Lock()
		c.receivers.remove(w)
		c.mu.Unlock()
		if err != nil {
			return zero, err
		}
	}
}

// ReceiveTimeout is Receive bounded by a deadline d ticks from now.
// Exactly one of delivery and timeout wins; the loser's registration
// (waiter slot or alarm) is retracted. Returns ErrTimeout if the deadline
// passes first.
func (c *Channel[T]) ReceiveTimeout(tc TaskContext, drv *timer.Driver, d uint32) (T, error) {
	var zero T
	deadline := drv.Now().Add(d)
	scheduled := false
	var h timer.AlarmHandle

	for {
		c.mu.Lock()
		if c.count > 0 {
			v, w := c.dequeueLocked()
			c.mu.Unlock()
			if w != nil {
				w.waker.Wake()
			}
			if scheduled {
				drv.Cancel(h)
			}
			return v, nil
		}
		c.mu.Unlock()

		if timer.TickReached(drv.Now(), deadline) {
			return zero, pkg.ErrTimeout
		}

		c.mu.Lock()
		w := &waiter{waker: tc.Waker()}
		if err := c.receivers.push(w); err != nil {
			c.mu.Unlock()
			return zero, err
		}
		c.mu.Unlock()

		if !scheduled {
			var err error
			h, err = drv.Schedule(deadline, tc.Waker())
			if err != nil {
				c.mu.Lock()
				c.receivers.remove(w)
				c.mu.Unlock()
				return zero, err
			}
			scheduled = true
		}

		err := tc.Suspend()
		c.mu.Lock()
		c.receivers.remove(w)
		c.mu.Unlock()
		if err != nil {
			if scheduled {
				drv.Cancel(h)
			}
			return zero, err
		}
	}
}

// enqueueLocked appends v to the ring and pops one receiver to wake.
// Caller holds c.mu and has verified there is space.
func (c *Channel[T]) enqueueLocked(v T) *waiter {
	c.buf[(c.head+c.count)%len(c.buf)] = v
	c.count++
	return c.receivers.pop()
}

// dequeueLocked removes the oldest message and pops one sender to wake.
// Caller holds c.mu and has verified the buffer is non-empty.
func (c *Channel[T]) dequeueLocked() (T, *waiter) {
	v := c.buf[c.head]
	var zero T
	c.buf[c.head] = zero
	c.head = (c.head + 1) % len(c.buf)
	c.count--
	return v, c.senders.pop()
}
