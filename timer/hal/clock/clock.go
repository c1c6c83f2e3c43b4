package clock

import (
	"sync"
	"time"
)

// Counter is a hardware counter backed by the host monotonic clock.
// It implements hal.Counter.
type Counter struct {
	period time.Duration
	start  time.Time

	mu      sync.Mutex
	handler func()
	pending *time.Timer
}

// New creates a counter ticking once per period. The counter reads zero
// at the moment of creation.
func New(period time.Duration) *Counter {
	if period <= 0 {
		period = time.Millisecond
	}
	return &Counter{
		period: period,
		start:  time.Now(),
	}
}

// Now returns the number of whole periods elapsed since creation,
// truncated to 32 bits.
func (c *Counter) Now() uint32 {
	return uint32(time.Since(c.start) / c.period)
}

// SetCompare arms a compare-match interrupt at the given counter value.
// The tick distance is computed modulo 2^32, so values that have already
// passed fire (almost) immediately rather than a counter period from now.
func (c *Counter) SetCompare(tick uint32) {
	delta := tick - c.Now() // modulo distance; huge when already past
	wait := time.Duration(delta) * c.period
	if int32(delta) <= 0 {
		wait = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = time.AfterFunc(wait, c.fire)
}

// DisableCompare disarms any pending compare-match interrupt.
func (c *Counter) DisableCompare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// SetHandler installs the compare-match handler.
func (c *Counter) SetHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

func (c *Counter) fire() {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler != nil {
		handler()
	}
}
