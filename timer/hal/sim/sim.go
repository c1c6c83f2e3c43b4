package sim

import (
	"sync"
)

// Counter is a manually advanced hardware counter. It implements
// hal.Counter. The zero value is ready to use and reads zero.
type Counter struct {
	mu      sync.Mutex
	now     uint32
	compare uint32
	armed   bool
	handler func()
}

// New creates a counter starting at the given value. Starting near the
// wraparound boundary is useful for overflow tests.
func New(start uint32) *Counter {
	return &Counter{now: start}
}

// Now returns the current counter value.
func (c *Counter) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetCompare arms the compare register.
func (c *Counter) SetCompare(tick uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compare = tick
	c.armed = true
}

// DisableCompare disarms the compare register.
func (c *Counter) DisableCompare() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = false
}

// SetHandler installs the compare-match handler.
func (c *Counter) SetHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// Advance moves the counter forward by delta ticks, firing the compare
// handler for every compare value crossed. The handler runs on the
// caller's goroutine with no counter lock held, so it may re-arm the
// compare register; a re-arm landing within the already-elapsed span
// fires again before Advance returns.
func (c *Counter) Advance(delta uint32) {
	c.mu.Lock()
	c.now += delta
	c.mu.Unlock()

	for {
		c.mu.Lock()
		fire := false
		if c.armed {
			// Distance from the compare value to now, modulo 2^32. The
			// compare has been reached when that distance is smaller
			// than the span just elapsed (or zero).
			if c.now-c.compare <= delta {
				c.armed = false
				fire = true
			}
		}
		handler := c.handler
		c.mu.Unlock()

		if !fire {
			return
		}
		if handler != nil {
			handler()
		}
	}
}
