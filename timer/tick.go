package timer

// Tick is an unsigned monotonically increasing counter value at a fixed
// frequency. It wraps modulo 2^32; use the distance helpers below instead
// of raw ordering.
type Tick uint32

// Add returns the tick d counts after t, modulo the counter width.
func (t Tick) Add(d uint32) Tick {
	return t + Tick(d)
}

// Sub returns the distance from o to t in ticks, modulo the counter width.
func (t Tick) Sub(o Tick) uint32 {
	return uint32(t - o)
}

// TickReached returns true if now has reached or passed deadline,
// comparing tick distances modulo the counter width. A deadline more than
// 2^31 ticks ahead is indistinguishable from one in the past.
func TickReached(now, deadline Tick) bool {
	return int32(now-deadline) >= 0
}

// TickBefore returns true if a is strictly earlier than b, comparing tick
// distances modulo the counter width.
func TickBefore(a, b Tick) bool {
	return int32(a-b) < 0
}
