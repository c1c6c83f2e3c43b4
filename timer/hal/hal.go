package hal

// Counter is the hardware timer contract consumed by the time driver.
//
// Now must be wait-free and monotonic modulo 32-bit wraparound. SetCompare
// arms the compare-match interrupt; the handler registered with SetHandler
// is invoked from interrupt context when the counter reaches the compare
// value. The counter frequency is fixed at system configuration time.
type Counter interface {
	// Now returns the current counter value. Wait-free.
	Now() uint32

	// SetCompare arms the compare register to fire at the given counter
	// value. A new call replaces any previously armed compare.
	SetCompare(tick uint32)

	// DisableCompare disarms the compare register.
	DisableCompare()

	// SetHandler installs the compare-match interrupt handler. The handler
	// runs in interrupt context and must not block.
	SetHandler(fn func())
}
