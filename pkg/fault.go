package pkg

import (
	"fmt"
	"sync"
)

// FaultHandler receives fatal invariant violations. It must not return
// control to the faulting code path; the default handler panics.
type FaultHandler func(component Component, v any)

var (
	faultMutex   sync.RWMutex
	faultHandler FaultHandler = defaultFaultHandler
)

func defaultFaultHandler(component Component, v any) {
	panic(fmt.Sprintf("softmcu: fatal fault in %s: %v", component, v))
}

// SetFaultHandler replaces the fault handler. Passing nil restores the
// default handler.
func SetFaultHandler(h FaultHandler) {
	faultMutex.Lock()
	defer faultMutex.Unlock()
	if h == nil {
		h = defaultFaultHandler
	}
	faultHandler = h
}

// Fault reports a fatal corruption of a core invariant (task table overrun,
// double-poll, wake registry overrun). Recoverable errors never route here;
// they are returned as values to the caller.
func Fault(component Component, v any) {
	faultMutex.RLock()
	h := faultHandler
	faultMutex.RUnlock()
	LogError(component, "fatal fault", "fault", fmt.Sprint(v))
	h(component, v)
}
