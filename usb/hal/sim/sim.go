package sim

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/usb/hal"
)

// fifoDepth is the number of packets each simulated endpoint FIFO holds.
const fifoDepth = 8

// numEndpointSlots covers endpoint addresses 0x00-0x0F OUT and 0x80-0x8F IN.
const numEndpointSlots = 32

// endpointIndex converts an endpoint address to a FIFO slot index.
func endpointIndex(addr uint8) int {
	if addr&0x80 != 0 {
		return int(addr&0x0F) + 16
	}
	return int(addr & 0x0F)
}

// endpoint is the simulated hardware state for one endpoint address.
type endpoint struct {
	configured    bool
	stalled       bool
	maxPacketSize uint16
	fifo          [fifoDepth][]byte
	head          int
	count         int
}

func (e *endpoint) push(data []byte) bool {
	if e.count == fifoDepth {
		return false
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	e.fifo[(e.head+e.count)%fifoDepth] = buf
	e.count++
	return true
}

func (e *endpoint) pop() ([]byte, bool) {
	if e.count == 0 {
		return nil, false
	}
	data := e.fifo[e.head]
	e.fifo[e.head] = nil
	e.head = (e.head + 1) % fifoDepth
	e.count--
	return data, true
}

func (e *endpoint) drain() {
	for e.count > 0 {
		e.pop()
	}
}

// Bus is an in-memory USB bus. Its methods split into the device side
// (the hal.Controller implementation, driven by the stack) and the host
// side (Reset, SubmitSetup, SubmitOut, TakeIn, driven by tests).
type Bus struct {
	mu      sync.Mutex
	handler func(hal.Event)

	address    uint8
	speed      hal.Speed
	configured bool
	endpoints  [numEndpointSlots]endpoint

	// EP0 control transfer state.
	setup        hal.SetupPacket
	setupPending bool
	ctrlData     []byte
	ctrlDone     bool
	ctrlStalled  bool
}

// New creates a full-speed bus with no endpoints configured.
func New() *Bus {
	return &Bus{speed: hal.SpeedFull}
}

// raise dispatches an event to the installed handler outside the bus
// lock. Callers must not hold b.mu.
func (b *Bus) raise(ev hal.Event) {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// SetEventHandler implements hal.Controller.
func (b *Bus) SetEventHandler(fn func(hal.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
}

// SetAddress implements hal.Controller.
func (b *Bus) SetAddress(address uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.address = address
}

// ConfigureEndpoints implements hal.Controller.
func (b *Bus) ConfigureEndpoints(endpoints []hal.EndpointConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range endpoints {
		ep := &endpoints[i]
		slot := &b.endpoints[endpointIndex(ep.Address)]
		slot.configured = true
		slot.stalled = false
		slot.maxPacketSize = ep.MaxPacketSize
		slot.drain()
	}
	b.configured = true
	return nil
}

// UnconfigureEndpoints implements hal.Controller.
func (b *Bus) UnconfigureEndpoints() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unconfigureLocked()
}

func (b *Bus) unconfigureLocked() {
	for i := range b.endpoints {
		b.endpoints[i].configured = false
		b.endpoints[i].stalled = false
		b.endpoints[i].drain()
	}
	b.configured = false
}

// ReadSetup implements hal.Controller.
func (b *Bus) ReadSetup(out *hal.SetupPacket) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.setupPending {
		return false
	}
	*out = b.setup
	b.setupPending = false
	return true
}

// WriteEP0 implements hal.Controller.
func (b *Bus) WriteEP0(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	b.ctrlData = buf
	b.ctrlDone = true
	return nil
}

// AckEP0 implements hal.Controller.
func (b *Bus) AckEP0() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctrlData = nil
	b.ctrlDone = true
	return nil
}

// StallEP0 implements hal.Controller.
func (b *Bus) StallEP0() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctrlStalled = true
	b.ctrlDone = true
}

// ReadPacket implements hal.Controller.
func (b *Bus) ReadPacket(address uint8, buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot := &b.endpoints[endpointIndex(address)]
	if !slot.configured {
		return 0, pkg.ErrInvalidEndpoint
	}
	if slot.stalled {
		return 0, pkg.ErrStall
	}
	data, ok := slot.pop()
	if !ok {
		return 0, pkg.ErrNAK
	}
	return copy(buf, data), nil
}

// WritePacket implements hal.Controller.
func (b *Bus) WritePacket(address uint8, data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slot := &b.endpoints[endpointIndex(address)]
	if !slot.configured {
		return 0, pkg.ErrInvalidEndpoint
	}
	if slot.stalled {
		return 0, pkg.ErrStall
	}
	if slot.maxPacketSize > 0 && len(data) > int(slot.maxPacketSize) {
		return 0, pkg.ErrInvalidParameter
	}
	if !slot.push(data) {
		return 0, pkg.ErrNAK
	}
	return len(data), nil
}

// Stall implements hal.Controller.
func (b *Bus) Stall(address uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints[endpointIndex(address)].stalled = true
}

// ClearStall implements hal.Controller.
func (b *Bus) ClearStall(address uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoints[endpointIndex(address)].stalled = false
}

// Speed implements hal.Controller.
func (b *Bus) Speed() hal.Speed {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// Host side.

// Reset issues a bus reset: address and endpoint configuration are
// cleared and EventReset is raised.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.address = 0
	b.setupPending = false
	b.ctrlData = nil
	b.ctrlDone = false
	b.ctrlStalled = false
	b.unconfigureLocked()
	b.mu.Unlock()

	b.raise(hal.Event{Type: hal.EventReset})
}

// Suspend signals bus idle.
func (b *Bus) Suspend() {
	b.raise(hal.Event{Type: hal.EventSuspend})
}

// Resume signals resume from suspend.
func (b *Bus) Resume() {
	b.raise(hal.Event{Type: hal.EventResume})
}

// SubmitSetup latches a SETUP packet on EP0, discarding any previous
// control transfer result, and raises EventSetup.
func (b *Bus) SubmitSetup(setup hal.SetupPacket) {
	b.mu.Lock()
	b.setup = setup
	b.setupPending = true
	b.ctrlData = nil
	b.ctrlDone = false
	b.ctrlStalled = false
	b.mu.Unlock()

	b.raise(hal.Event{Type: hal.EventSetup})
}

// ControlResult reports the outcome of the last submitted control
// transfer. done is false while the device has not completed it.
func (b *Bus) ControlResult() (data []byte, done, stalled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctrlData, b.ctrlDone, b.ctrlStalled
}

// ControlTransfer submits a SETUP packet, invokes step to let the device
// service it, and returns the IN data stage. step is typically the
// executor's RunUntilIdle. Returns ErrStall if the device stalled the
// request and ErrTimeout if the device never completed it.
func (b *Bus) ControlTransfer(step func(), setup hal.SetupPacket) ([]byte, error) {
	b.SubmitSetup(setup)
	step()
	data, done, stalled := b.ControlResult()
	if !done {
		return nil, pkg.ErrTimeout
	}
	if stalled {
		return nil, pkg.ErrStall
	}
	return data, nil
}

// SubmitOut delivers one packet from the host to an OUT endpoint and
// raises EventTransferComplete for it.
func (b *Bus) SubmitOut(address uint8, data []byte) error {
	b.mu.Lock()
	slot := &b.endpoints[endpointIndex(address)]
	if !slot.configured {
		b.mu.Unlock()
		return pkg.ErrNotConfigured
	}
	if slot.stalled {
		b.mu.Unlock()
		return pkg.ErrStall
	}
	if !slot.push(data) {
		b.mu.Unlock()
		return pkg.ErrQueueFull
	}
	b.mu.Unlock()

	b.raise(hal.Event{Type: hal.EventTransferComplete, EndpointAddr: address})
	return nil
}

// TakeIn collects one packet the device queued on an IN endpoint. The
// second return is false when the endpoint FIFO is empty. Taking a
// packet completes the IN transfer, raising EventTransferComplete.
func (b *Bus) TakeIn(address uint8) ([]byte, bool) {
	b.mu.Lock()
	data, ok := b.endpoints[endpointIndex(address)].pop()
	b.mu.Unlock()
	if !ok {
		return nil, false
	}

	b.raise(hal.Event{Type: hal.EventTransferComplete, EndpointAddr: address})
	return data, true
}

// Address returns the address latched by the device.
func (b *Bus) Address() uint8 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.address
}

// Configured returns true if the device has configured data endpoints.
func (b *Bus) Configured() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configured
}

// EndpointStalled returns true if the given endpoint is halted.
func (b *Bus) EndpointStalled(address uint8) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.endpoints[endpointIndex(address)].stalled
}
