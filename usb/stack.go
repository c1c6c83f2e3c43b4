package usb

import (
	"sync"
	"sync/atomic"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/usb/hal"
	"github.com/ardnew/softmcu/wake"
)

// MaxEndpointAddresses is the number of possible endpoint addresses
// (0x00-0x0F OUT and 0x80-0x8F IN).
const MaxEndpointAddresses = 32

// TaskContext is the scheduling surface the stack needs from the task
// that drives it. An executor task context satisfies it.
type TaskContext interface {
	// Waker returns a waker that marks the task ready.
	Waker() wake.Waker

	// Suspend parks the task until its waker fires. Returns an error if
	// the task was cancelled.
	Suspend() error
}

// Stack manages the USB device stack over a controller.
//
// OnInterrupt is the only entry point safe from interrupt context; it
// records the event and wakes the control task. All protocol work
// happens inside Run and the endpoint I/O methods, which must be called
// from executor tasks.
type Stack struct {
	device  *Device
	ctrl    hal.Controller
	handler *StandardRequestHandler

	// Event flags set by OnInterrupt, consumed by the control task.
	pendingReset   atomic.Bool
	pendingSuspend atomic.Bool
	pendingResume  atomic.Bool
	pendingSetup   atomic.Bool

	suspended atomic.Bool

	// mutex guards the waker table below.
	mutex     sync.Mutex
	taskWaker wake.Waker
	epWaiters [MaxEndpointAddresses]wake.Waker

	// Reusable setup packet for zero-allocation reads.
	setupBuf hal.SetupPacket

	// Observability counters.
	setups     atomic.Uint64
	stalls     atomic.Uint64
	resets     atomic.Uint64
	packetsIn  atomic.Uint64
	packetsOut atomic.Uint64
}

// endpointIndex converts an endpoint address to an array index.
// OUT endpoints 0x00-0x0F map to 0-15, IN endpoints 0x80-0x8F to 16-31.
func endpointIndex(addr uint8) int {
	if addr&0x80 != 0 {
		return int(addr&0x0F) + 16
	}
	return int(addr & 0x0F)
}

// NewStack creates a device stack and installs its interrupt handler on
// the controller.
func NewStack(dev *Device, ctrl hal.Controller) *Stack {
	s := &Stack{
		device: dev,
		ctrl:   ctrl,
	}
	s.handler = NewStandardRequestHandler(dev)
	ctrl.SetEventHandler(s.OnInterrupt)
	return s
}

// Device returns the underlying device.
func (s *Stack) Device() *Device {
	return s.device
}

// Suspended returns true while the bus is suspended.
func (s *Stack) Suspended() bool {
	return s.suspended.Load()
}

// OnInterrupt records a controller event and wakes the task waiting on
// it. Safe from interrupt context: it never blocks or allocates.
func (s *Stack) OnInterrupt(ev hal.Event) {
	switch ev.Type {
	case hal.EventReset:
		s.pendingReset.Store(true)
		s.wakeControl()
	case hal.EventSuspend:
		s.pendingSuspend.Store(true)
		s.wakeControl()
	case hal.EventResume:
		s.pendingResume.Store(true)
		s.wakeControl()
	case hal.EventSetup:
		s.pendingSetup.Store(true)
		s.wakeControl()
	case hal.EventTransferComplete:
		s.mutex.Lock()
		waker := s.epWaiters[endpointIndex(ev.EndpointAddr)]
		s.mutex.Unlock()
		waker.Wake()
	}
}

// wakeControl wakes the control task if one is running.
func (s *Stack) wakeControl() {
	s.mutex.Lock()
	waker := s.taskWaker
	s.mutex.Unlock()
	waker.Wake()
}

// Run is the control task body: it services bus events and SETUP
// transactions until the task is cancelled. Register it with the
// executor and drive interrupts via OnInterrupt.
func (s *Stack) Run(tc TaskContext) error {
	s.mutex.Lock()
	s.taskWaker = tc.Waker()
	s.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentUSB, "device stack control task started")

	for {
		s.processBusEvents()
		s.processSetups()
		if err := tc.Suspend(); err != nil {
			pkg.LogDebug(pkg.ComponentUSB, "device stack control task stopped")
			return err
		}
	}
}

// processBusEvents handles reset, suspend, and resume.
func (s *Stack) processBusEvents() {
	if s.pendingReset.Swap(false) {
		s.resets.Add(1)
		s.device.Reset()
		s.ctrl.UnconfigureEndpoints()
		s.suspended.Store(false)

		// Tasks parked in endpoint I/O must observe the reset.
		s.mutex.Lock()
		for i := range s.epWaiters {
			s.epWaiters[i].Wake()
			s.epWaiters[i] = wake.Waker{}
		}
		s.mutex.Unlock()

		pkg.LogDebug(pkg.ComponentUSB, "bus reset handled")
	}
	if s.pendingSuspend.Swap(false) {
		s.suspended.Store(true)
		pkg.LogDebug(pkg.ComponentUSB, "bus suspended")
	}
	if s.pendingResume.Swap(false) {
		s.suspended.Store(false)
		pkg.LogDebug(pkg.ComponentUSB, "bus resumed")
	}
}

// processSetups drains and handles all pending SETUP packets.
func (s *Stack) processSetups() {
	for s.pendingSetup.Swap(false) {
		for s.ctrl.ReadSetup(&s.setupBuf) {
			var setup SetupPacket
			setup.RequestType = s.setupBuf.RequestType
			setup.Request = s.setupBuf.Request
			setup.Value = s.setupBuf.Value
			setup.Index = s.setupBuf.Index
			setup.Length = s.setupBuf.Length

			s.setups.Add(1)
			if err := s.handleSetup(&setup); err != nil {
				s.stalls.Add(1)
				pkg.LogWarn(pkg.ComponentUSB, "control request stalled",
					"error", err,
					"request", setup.String())
				s.ctrl.StallEP0()
			}
		}
	}
}

// handleSetup processes a single SETUP transaction. An error return
// means the caller stalls EP0.
func (s *Stack) handleSetup(setup *SetupPacket) error {
	pkg.LogDebug(pkg.ComponentUSB, "setup received",
		"request", setup.String())

	if setup.IsStandard() {
		data, err := s.handler.HandleSetup(setup)
		if err != nil {
			return err
		}

		// Hardware side effects that must land before the status stage.
		switch {
		case setup.Request == RequestSetConfiguration &&
			setup.Recipient() == RequestRecipientDevice:
			if err := s.applyConfiguration(); err != nil {
				return err
			}
		case setup.Value == FeatureEndpointHalt &&
			setup.Recipient() == RequestRecipientEndpoint:
			if setup.Request == RequestSetFeature {
				s.ctrl.Stall(setup.EndpointAddress())
			} else if setup.Request == RequestClearFeature {
				s.ctrl.ClearStall(setup.EndpointAddress())
			}
		}

		if err := s.completeSetup(setup, data); err != nil {
			return err
		}

		// The address takes effect after the status stage.
		if setup.Request == RequestSetAddress &&
			setup.Recipient() == RequestRecipientDevice {
			s.ctrl.SetAddress(uint8(setup.Value & 0x7F))
		}
		return nil
	}

	if setup.IsClass() && setup.IsInterfaceRecipient() {
		iface := s.device.GetInterface(setup.InterfaceNumber())
		if iface != nil {
			handled, err := iface.HandleSetup(setup)
			if handled {
				if err != nil {
					return err
				}
				return s.completeSetup(setup, nil)
			}
		}
	}

	return pkg.ErrInvalidRequest
}

// completeSetup finishes the control transfer with a data stage or a
// zero-length status stage.
func (s *Stack) completeSetup(setup *SetupPacket, data []byte) error {
	if setup.IsDeviceToHost() {
		return s.ctrl.WriteEP0(data)
	}
	return s.ctrl.AckEP0()
}

// applyConfiguration programs the hardware endpoints for the active
// configuration, or disables them when the device was deconfigured.
func (s *Stack) applyConfiguration() error {
	config := s.device.ActiveConfiguration()
	if config == nil {
		s.ctrl.UnconfigureEndpoints()
		return nil
	}

	var configs [MaxEndpointAddresses]hal.EndpointConfig
	n := 0
	for _, iface := range config.Interfaces() {
		for _, ep := range iface.Endpoints() {
			configs[n] = hal.EndpointConfig{
				Address:       ep.Address,
				Attributes:    ep.Attributes,
				MaxPacketSize: ep.MaxPacketSize,
				Interval:      ep.Interval,
			}
			n++
		}
	}
	return s.ctrl.ConfigureEndpoints(configs[:n])
}

// ReadEndpoint receives one packet from an OUT endpoint, suspending the
// calling task until data arrives. Returns ErrNotConfigured if the
// device leaves the Configured state while waiting.
func (s *Stack) ReadEndpoint(tc TaskContext, address uint8, buf []byte) (int, error) {
	n, err := s.endpointIO(tc, address, func() (int, error) {
		return s.ctrl.ReadPacket(address, buf)
	})
	if err == nil {
		s.packetsIn.Add(1)
	}
	return n, err
}

// WriteEndpoint queues one packet on an IN endpoint, suspending the
// calling task until the hardware accepts it. Returns ErrNotConfigured
// if the device leaves the Configured state while waiting.
func (s *Stack) WriteEndpoint(tc TaskContext, address uint8, data []byte) (int, error) {
	n, err := s.endpointIO(tc, address, func() (int, error) {
		return s.ctrl.WritePacket(address, data)
	})
	if err == nil {
		s.packetsOut.Add(1)
	}
	return n, err
}

// endpointIO retries op across NAKs, suspending between attempts. The
// waiter is registered before each attempt so a transfer-complete
// interrupt landing between the attempt and the suspend is not lost.
func (s *Stack) endpointIO(tc TaskContext, address uint8, op func() (int, error)) (int, error) {
	idx := endpointIndex(address)
	for {
		if !s.device.IsConfigured() {
			s.clearWaiter(idx)
			return 0, pkg.ErrNotConfigured
		}

		s.mutex.Lock()
		s.epWaiters[idx] = tc.Waker()
		s.mutex.Unlock()

		n, err := op()
		if err != pkg.ErrNAK {
			s.clearWaiter(idx)
			return n, err
		}

		if err := tc.Suspend(); err != nil {
			s.clearWaiter(idx)
			return 0, err
		}
	}
}

// clearWaiter removes the endpoint waiter registration.
func (s *Stack) clearWaiter(idx int) {
	s.mutex.Lock()
	s.epWaiters[idx] = wake.Waker{}
	s.mutex.Unlock()
}

// StackStats is a point-in-time snapshot of stack activity.
type StackStats struct {
	Setups     uint64 // SETUP transactions handled
	Stalls     uint64 // control requests answered with STALL
	Resets     uint64 // bus resets handled
	PacketsIn  uint64 // packets received on OUT endpoints
	PacketsOut uint64 // packets transmitted on IN endpoints
}

// Stats returns a snapshot of stack activity counters.
func (s *Stack) Stats() StackStats {
	return StackStats{
		Setups:     s.setups.Load(),
		Stalls:     s.stalls.Load(),
		Resets:     s.resets.Load(),
		PacketsIn:  s.packetsIn.Load(),
		PacketsOut: s.packetsOut.Load(),
	}
}
