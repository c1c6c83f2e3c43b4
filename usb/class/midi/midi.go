package midi

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
	"github.com/ardnew/softmcu/usb"
	"github.com/ardnew/softmcu/wake"
)

// Config parameterizes a MIDI function.
type Config struct {
	// Ports is the number of virtual MIDI ports (cables), 1-8.
	// Defaults to 1.
	Ports int

	// OutAddress is the bulk OUT endpoint address. Defaults to 0x01.
	OutAddress uint8

	// InAddress is the bulk IN endpoint address. Defaults to 0x81.
	InAddress uint8
}

// Class is a USB-MIDI function. Install it on a device under
// construction, then Bind it to the stack for packet I/O.
type Class struct {
	ports   int
	outAddr uint8
	inAddr  uint8

	stack *usb.Stack

	mu        sync.Mutex
	connWaker wake.Waker

	// Audio-style endpoint tail: bRefresh, bSynchAddress.
	epExtra [2]byte

	// Backing storage for the pre-encoded class descriptors the device
	// holds by reference.
	descBuf  [512]byte
	descUsed int
}

// New creates a MIDI function from cfg.
func New(cfg Config) (*Class, error) {
	if cfg.Ports == 0 {
		cfg.Ports = 1
	}
	if cfg.Ports < 1 || cfg.Ports > MaxPorts {
		return nil, pkg.ErrInvalidParameter
	}
	if cfg.OutAddress == 0 {
		cfg.OutAddress = 0x01
	}
	if cfg.InAddress == 0 {
		cfg.InAddress = 0x81
	}
	if cfg.OutAddress&0x80 != 0 || cfg.InAddress&0x80 == 0 {
		return nil, pkg.ErrInvalidParameter
	}
	return &Class{
		ports:   cfg.Ports,
		outAddr: cfg.OutAddress,
		inAddr:  cfg.InAddress,
	}, nil
}

// Ports returns the number of virtual MIDI ports.
func (c *Class) Ports() int {
	return c.ports
}

// alloc reserves space in the descriptor backing buffer and returns the
// encoded slice, or nil when encode failed or the buffer is exhausted.
func (c *Class) alloc(encode func(buf []byte) int) []byte {
	n := encode(c.descBuf[c.descUsed:])
	if n == 0 {
		return nil
	}
	out := c.descBuf[c.descUsed : c.descUsed+n]
	c.descUsed += n
	return out
}

// Install adds the AudioControl and MIDIStreaming interfaces to the
// device under construction and attaches the class driver.
func (c *Class) Install(b *usb.DeviceBuilder) error {
	// AudioControl interface owning the streaming interface.
	b.AddInterface(usb.ClassAudio, SubclassAudioControl, ProtocolUndefined)
	ac := b.Interface()
	if ac == nil {
		return pkg.ErrInvalidState
	}
	msNumber := ac.Number + 1

	desc := c.alloc(func(buf []byte) int { return acHeaderTo(buf, msNumber) })
	if desc == nil {
		return pkg.ErrBufferTooSmall
	}
	if err := ac.AddClassDescriptor(desc); err != nil {
		return err
	}

	// MIDIStreaming interface.
	b.AddInterface(usb.ClassAudio, SubclassMIDIStreaming, ProtocolUndefined)
	ms := b.Interface()
	if ms == nil || ms.Number != msNumber {
		return pkg.ErrInvalidState
	}

	desc = c.alloc(func(buf []byte) int { return msHeaderTo(buf, c.ports) })
	if desc == nil {
		return pkg.ErrBufferTooSmall
	}
	if err := ms.AddClassDescriptor(desc); err != nil {
		return err
	}

	// One embedded/external jack pair per direction per port. The
	// embedded IN jacks feed the bulk OUT endpoint and the embedded OUT
	// jacks feed the bulk IN endpoint.
	var outJacks, inJacks [MaxPorts]uint8
	for port := 0; port < c.ports; port++ {
		inEmb, inExt, outEmb, outExt := jackIDs(port)
		outJacks[port] = inEmb
		inJacks[port] = outEmb

		for _, enc := range []func(buf []byte) int{
			func(buf []byte) int { return inJackTo(buf, jackTypeEmbedded, inEmb) },
			func(buf []byte) int { return inJackTo(buf, jackTypeExternal, inExt) },
			func(buf []byte) int { return outJackTo(buf, jackTypeEmbedded, outEmb, inExt) },
			func(buf []byte) int { return outJackTo(buf, jackTypeExternal, outExt, inEmb) },
		} {
			desc = c.alloc(enc)
			if desc == nil {
				return pkg.ErrBufferTooSmall
			}
			if err := ms.AddClassDescriptor(desc); err != nil {
				return err
			}
		}
	}

	outEP := &usb.Endpoint{
		Address:       c.outAddr,
		Attributes:    usb.EndpointTypeBulk,
		MaxPacketSize: MaxPacketSize,
	}
	outEP.SetExtra(c.epExtra[:])
	desc = c.alloc(func(buf []byte) int { return msEndpointTo(buf, outJacks[:c.ports]) })
	if desc == nil {
		return pkg.ErrBufferTooSmall
	}
	outEP.SetClassDescriptor(desc)
	if err := ms.AddEndpoint(outEP); err != nil {
		return err
	}

	inEP := &usb.Endpoint{
		Address:       c.inAddr,
		Attributes:    usb.EndpointTypeBulk,
		MaxPacketSize: MaxPacketSize,
	}
	inEP.SetExtra(c.epExtra[:])
	desc = c.alloc(func(buf []byte) int { return msEndpointTo(buf, inJacks[:c.ports]) })
	if desc == nil {
		return pkg.ErrBufferTooSmall
	}
	inEP.SetClassDescriptor(desc)
	if err := ms.AddEndpoint(inEP); err != nil {
		return err
	}

	return ms.SetClassDriver(c)
}

// Bind attaches the class to the running stack for packet I/O.
func (c *Class) Bind(stack *usb.Stack) {
	c.stack = stack
}

// Init implements usb.ClassDriver.
func (c *Class) Init(iface *usb.Interface) error {
	return nil
}

// HandleSetup implements usb.ClassDriver. The MIDI class defines no
// mandatory class-specific requests.
func (c *Class) HandleSetup(iface *usb.Interface, setup *usb.SetupPacket) (bool, error) {
	return false, nil
}

// OnConfigured implements usb.ClassDriver.
func (c *Class) OnConfigured() {
	c.mu.Lock()
	waker := c.connWaker
	c.mu.Unlock()
	waker.Wake()

	pkg.LogDebug(pkg.ComponentUSB, "MIDI function configured",
		"ports", c.ports)
}

// WaitConnection suspends the calling task until the device is
// configured.
func (c *Class) WaitConnection(tc usb.TaskContext) error {
	if c.stack == nil {
		return pkg.ErrInvalidState
	}
	for {
		if c.stack.Device().IsConfigured() {
			return nil
		}
		c.mu.Lock()
		c.connWaker = tc.Waker()
		c.mu.Unlock()
		if c.stack.Device().IsConfigured() {
			return nil
		}
		if err := tc.Suspend(); err != nil {
			return err
		}
	}
}

// ReadPacket receives one bulk packet of MIDI event data, suspending
// the task until data arrives.
func (c *Class) ReadPacket(tc usb.TaskContext, buf []byte) (int, error) {
	if c.stack == nil {
		return 0, pkg.ErrInvalidState
	}
	return c.stack.ReadEndpoint(tc, c.outAddr, buf)
}

// WritePacket transmits one bulk packet of MIDI event data, suspending
// the task until the hardware accepts it.
func (c *Class) WritePacket(tc usb.TaskContext, data []byte) (int, error) {
	if c.stack == nil {
		return 0, pkg.ErrInvalidState
	}
	return c.stack.WriteEndpoint(tc, c.inAddr, data)
}

// WriteEvent transmits a single MIDI event packet.
func (c *Class) WriteEvent(tc usb.TaskContext, ev Event) error {
	var buf [EventSize]byte
	ev.MarshalTo(buf[:])
	_, err := c.WritePacket(tc, buf[:])
	return err
}

// ReadEvents receives one bulk packet and parses it into events.
// Returns the number of events stored in out.
func (c *Class) ReadEvents(tc usb.TaskContext, out []Event) (int, error) {
	var buf [MaxPacketSize]byte
	n, err := c.ReadPacket(tc, buf[:])
	if err != nil {
		return 0, err
	}

	count := 0
	for off := 0; off+EventSize <= n && count < len(out); off += EventSize {
		if err := ParseEvent(buf[off:off+EventSize], &out[count]); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
