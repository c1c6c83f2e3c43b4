package hal

// Speed represents the USB connection speed.
type Speed uint8

// USB speed constants (USB 2.0 Specification).
const (
	SpeedUnknown Speed = iota // Not connected or unknown
	SpeedLow                  // Low Speed (1.5 Mbit/s)
	SpeedFull                 // Full Speed (12 Mbit/s)
	SpeedHigh                 // High Speed (480 Mbit/s)
)

// String returns a human-readable speed name.
func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "Low Speed"
	case SpeedFull:
		return "Full Speed"
	case SpeedHigh:
		return "High Speed"
	default:
		return "Unknown"
	}
}

// EndpointConfig describes an endpoint configuration for the HAL.
// This is a minimal, platform-agnostic representation used to configure
// hardware endpoints when a configuration is activated.
type EndpointConfig struct {
	Address       uint8  // Endpoint address including direction bit
	Attributes    uint8  // Transfer type and sync/usage flags
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval for interrupt/isochronous
}

// Number returns the endpoint number (0-15).
func (e *EndpointConfig) Number() uint8 {
	return e.Address & 0x0F
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *EndpointConfig) IsIn() bool {
	return e.Address&0x80 != 0
}

// TransferType returns the transfer type (control, bulk, interrupt, isochronous).
func (e *EndpointConfig) TransferType() uint8 {
	return e.Attributes & 0x03
}

// SetupPacket represents a USB SETUP packet in the HAL layer.
// This is a fixed-size, zero-allocation structure for SETUP transactions.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// EventType identifies a controller interrupt cause.
type EventType uint8

// Controller event types.
const (
	EventNone             EventType = iota
	EventReset                      // Bus reset detected
	EventSuspend                    // Bus idle, device suspended
	EventResume                     // Resume signalling
	EventSetup                      // SETUP packet latched on EP0
	EventTransferComplete           // A data endpoint completed a transfer
)

// String returns a human-readable event name.
func (t EventType) String() string {
	switch t {
	case EventReset:
		return "reset"
	case EventSuspend:
		return "suspend"
	case EventResume:
		return "resume"
	case EventSetup:
		return "setup"
	case EventTransferComplete:
		return "transfer complete"
	default:
		return "none"
	}
}

// Event is one controller interrupt. EndpointAddr is meaningful only for
// EventTransferComplete.
type Event struct {
	Type         EventType
	EndpointAddr uint8
}

// Controller defines the register-level contract a USB device controller
// exposes to the stack.
//
// All methods are non-blocking. Packet operations return ErrNAK when the
// hardware cannot complete immediately; the corresponding
// EventTransferComplete signals when a retry will succeed. The event
// handler may be invoked from any goroutine and must complete in bounded
// time without suspending.
type Controller interface {
	// SetEventHandler installs the interrupt callback. Must be called
	// before the controller is attached to a bus.
	SetEventHandler(fn func(Event))

	// SetAddress latches the device address in hardware.
	SetAddress(address uint8)

	// ConfigureEndpoints programs the hardware data endpoints for the
	// active configuration.
	ConfigureEndpoints(endpoints []EndpointConfig) error

	// UnconfigureEndpoints disables all data endpoints, as after a bus
	// reset or SET_CONFIGURATION(0).
	UnconfigureEndpoints()

	// ReadSetup copies the latched SETUP packet into out. Returns false
	// if no SETUP packet is pending.
	ReadSetup(out *SetupPacket) bool

	// WriteEP0 arms the EP0 IN data stage with the given bytes and
	// completes the transfer.
	WriteEP0(data []byte) error

	// AckEP0 completes a control transfer with a zero-length status
	// stage.
	AckEP0() error

	// StallEP0 answers the current control transfer with STALL.
	StallEP0()

	// ReadPacket copies one received packet from an OUT endpoint into
	// buf. Returns ErrNAK when no packet is pending.
	ReadPacket(address uint8, buf []byte) (int, error)

	// WritePacket queues one packet on an IN endpoint. Returns ErrNAK
	// when the endpoint FIFO is full.
	WritePacket(address uint8, data []byte) (int, error)

	// Stall halts a data endpoint.
	Stall(address uint8)

	// ClearStall clears a halt condition and resets the data toggle.
	ClearStall(address uint8)

	// Speed returns the negotiated connection speed.
	Speed() Speed
}
