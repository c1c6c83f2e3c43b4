package usb

import (
	"fmt"
	"sync"

	"github.com/ardnew/softmcu/pkg"
)

// Endpoint transfer types (USB 2.0 Spec Table 9-13).
const (
	EndpointTypeControl     = 0x00
	EndpointTypeIsochronous = 0x01
	EndpointTypeBulk        = 0x02
	EndpointTypeInterrupt   = 0x03
)

// Endpoint directions.
const (
	EndpointDirectionOut = 0x00 // Host to device
	EndpointDirectionIn  = 0x80 // Device to host
)

// Endpoint represents a USB endpoint and its runtime state.
type Endpoint struct {
	// Descriptor data
	Address       uint8  // Endpoint address including direction
	Attributes    uint8  // Transfer type
	MaxPacketSize uint16 // Maximum packet size
	Interval      uint8  // Polling interval (interrupt/isochronous)

	// extra holds optional bytes appended inside the standard
	// descriptor, extending bLength. The audio class uses this for
	// bRefresh and bSynchAddress.
	extra []byte

	// classDesc is an optional class-specific endpoint descriptor,
	// pre-encoded, emitted directly after the standard descriptor.
	classDesc []byte

	// Runtime state
	stalled    bool
	dataToggle bool
	mutex      sync.Mutex
}

// Number returns the endpoint number (0-15).
func (e *Endpoint) Number() uint8 {
	return e.Address & 0x0F
}

// Direction returns EndpointDirectionIn or EndpointDirectionOut.
func (e *Endpoint) Direction() uint8 {
	return e.Address & 0x80
}

// IsIn returns true if this is an IN endpoint (device to host).
func (e *Endpoint) IsIn() bool {
	return e.Direction() == EndpointDirectionIn
}

// TransferType returns the transfer type bits of Attributes.
func (e *Endpoint) TransferType() uint8 {
	return e.Attributes & 0x03
}

// IsBulk returns true if this is a bulk endpoint.
func (e *Endpoint) IsBulk() bool {
	return e.TransferType() == EndpointTypeBulk
}

// SetExtra appends bytes inside the standard descriptor, extending its
// bLength. The slice is stored by reference.
func (e *Endpoint) SetExtra(data []byte) {
	e.extra = data
}

// SetClassDescriptor attaches a pre-encoded class-specific endpoint
// descriptor. The slice is stored by reference.
func (e *Endpoint) SetClassDescriptor(data []byte) {
	e.classDesc = data
}

// SetStall sets or clears the halt condition.
func (e *Endpoint) SetStall(stalled bool) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stalled = stalled
	if stalled {
		pkg.LogDebug(pkg.ComponentUSB, "endpoint stalled",
			"address", fmt.Sprintf("0x%02X", e.Address))
	} else {
		pkg.LogDebug(pkg.ComponentUSB, "endpoint stall cleared",
			"address", fmt.Sprintf("0x%02X", e.Address))
	}
}

// IsStalled returns true if the endpoint is halted.
func (e *Endpoint) IsStalled() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.stalled
}

// DataToggle returns the current data toggle state.
func (e *Endpoint) DataToggle() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.dataToggle
}

// ToggleData flips the data toggle state.
func (e *Endpoint) ToggleData() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.dataToggle = !e.dataToggle
}

// ResetDataToggle resets the data toggle to DATA0.
func (e *Endpoint) ResetDataToggle() {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.dataToggle = false
}

// Descriptor returns the endpoint descriptor.
func (e *Endpoint) Descriptor() *EndpointDescriptor {
	return &EndpointDescriptor{
		Length:          EndpointDescriptorSize,
		DescriptorType:  DescriptorTypeEndpoint,
		EndpointAddress: e.Address,
		Attributes:      e.Attributes,
		MaxPacketSize:   e.MaxPacketSize,
		Interval:        e.Interval,
	}
}

// marshalTo writes the endpoint descriptor followed by its class-specific
// descriptor, if any. Returns 0 if buf is too small.
func (e *Endpoint) marshalTo(buf []byte) int {
	offset := e.Descriptor().MarshalTo(buf)
	if offset == 0 {
		return 0
	}
	if len(e.extra) > 0 {
		if len(buf) < offset+len(e.extra) {
			return 0
		}
		offset += copy(buf[offset:], e.extra)
		buf[0] = uint8(offset)
	}
	if len(e.classDesc) > 0 {
		if len(buf) < offset+len(e.classDesc) {
			return 0
		}
		offset += copy(buf[offset:], e.classDesc)
	}
	return offset
}

// descriptorLength is the marshalled size including the extra bytes and
// the class-specific descriptor.
func (e *Endpoint) descriptorLength() int {
	return EndpointDescriptorSize + len(e.extra) + len(e.classDesc)
}

// TransferTypeName returns a human-readable transfer type name.
func TransferTypeName(t uint8) string {
	switch t & 0x03 {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	case EndpointTypeInterrupt:
		return "Interrupt"
	default:
		return fmt.Sprintf("Unknown(%d)", t)
	}
}

// DirectionName returns a human-readable direction name.
func DirectionName(dir uint8) string {
	if dir == EndpointDirectionIn {
		return "IN"
	}
	return "OUT"
}
