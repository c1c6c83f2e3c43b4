package usb

import (
	"sync"

	"github.com/ardnew/softmcu/pkg"
)

// Maximum limits for fixed-size arrays (zero-allocation support).
const (
	// MaxEndpointsPerInterface is the maximum number of endpoints per
	// interface, excluding EP0.
	MaxEndpointsPerInterface = 8

	// MaxInterfacesPerConfiguration is the maximum number of interfaces
	// per configuration.
	MaxInterfacesPerConfiguration = 8

	// MaxConfigurations is the maximum number of configurations per device.
	MaxConfigurations = 4

	// MaxStrings is the maximum number of string descriptors per device.
	MaxStrings = 16

	// MaxClassDescriptorsPerInterface is the maximum number of
	// class-specific interface descriptors per interface.
	MaxClassDescriptorsPerInterface = 16
)

// ClassDriver defines the hooks a USB class implementation provides to
// the stack.
type ClassDriver interface {
	// Init binds the class driver to its interface.
	Init(iface *Interface) error

	// HandleSetup processes class-specific SETUP requests directed at
	// the interface. Returns true if the request was handled.
	HandleSetup(iface *Interface, setup *SetupPacket) (bool, error)

	// OnConfigured is called when the device enters the Configured
	// state with this interface active.
	OnConfigured()
}

// Interface represents a USB interface within a configuration.
type Interface struct {
	Number           uint8 // Interface number
	AlternateSetting uint8 // Current alternate setting
	Class            uint8 // Interface class
	SubClass         uint8 // Interface subclass
	Protocol         uint8 // Interface protocol
	StringIndex      uint8 // String descriptor index

	endpoints     [MaxEndpointsPerInterface]*Endpoint
	endpointCount int

	// Class-specific interface descriptors, pre-encoded, emitted in
	// order directly after the standard interface descriptor.
	classDescs     [MaxClassDescriptorsPerInterface][]byte
	classDescCount int

	classDriver ClassDriver

	mutex sync.RWMutex
}

// NewInterface creates an interface from descriptor fields.
func NewInterface(desc *InterfaceDescriptor) *Interface {
	return &Interface{
		Number:           desc.InterfaceNumber,
		AlternateSetting: desc.AlternateSetting,
		Class:            desc.InterfaceClass,
		SubClass:         desc.InterfaceSubClass,
		Protocol:         desc.InterfaceProtocol,
		StringIndex:      desc.InterfaceIndex,
	}
}

// AddEndpoint adds an endpoint to the interface. Returns ErrTableFull at
// capacity and ErrBusy for a duplicate address.
func (i *Interface) AddEndpoint(ep *Endpoint) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.endpointCount >= MaxEndpointsPerInterface {
		return pkg.ErrTableFull
	}
	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == ep.Address {
			return pkg.ErrBusy
		}
	}
	i.endpoints[i.endpointCount] = ep
	i.endpointCount++

	pkg.LogDebug(pkg.ComponentUSB, "endpoint added to interface",
		"interface", i.Number,
		"endpoint", ep.Address,
		"type", TransferTypeName(ep.TransferType()),
		"direction", DirectionName(ep.Direction()))
	return nil
}

// AddClassDescriptor appends a pre-encoded class-specific interface
// descriptor. The slice is stored by reference.
func (i *Interface) AddClassDescriptor(data []byte) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	if i.classDescCount >= MaxClassDescriptorsPerInterface {
		return pkg.ErrTableFull
	}
	i.classDescs[i.classDescCount] = data
	i.classDescCount++
	return nil
}

// GetEndpoint returns the endpoint with the given address, or nil.
func (i *Interface) GetEndpoint(address uint8) *Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	for idx := 0; idx < i.endpointCount; idx++ {
		if i.endpoints[idx].Address == address {
			return i.endpoints[idx]
		}
	}
	return nil
}

// Endpoints returns all endpoints in the interface.
// The returned slice references internal storage; do not modify.
func (i *Interface) Endpoints() []*Endpoint {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.endpoints[:i.endpointCount]
}

// NumEndpoints returns the number of endpoints in the interface.
func (i *Interface) NumEndpoints() int {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.endpointCount
}

// SetClassDriver installs the class driver and initializes it.
func (i *Interface) SetClassDriver(driver ClassDriver) error {
	i.mutex.Lock()
	i.classDriver = driver
	i.mutex.Unlock()

	if driver != nil {
		return driver.Init(i)
	}
	return nil
}

// ClassDriver returns the installed class driver.
func (i *Interface) ClassDriver() ClassDriver {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return i.classDriver
}

// HandleSetup dispatches a class-specific SETUP request to the class
// driver. Returns false if no driver is installed.
func (i *Interface) HandleSetup(setup *SetupPacket) (bool, error) {
	i.mutex.RLock()
	driver := i.classDriver
	i.mutex.RUnlock()
	if driver == nil {
		return false, nil
	}
	return driver.HandleSetup(i, setup)
}

// SetAlternate changes the alternate setting. Alternate settings other
// than zero are not supported by this stack.
func (i *Interface) SetAlternate(alt uint8) error {
	if alt != 0 {
		return pkg.ErrNotSupported
	}
	i.mutex.Lock()
	i.AlternateSetting = alt
	i.mutex.Unlock()
	return nil
}

// Descriptor returns the interface descriptor.
func (i *Interface) Descriptor() *InterfaceDescriptor {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	return &InterfaceDescriptor{
		Length:            InterfaceDescriptorSize,
		DescriptorType:    DescriptorTypeInterface,
		InterfaceNumber:   i.Number,
		AlternateSetting:  i.AlternateSetting,
		NumEndpoints:      uint8(i.endpointCount),
		InterfaceClass:    i.Class,
		InterfaceSubClass: i.SubClass,
		InterfaceProtocol: i.Protocol,
		InterfaceIndex:    i.StringIndex,
	}
}

// marshalTo writes the interface descriptor, its class-specific
// descriptors, and its endpoints to buf. Returns 0 if buf is too small.
func (i *Interface) marshalTo(buf []byte) int {
	offset := i.Descriptor().MarshalTo(buf)
	if offset == 0 {
		return 0
	}

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	for idx := 0; idx < i.classDescCount; idx++ {
		d := i.classDescs[idx]
		if len(buf) < offset+len(d) {
			return 0
		}
		offset += copy(buf[offset:], d)
	}
	for idx := 0; idx < i.endpointCount; idx++ {
		n := i.endpoints[idx].marshalTo(buf[offset:])
		if n == 0 {
			return 0
		}
		offset += n
	}
	return offset
}

// descriptorLength is the marshalled size of the interface and all of
// its sub-descriptors.
func (i *Interface) descriptorLength() int {
	i.mutex.RLock()
	defer i.mutex.RUnlock()
	length := InterfaceDescriptorSize
	for idx := 0; idx < i.classDescCount; idx++ {
		length += len(i.classDescs[idx])
	}
	for idx := 0; idx < i.endpointCount; idx++ {
		length += i.endpoints[idx].descriptorLength()
	}
	return length
}

// Configuration represents a USB device configuration.
type Configuration struct {
	Value       uint8 // Configuration value for SET_CONFIGURATION
	Attributes  uint8 // Bus/self powered, remote wakeup
	MaxPower    uint8 // Maximum power consumption (2mA units)
	StringIndex uint8 // String descriptor index

	interfaces     [MaxInterfacesPerConfiguration]*Interface
	interfaceCount int
	mutex          sync.RWMutex
}

// NewConfiguration creates a bus-powered configuration drawing 100mA.
func NewConfiguration(value uint8) *Configuration {
	return &Configuration{
		Value:      value,
		Attributes: ConfigAttrBusPowered,
		MaxPower:   50,
	}
}

// AddInterface adds an interface to the configuration. Returns
// ErrTableFull at capacity and ErrBusy for a duplicate number.
func (c *Configuration) AddInterface(iface *Interface) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.interfaceCount >= MaxInterfacesPerConfiguration {
		return pkg.ErrTableFull
	}
	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == iface.Number {
			return pkg.ErrBusy
		}
	}
	c.interfaces[c.interfaceCount] = iface
	c.interfaceCount++

	pkg.LogDebug(pkg.ComponentUSB, "interface added to configuration",
		"config", c.Value,
		"interface", iface.Number)
	return nil
}

// GetInterface returns the interface with the given number, or nil.
func (c *Configuration) GetInterface(number uint8) *Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for idx := 0; idx < c.interfaceCount; idx++ {
		if c.interfaces[idx].Number == number {
			return c.interfaces[idx]
		}
	}
	return nil
}

// Interfaces returns all interfaces in the configuration.
// The returned slice references internal storage; do not modify.
func (c *Configuration) Interfaces() []*Interface {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.interfaces[:c.interfaceCount]
}

// NumInterfaces returns the number of interfaces.
func (c *Configuration) NumInterfaces() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.interfaceCount
}

// IsSelfPowered returns true if the configuration is self-powered.
func (c *Configuration) IsSelfPowered() bool {
	return c.Attributes&ConfigAttrSelfPowered != 0
}

// Descriptor returns the configuration descriptor with TotalLength
// covering all sub-descriptors.
func (c *Configuration) Descriptor() *ConfigurationDescriptor {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	length := ConfigurationDescriptorSize
	for idx := 0; idx < c.interfaceCount; idx++ {
		length += c.interfaces[idx].descriptorLength()
	}
	return &ConfigurationDescriptor{
		Length:             ConfigurationDescriptorSize,
		DescriptorType:     DescriptorTypeConfiguration,
		TotalLength:        uint16(length),
		NumInterfaces:      uint8(c.interfaceCount),
		ConfigurationValue: c.Value,
		ConfigurationIndex: c.StringIndex,
		Attributes:         c.Attributes,
		MaxPower:           c.MaxPower,
	}
}

// MarshalTo writes the full configuration descriptor including all
// interfaces, class-specific descriptors, and endpoints to buf.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Configuration) MarshalTo(buf []byte) int {
	offset := c.Descriptor().MarshalTo(buf)
	if offset == 0 {
		return 0
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for idx := 0; idx < c.interfaceCount; idx++ {
		n := c.interfaces[idx].marshalTo(buf[offset:])
		if n == 0 {
			return 0
		}
		offset += n
	}
	return offset
}
