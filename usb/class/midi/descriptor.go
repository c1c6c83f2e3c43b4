package midi

import (
	"github.com/ardnew/softmcu/usb"
)

// Audio class interface subclasses (USB Audio 1.0 Spec A.2).
const (
	SubclassAudioControl  = 0x01
	SubclassMIDIStreaming = 0x03
	ProtocolUndefined     = 0x00
)

// Class-specific descriptor subtypes (USB MIDI 1.0 Spec A.1).
const (
	subtypeHeader      = 0x01 // AudioControl HEADER
	subtypeMSHeader    = 0x01 // MIDIStreaming MS_HEADER
	subtypeMIDIInJack  = 0x02 // MIDI_IN_JACK
	subtypeMIDIOutJack = 0x03 // MIDI_OUT_JACK
	subtypeMSGeneral   = 0x01 // MS_GENERAL endpoint
)

// Jack types (USB MIDI 1.0 Spec A.2).
const (
	jackTypeEmbedded = 0x01
	jackTypeExternal = 0x02
)

// MaxPacketSize is the bulk endpoint packet size.
const MaxPacketSize = 64

// MaxPorts is the maximum number of virtual MIDI ports per function.
const MaxPorts = 8

// Per-port jack identifiers. Each port owns four jacks numbered from a
// base of port*4.
func jackIDs(port int) (inEmbedded, inExternal, outEmbedded, outExternal uint8) {
	offset := uint8(port * 4)
	return offset + 1, offset + 2, offset + 3, offset + 4
}

// acHeaderTo writes the class-specific AudioControl HEADER descriptor:
// revision 1.0, one streaming interface, owned by msInterface.
func acHeaderTo(buf []byte, msInterface uint8) int {
	return usb.ClassDescriptorTo(buf, usb.DescriptorTypeCSInterface, []byte{
		subtypeHeader,
		0x00, 0x01, // revision 1.0
		0x09, 0x00, // total size of class-specific descriptors
		0x01, // number of streaming interfaces
		msInterface,
	})
}

// msTotalLength is the MS_HEADER wTotalLength: all class-specific
// MIDIStreaming descriptors plus the standard bulk endpoint descriptors,
// per the USB MIDI 1.0 descriptor layout.
func msTotalLength(ports int) int {
	perPort := 6 + 6 + 9 + 9          // two IN jacks, two OUT jacks
	perEndpoint := 9 + (4 + ports)    // standard audio EP + MS_GENERAL
	return 7 + ports*perPort + 2*perEndpoint
}

// msHeaderTo writes the class-specific MS_HEADER descriptor.
func msHeaderTo(buf []byte, ports int) int {
	total := msTotalLength(ports)
	return usb.ClassDescriptorTo(buf, usb.DescriptorTypeCSInterface, []byte{
		subtypeMSHeader,
		0x00, 0x01, // revision 1.0
		uint8(total), uint8(total >> 8),
	})
}

// inJackTo writes a MIDI_IN_JACK descriptor (6 bytes).
func inJackTo(buf []byte, jackType, jackID uint8) int {
	return usb.ClassDescriptorTo(buf, usb.DescriptorTypeCSInterface, []byte{
		subtypeMIDIInJack,
		jackType,
		jackID,
		0x00, // iJack
	})
}

// outJackTo writes a MIDI_OUT_JACK descriptor (9 bytes) with a single
// input pin sourced from sourceID.
func outJackTo(buf []byte, jackType, jackID, sourceID uint8) int {
	return usb.ClassDescriptorTo(buf, usb.DescriptorTypeCSInterface, []byte{
		subtypeMIDIOutJack,
		jackType,
		jackID,
		0x01, // number of input pins
		sourceID,
		0x01, // source pin
		0x00, // iJack
	})
}

// msEndpointTo writes a class-specific MS_GENERAL endpoint descriptor
// associating the endpoint with the given embedded jacks.
func msEndpointTo(buf []byte, jacks []uint8) int {
	payload := make([]byte, 0, 2+len(jacks))
	payload = append(payload, subtypeMSGeneral, uint8(len(jacks)))
	payload = append(payload, jacks...)
	return usb.ClassDescriptorTo(buf, usb.DescriptorTypeCSEndpoint, payload)
}
