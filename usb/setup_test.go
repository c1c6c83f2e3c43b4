package usb

import (
	"testing"

	"github.com/ardnew/softmcu/pkg"
)

func TestParseSetupPacket(t *testing.T) {
	raw := []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}

	var setup SetupPacket
	if err := ParseSetupPacket(raw, &setup); err != nil {
		t.Fatalf("ParseSetupPacket: %v", err)
	}
	if setup.RequestType != 0x80 {
		t.Errorf("RequestType = 0x%02X, want 0x80", setup.RequestType)
	}
	if setup.Request != RequestGetDescriptor {
		t.Errorf("Request = 0x%02X, want GET_DESCRIPTOR", setup.Request)
	}
	if setup.Value != 0x0100 {
		t.Errorf("Value = 0x%04X, want 0x0100", setup.Value)
	}
	if setup.Length != 18 {
		t.Errorf("Length = %d, want 18", setup.Length)
	}
}

func TestParseSetupPacketTooShort(t *testing.T) {
	var setup SetupPacket
	if err := ParseSetupPacket([]byte{0x80, 0x06}, &setup); err != pkg.ErrSetupPacketTooShort {
		t.Errorf("error = %v, want ErrSetupPacketTooShort", err)
	}
}

func TestSetupPacketMarshalRoundTrip(t *testing.T) {
	orig := SetupPacket{
		RequestType: 0x21,
		Request:     0x09,
		Value:       0x0200,
		Index:       0x0001,
		Length:      64,
	}

	var buf [SetupPacketSize]byte
	if n := orig.MarshalTo(buf[:]); n != SetupPacketSize {
		t.Fatalf("MarshalTo = %d, want %d", n, SetupPacketSize)
	}

	var parsed SetupPacket
	if err := ParseSetupPacket(buf[:], &parsed); err != nil {
		t.Fatalf("ParseSetupPacket: %v", err)
	}
	if parsed != orig {
		t.Errorf("round trip = %+v, want %+v", parsed, orig)
	}
}

func TestSetupPacketAccessors(t *testing.T) {
	tests := []struct {
		name        string
		requestType uint8
		d2h         bool
		standard    bool
		class       bool
		recipient   uint8
	}{
		{"standard device IN", 0x80, true, true, false, RequestRecipientDevice},
		{"standard device OUT", 0x00, false, true, false, RequestRecipientDevice},
		{"class interface OUT", 0x21, false, false, true, RequestRecipientInterface},
		{"standard endpoint OUT", 0x02, false, true, false, RequestRecipientEndpoint},
		{"vendor device IN", 0xC0, true, false, false, RequestRecipientDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SetupPacket{RequestType: tt.requestType}
			if s.IsDeviceToHost() != tt.d2h {
				t.Errorf("IsDeviceToHost = %v, want %v", s.IsDeviceToHost(), tt.d2h)
			}
			if s.IsStandard() != tt.standard {
				t.Errorf("IsStandard = %v, want %v", s.IsStandard(), tt.standard)
			}
			if s.IsClass() != tt.class {
				t.Errorf("IsClass = %v, want %v", s.IsClass(), tt.class)
			}
			if s.Recipient() != tt.recipient {
				t.Errorf("Recipient = %d, want %d", s.Recipient(), tt.recipient)
			}
		})
	}
}

func TestSetupPacketDescriptorFields(t *testing.T) {
	var s SetupPacket
	GetDescriptorSetup(&s, DescriptorTypeString, 2, 255)
	if s.DescriptorType() != DescriptorTypeString {
		t.Errorf("DescriptorType = %d, want %d", s.DescriptorType(), DescriptorTypeString)
	}
	if s.DescriptorIndex() != 2 {
		t.Errorf("DescriptorIndex = %d, want 2", s.DescriptorIndex())
	}
	if !s.IsDeviceToHost() || !s.IsStandard() {
		t.Errorf("GET_DESCRIPTOR must be a standard IN request: %s", s.String())
	}
}

func TestSetupConstructors(t *testing.T) {
	var s SetupPacket

	SetAddressSetup(&s, 7)
	if s.Request != RequestSetAddress || s.Value != 7 || s.IsDeviceToHost() {
		t.Errorf("SetAddressSetup built %s", s.String())
	}

	SetConfigurationSetup(&s, 1)
	if s.Request != RequestSetConfiguration || s.Value != 1 || s.Length != 0 {
		t.Errorf("SetConfigurationSetup built %s", s.String())
	}

	GetStatusSetup(&s, RequestRecipientEndpoint, 0x81)
	if s.Request != RequestGetStatus || s.Recipient() != RequestRecipientEndpoint {
		t.Errorf("GetStatusSetup built %s", s.String())
	}
	if s.EndpointAddress() != 0x81 {
		t.Errorf("EndpointAddress = 0x%02X, want 0x81", s.EndpointAddress())
	}

	SetFeatureSetup(&s, RequestRecipientEndpoint, FeatureEndpointHalt, 0x01)
	if s.Request != RequestSetFeature || s.Value != FeatureEndpointHalt {
		t.Errorf("SetFeatureSetup built %s", s.String())
	}

	SetInterfaceSetup(&s, 2, 1)
	if s.Request != RequestSetInterface || s.InterfaceNumber() != 2 || s.Value != 1 {
		t.Errorf("SetInterfaceSetup built %s", s.String())
	}
}
