package midi

import (
	"fmt"

	"github.com/ardnew/softmcu/pkg"
)

// CIN is a code index number: the event packet header nibble that
// classifies the MIDI payload (USB MIDI 1.0 Spec Table 4-1).
type CIN uint8

// Code index numbers.
const (
	CINMisc            CIN = 0x0 // reserved for future extension
	CINCableEvent      CIN = 0x1 // reserved for future expansion
	CINSystemCommon2   CIN = 0x2 // two-byte system common
	CINSystemCommon3   CIN = 0x3 // three-byte system common
	CINSysExStart      CIN = 0x4 // SysEx starts or continues
	CINSysExEnd1       CIN = 0x5 // SysEx ends with one byte
	CINSysExEnd2       CIN = 0x6 // SysEx ends with two bytes
	CINSysExEnd3       CIN = 0x7 // SysEx ends with three bytes
	CINNoteOff         CIN = 0x8
	CINNoteOn          CIN = 0x9
	CINPolyKeyPress    CIN = 0xA
	CINControlChange   CIN = 0xB
	CINProgramChange   CIN = 0xC
	CINChannelPressure CIN = 0xD
	CINPitchBend       CIN = 0xE
	CINSingleByte      CIN = 0xF
)

// DataLength returns the number of meaningful MIDI bytes for the code
// index number. Unused trailing bytes of the packet are zero.
func (c CIN) DataLength() int {
	switch c {
	case CINSysExEnd1, CINSingleByte:
		return 1
	case CINSystemCommon2, CINSysExEnd2, CINProgramChange, CINChannelPressure:
		return 2
	default:
		return 3
	}
}

// String returns a short name for the code index number.
func (c CIN) String() string {
	switch c {
	case CINNoteOff:
		return "NoteOff"
	case CINNoteOn:
		return "NoteOn"
	case CINPolyKeyPress:
		return "PolyKeyPress"
	case CINControlChange:
		return "ControlChange"
	case CINProgramChange:
		return "ProgramChange"
	case CINChannelPressure:
		return "ChannelPressure"
	case CINPitchBend:
		return "PitchBend"
	case CINSysExStart:
		return "SysExStart"
	case CINSysExEnd1, CINSysExEnd2, CINSysExEnd3:
		return "SysExEnd"
	case CINSystemCommon2, CINSystemCommon3:
		return "SystemCommon"
	case CINSingleByte:
		return "SingleByte"
	default:
		return fmt.Sprintf("CIN(0x%X)", uint8(c))
	}
}

// EventSize is the wire size of one USB-MIDI event packet.
const EventSize = 4

// Event is one USB-MIDI event packet: a virtual cable number, a code
// index number, and up to three MIDI bytes.
type Event struct {
	Cable uint8 // virtual cable (port) number, 0-15
	CIN   CIN
	Data  [3]byte
}

// MarshalTo writes the 4-byte event packet to buf.
// Returns 0 if buf is too small.
func (e *Event) MarshalTo(buf []byte) int {
	if len(buf) < EventSize {
		return 0
	}
	buf[0] = e.Cable<<4 | uint8(e.CIN)&0x0F
	buf[1] = e.Data[0]
	buf[2] = e.Data[1]
	buf[3] = e.Data[2]
	return EventSize
}

// ParseEvent parses one 4-byte event packet into out.
func ParseEvent(data []byte, out *Event) error {
	if len(data) < EventSize {
		return pkg.ErrBufferTooSmall
	}
	out.Cable = data[0] >> 4
	out.CIN = CIN(data[0] & 0x0F)
	out.Data[0] = data[1]
	out.Data[1] = data[2]
	out.Data[2] = data[3]
	return nil
}

// String returns a human-readable representation of the event.
func (e *Event) String() string {
	n := e.CIN.DataLength()
	return fmt.Sprintf("MIDI[cable %d %s % X]", e.Cable, e.CIN, e.Data[:n])
}

// NoteOn builds a note-on event.
func NoteOn(cable, channel, note, velocity uint8) Event {
	return Event{
		Cable: cable,
		CIN:   CINNoteOn,
		Data:  [3]byte{0x90 | channel&0x0F, note & 0x7F, velocity & 0x7F},
	}
}

// NoteOff builds a note-off event.
func NoteOff(cable, channel, note, velocity uint8) Event {
	return Event{
		Cable: cable,
		CIN:   CINNoteOff,
		Data:  [3]byte{0x80 | channel&0x0F, note & 0x7F, velocity & 0x7F},
	}
}

// ControlChange builds a control-change event.
func ControlChange(cable, channel, controller, value uint8) Event {
	return Event{
		Cable: cable,
		CIN:   CINControlChange,
		Data:  [3]byte{0xB0 | channel&0x0F, controller & 0x7F, value & 0x7F},
	}
}

// ProgramChange builds a program-change event.
func ProgramChange(cable, channel, program uint8) Event {
	return Event{
		Cable: cable,
		CIN:   CINProgramChange,
		Data:  [3]byte{0xC0 | channel&0x0F, program & 0x7F, 0},
	}
}

// PitchBend builds a pitch-bend event from a 14-bit value.
func PitchBend(cable, channel uint8, value uint16) Event {
	return Event{
		Cable: cable,
		CIN:   CINPitchBend,
		Data:  [3]byte{0xE0 | channel&0x0F, uint8(value) & 0x7F, uint8(value>>7) & 0x7F},
	}
}
