package midi

import (
	"bytes"
	"testing"

	"github.com/ardnew/softmcu/pkg"
)

func TestEventMarshal(t *testing.T) {
	ev := NoteOn(1, 3, 53, 124)

	var buf [EventSize]byte
	if n := ev.MarshalTo(buf[:]); n != EventSize {
		t.Fatalf("MarshalTo = %d, want %d", n, EventSize)
	}
	want := []byte{0x19, 0x93, 0x35, 0x7C}
	if !bytes.Equal(buf[:], want) {
		t.Errorf("packet = %X, want %X", buf[:], want)
	}
}

func TestEventParse(t *testing.T) {
	raw := []byte{0x19, 0x93, 0x35, 0x7C}

	var ev Event
	if err := ParseEvent(raw, &ev); err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if ev.Cable != 1 {
		t.Errorf("Cable = %d, want 1", ev.Cable)
	}
	if ev.CIN != CINNoteOn {
		t.Errorf("CIN = %v, want NoteOn", ev.CIN)
	}
	if ev.Data != [3]byte{0x93, 0x35, 0x7C} {
		t.Errorf("Data = %X", ev.Data)
	}
}

func TestEventParseTooShort(t *testing.T) {
	var ev Event
	if err := ParseEvent([]byte{0x19, 0x93}, &ev); err != pkg.ErrBufferTooSmall {
		t.Errorf("error = %v, want ErrBufferTooSmall", err)
	}
}

func TestEventRoundTrip(t *testing.T) {
	events := []Event{
		NoteOff(0, 0, 60, 0),
		NoteOn(2, 9, 38, 100),
		ControlChange(0, 1, 7, 127),
		ProgramChange(1, 5, 12),
		PitchBend(0, 2, 0x2000),
	}

	for _, orig := range events {
		t.Run(orig.CIN.String(), func(t *testing.T) {
			var buf [EventSize]byte
			orig.MarshalTo(buf[:])

			var parsed Event
			if err := ParseEvent(buf[:], &parsed); err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}
			if parsed != orig {
				t.Errorf("round trip = %+v, want %+v", parsed, orig)
			}
		})
	}
}

func TestCINDataLength(t *testing.T) {
	tests := []struct {
		cin  CIN
		want int
	}{
		{CINNoteOn, 3},
		{CINNoteOff, 3},
		{CINControlChange, 3},
		{CINPitchBend, 3},
		{CINProgramChange, 2},
		{CINChannelPressure, 2},
		{CINSystemCommon2, 2},
		{CINSysExEnd1, 1},
		{CINSingleByte, 1},
		{CINSysExStart, 3},
	}
	for _, tt := range tests {
		if got := tt.cin.DataLength(); got != tt.want {
			t.Errorf("%v.DataLength() = %d, want %d", tt.cin, got, tt.want)
		}
	}
}

func TestPitchBendSplit(t *testing.T) {
	ev := PitchBend(0, 0, 0x2000)
	if ev.Data[1] != 0x00 || ev.Data[2] != 0x40 {
		t.Errorf("center bend = %X %X, want 00 40", ev.Data[1], ev.Data[2])
	}
}
