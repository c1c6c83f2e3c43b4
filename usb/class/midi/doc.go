// Package midi implements a USB-MIDI 1.0 device function.
//
// The function occupies two interfaces: an AudioControl interface that
// owns the MIDIStreaming interface, and the MIDIStreaming interface
// itself carrying one embedded/external jack pair per virtual port and
// a pair of 64-byte bulk endpoints. MIDI traffic crosses the bus as
// 4-byte event packets: a cable/CIN header byte followed by up to three
// MIDI bytes.
//
// Install wires the descriptors into a device under construction; Bind
// attaches the class to the running stack for packet I/O.
package midi
