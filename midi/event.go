package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// CCAllNotesOff is controller 123
const CCAllNotesOff uint8 = 123

// Event is one outgoing channel message before it is encoded
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC
	Channel  uint8 // zero-based MIDI channel
	Note     uint8 // controller number for CC
	Velocity uint8 // controller value for CC
}

// Message encodes the event for the wire
func (e Event) Message() gomidi.Message {
	ch := e.Channel & 0x0F
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(ch, e.Note&0x7F, e.Velocity&0x7F)
	case NoteOff:
		return gomidi.NoteOff(ch, e.Note&0x7F)
	case CC:
		return gomidi.ControlChange(ch, e.Note&0x7F, e.Velocity&0x7F)
	}
	return nil
}

func (e Event) String() string {
	switch e.Type {
	case NoteOn:
		return fmt.Sprintf("on ch=%d note=%d vel=%d", e.Channel+1, e.Note, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("off ch=%d note=%d", e.Channel+1, e.Note)
	case CC:
		return fmt.Sprintf("cc ch=%d cc=%d val=%d", e.Channel+1, e.Note, e.Velocity)
	}
	return fmt.Sprintf("unknown type=%#x", e.Type)
}
