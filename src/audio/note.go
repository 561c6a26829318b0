package audio

import "fmt"

// Note is identified by channel and note number. Velocity 0 means note-off.
type Note struct {
	Channel  int
	Number   int
	Velocity uint8
}

func noteOnOf(channel int, number int, velocity uint8) Note {
	return Note{Channel: channel, Number: number, Velocity: velocity}
}

func noteOffOf(channel int, number int) Note {
	return Note{Channel: channel, Number: number}
}

// IsNoteOn ...
func (n Note) IsNoteOn() bool {
	return n.Velocity != 0
}

func (n Note) sameKey(other Note) bool {
	return n.Channel == other.Channel && n.Number == other.Number
}

func (n Note) String() string {
	if n.IsNoteOn() {
		return fmt.Sprintf("on(ch=%d, note=%d, vel=%d)", n.Channel, n.Number, n.Velocity)
	}
	return fmt.Sprintf("off(ch=%d, note=%d)", n.Channel, n.Number)
}

// NoteAssignment binds a note to a voice id.
type NoteAssignment struct {
	ID   int
	Note Note
}

func (a NoteAssignment) released() NoteAssignment {
	return NoteAssignment{ID: a.ID, Note: noteOffOf(a.Note.Channel, a.Note.Number)}
}
