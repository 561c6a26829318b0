package audio

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrInvalidPolyphony is returned for polyphony outside 1..maxPoly.
	ErrInvalidPolyphony = errors.New("invalid polyphony")
	// ErrBrokenPolyphonyState means the id accounting of the keyboard is inconsistent.
	ErrBrokenPolyphonyState = errors.New("polyphony state is broken")
)

// ----- Keyboard ----- //

// keyboard assigns notes to voice ids. The oldest note is stolen first.
type keyboard struct {
	sync.Mutex
	// sounding + free = polyphony
	sounding  []NoteAssignment
	free      []int
	polyphony int
}

func newKeyboard(polyphony int) (*keyboard, error) {
	if polyphony <= 0 || polyphony > maxPoly {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolyphony, polyphony)
	}
	free := make([]int, polyphony)
	for i := range free {
		free[i] = i
	}
	return &keyboard{
		sounding:  make([]NoteAssignment, 0, polyphony),
		free:      free,
		polyphony: polyphony,
	}, nil
}

func (k *keyboard) getPolyphony() int {
	k.Lock()
	defer k.Unlock()
	return k.polyphony
}

func (k *keyboard) tryNoteOn(note Note) []NoteAssignment {
	if !note.IsNoteOn() {
		return nil
	}
	k.Lock()
	defer k.Unlock()

	changes := make([]NoteAssignment, 0, 3)
	if off, ok := k.tryNoteOffLocked(note); ok {
		changes = append(changes, off)
	}
	if len(k.free) == 0 {
		oldest := k.sounding[0]
		k.sounding = k.sounding[1:]
		k.free = append(k.free, oldest.ID)
		changes = append(changes, oldest.released())
	}
	assignment := NoteAssignment{ID: k.free[0], Note: note}
	k.free = k.free[1:]
	k.sounding = append(k.sounding, assignment)
	return append(changes, assignment)
}

func (k *keyboard) tryNoteOff(note Note) (NoteAssignment, bool) {
	k.Lock()
	defer k.Unlock()
	return k.tryNoteOffLocked(note)
}

func (k *keyboard) tryNoteOffLocked(note Note) (NoteAssignment, bool) {
	index := slices.IndexFunc(k.sounding, func(a NoteAssignment) bool {
		return a.Note.sameKey(note)
	})
	if index < 0 {
		return NoteAssignment{}, false
	}
	found := k.sounding[index]
	k.sounding = slices.Delete(k.sounding, index, index+1)
	k.free = append(k.free, found.ID)
	return found.released(), true
}

// usedAssignIDs returns every valid id, sounding or free, in ascending order.
func (k *keyboard) usedAssignIDs() []int {
	k.Lock()
	defer k.Unlock()
	return k.usedAssignIDsLocked()
}

func (k *keyboard) usedAssignIDsLocked() []int {
	ids := make([]int, 0, len(k.sounding)+len(k.free))
	for _, a := range k.sounding {
		ids = append(ids, a.ID)
	}
	ids = append(ids, k.free...)
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (k *keyboard) noteOns() []NoteAssignment {
	k.Lock()
	defer k.Unlock()
	return slices.Clone(k.sounding)
}

// setPolyphony returns note-offs for voices evicted by shrinking.
func (k *keyboard) setPolyphony(newPolyphony int) ([]NoteAssignment, error) {
	if newPolyphony <= 0 || newPolyphony > maxPoly {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPolyphony, newPolyphony)
	}
	k.Lock()
	defer k.Unlock()

	oldPolyphony := k.polyphony
	if used := len(k.usedAssignIDsLocked()); used != oldPolyphony ||
		len(k.sounding)+len(k.free) != oldPolyphony {
		return nil, fmt.Errorf("%w: %d ids for polyphony %d", ErrBrokenPolyphonyState, used, oldPolyphony)
	}
	switch {
	case newPolyphony < oldPolyphony:
		decreased := oldPolyphony - newPolyphony

		// drop the highest free ids first
		fromFree := min(decreased, len(k.free))
		if fromFree > 0 {
			sorted := slices.Sorted(slices.Values(k.free))
			dropped := sorted[len(sorted)-fromFree:]
			k.free = slices.DeleteFunc(k.free, func(id int) bool {
				_, found := slices.BinarySearch(dropped, id)
				return found
			})
		}
		decreased -= fromFree
		k.polyphony = newPolyphony
		if decreased == 0 {
			return nil, nil
		}

		offs := make([]NoteAssignment, decreased)
		for i, a := range k.sounding[:decreased] {
			offs[i] = a.released()
		}
		k.sounding = slices.Delete(k.sounding, 0, decreased)
		return offs, nil
	case oldPolyphony < newPolyphony:
		used := k.usedAssignIDsLocked()
		unused := make([]int, 0, newPolyphony)
		for id := 0; id < newPolyphony; id++ {
			if _, found := slices.BinarySearch(used, id); !found {
				unused = append(unused, id)
			}
		}
		increased := newPolyphony - oldPolyphony
		if len(unused) < increased {
			return nil, fmt.Errorf("%w: only %d ids available for %d new voices", ErrBrokenPolyphonyState, len(unused), increased)
		}
		k.free = append(k.free, unused[:increased]...)
		k.polyphony = newPolyphony
		return nil, nil
	}
	return nil, nil
}

func (k *keyboard) forceAllNoteOff() []NoteAssignment {
	k.Lock()
	defer k.Unlock()
	offs := make([]NoteAssignment, len(k.sounding))
	for i, a := range k.sounding {
		offs[i] = a.released()
		k.free = append(k.free, a.ID)
	}
	k.sounding = k.sounding[:0]
	return offs
}
