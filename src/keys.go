package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// lower row is white keys, upper row is black keys
var keyNotes = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12,
}

const (
	keyOctaveDown = 'z'
	keyOctaveUp   = 'x'
	keyPanic      = ' '
	keyQuit       = 'q'
	keyCtrlC      = 0x03
)

// keyboardState turns key presses into MIDI bytes. Terminals report no key
// release, so every press toggles the note.
type keyboardState struct {
	base int
	held map[int]bool
}

func newKeyboardState() *keyboardState {
	return &keyboardState{
		base: 60,
		held: make(map[int]bool),
	}
}

// handle returns the messages for a key and whether the keyboard should stop.
func (k *keyboardState) handle(b byte) ([][]byte, bool) {
	switch b {
	case keyQuit, keyCtrlC:
		return k.releaseAll(), true
	case keyPanic:
		return k.releaseAll(), false
	case keyOctaveDown:
		if k.base >= 12 {
			k.base -= 12
		}
		return nil, false
	case keyOctaveUp:
		if k.base+12+12 <= 127 {
			k.base += 12
		}
		return nil, false
	}
	offset, ok := keyNotes[b]
	if !ok {
		return nil, false
	}
	note := k.base + offset
	if k.held[note] {
		delete(k.held, note)
		return [][]byte{{0x80, byte(note), 0}}, false
	}
	k.held[note] = true
	return [][]byte{{0x90, byte(note), 100}}, false
}

func (k *keyboardState) releaseAll() [][]byte {
	var messages [][]byte
	for note := range k.held {
		messages = append(messages, []byte{0x80, byte(note), 0})
	}
	clear(k.held)
	return messages
}

// runKeys plays notes from stdin until ctx ends or the quit key is pressed.
func runKeys(ctx context.Context, send func([]byte), quit func()) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()
	if err := syscall.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("failed to set nonblocking stdin: %w", err)
	}
	defer func() {
		_ = syscall.SetNonblock(fd, false)
	}()
	log.Println("keys: a-k to play, z/x to shift octave, space to release, q to quit")

	state := newKeyboardState()
	buf := make([]byte, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := syscall.Read(fd, buf)
		if n > 0 {
			messages, stop := state.handle(buf[0])
			for _, m := range messages {
				send(m)
			}
			if stop {
				quit()
				return nil
			}
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}
