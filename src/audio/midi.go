package audio

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/midi/midireader"
	"gitlab.com/gomidi/rtmididrv"
)

// ListenToMidiIn forwards raw messages from the first input port whose name
// contains portName (any port if empty). The channel is closed when ctx ends.
func ListenToMidiIn(ctx context.Context, portName string) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		log.Printf("MIDI IN: %v\n", ins)

		var in midi.In
		for _, candidate := range ins {
			if strings.Contains(candidate.String(), portName) {
				in = candidate
				break
			}
		}
		if in == nil {
			log.Printf("WARN: MIDI IN not found (port: %q)\n", portName)
			return
		}
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := make([]byte, len(data))
			copy(msg, data)
			select {
			case ch <- msg:
			default:
				log.Println("[WARN] MIDI IN buffer is full")
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
			return
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}

// decodeMidiMessage parses one channel message.
func decodeMidiMessage(data []byte) (midi.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty MIDI message")
	}
	msg, err := midireader.New(bytes.NewReader(data), nil).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to decode MIDI message % x: %w", data, err)
	}
	return msg, nil
}
