package audio

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/hajimehoshi/oto"
	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/midi/midimessage/channel"
)

const (
	sampleRate       = synthesisRate
	channelNum       = 2
	bitDepthInBytes  = 2
	samplesPerCycle  = 1024
	maxPoly          = 128
	defaultPolyphony = channelCount
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = samplesPerCycle * bytesPerSample // should be >= 4096
const secPerSample = 1.0 / sampleRate

// ----- Utility ----- //

func now() float64 {
	return float64(time.Now().UnixNano()) / 1000 / 1000 / 1000
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// ----- MIDI Event ----- //

// MidiEvent is a message placed at a frame offset inside the next block.
type MidiEvent struct {
	Offset  int
	Message midi.Message
}

// ----- Changes ----- //

// Changes ...
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- State ----- //

type state struct {
	sync.Mutex
	events   []MidiEvent // offsets may reach into the following block
	out      []Frame
	lastRead float64
}

func newState() *state {
	return &state{
		events: make([]MidiEvent, 0, 256),
		out:    make([]Frame, samplesPerCycle),
	}
}

// ----- Audio ----- //

// Config ...
type Config struct {
	Polyphony int
	PresetDir string
}

// Audio drives one chip from MIDI input and host parameter edits.
type Audio struct {
	ctx        context.Context
	otoContext *oto.Context
	CommandCh  chan []string
	state      *state
	Changes    *Changes
	keyboard   *keyboard
	changer    *changer
	queue      *ChangeQueue
	store      *ParameterStore
	presets    *presetManager
	chip       Chip
}

var _ io.Reader = (*Audio)(nil)

type audioJSON struct {
	Polyphony int             `json:"polyphony"`
	State     json.RawMessage `json:"state"`
}

// NewAudio opens the output device. Call Start to begin playback.
func NewAudio(chip Chip, config Config) (*Audio, error) {
	audio, err := newAudio(chip, config)
	if err != nil {
		return nil, err
	}
	otoContext, err := oto.NewContext(sampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	audio.otoContext = otoContext
	go processCommands(audio, audio.CommandCh)
	return audio, nil
}

func newAudio(chip Chip, config Config) (*Audio, error) {
	polyphony := config.Polyphony
	if polyphony == 0 {
		polyphony = defaultPolyphony
	}
	k, err := newKeyboard(polyphony)
	if err != nil {
		return nil, err
	}
	return &Audio{
		ctx:       context.Background(),
		CommandCh: make(chan []string, 256),
		state:     newState(),
		Changes: &Changes{
			dict: make(map[string]struct{}),
		},
		keyboard: k,
		changer:  newChanger(k),
		queue:    NewChangeQueue(),
		store:    NewParameterStore(),
		presets:  newPresetManager(config.PresetDir),
		chip:     chip,
	}, nil
}

// Prepare resets the chip and writes the whole state to it.
func (a *Audio) Prepare() {
	a.changer.discardReservedChanges()
	a.chip.Reset()
	a.changer.reserve(newRegister(addrMode, modeYM2608))
	a.changer.reserveUpdatingAllToneParameter()
	a.changer.triggerReservedChanges(a.chip)
	a.changer.resetRPN()
}

// ProcessBlock fills out while applying queued parameter edits first and
// each event at its offset. Events sharing an offset are flushed together.
// The events slice is sorted in place.
func (a *Audio) ProcessBlock(out []Frame, events []MidiEvent) {
	for _, p := range a.queue.Drain() {
		a.changer.tryReserveParameterChange(p)
	}
	a.changer.triggerReservedChanges(a.chip)

	slices.SortStableFunc(events, func(x, y MidiEvent) int {
		return cmp.Compare(x.Offset, y.Offset)
	})
	start := 0
	position := 0
	pending := false
	for i, e := range events {
		if a.changer.tryReserveChangeFromMidiMessage(e.Message) {
			pending = true
			position = min(max(e.Offset, start), len(out))
		}
		if !pending {
			continue
		}
		if i+1 < len(events) && events[i+1].Offset == e.Offset {
			continue
		}
		if position > start {
			a.chip.Generate(out[start:position])
			start = position
		}
		a.changer.triggerReservedChanges(a.chip)
		pending = false
	}
	if start < len(out) {
		a.chip.Generate(out[start:])
	}
}

// TryReserveChangeFromMidiMessage ...
func (a *Audio) TryReserveChangeFromMidiMessage(message midi.Message) bool {
	return a.changer.tryReserveChangeFromMidiMessage(message)
}

// TryReserveParameterChange ...
func (a *Audio) TryReserveParameterChange(p Parameter) bool {
	return a.changer.tryReserveParameterChange(p)
}

// TriggerReservedChanges ...
func (a *Audio) TriggerReservedChanges() {
	a.changer.triggerReservedChanges(a.chip)
}

// ReserveUpdatingAllToneParameter ...
func (a *Audio) ReserveUpdatingAllToneParameter() {
	a.changer.reserveUpdatingAllToneParameter()
}

// SetParameter records a host edit. It reaches the chip at the next block.
func (a *Audio) SetParameter(id string, value float64) error {
	p, err := ParameterFromValue(id, value)
	if err != nil {
		return err
	}
	a.store.Set(id, value)
	a.queue.Enqueue(p)
	a.Changes.Add("data")
	return nil
}

// SetPolyphony ...
func (a *Audio) SetPolyphony(polyphony int) error {
	offs, err := a.changer.setPolyphony(polyphony)
	if err != nil {
		return err
	}
	if len(offs) > 0 {
		log.Printf("released %d voices\n", len(offs))
	}
	a.Changes.Add("data")
	return nil
}

// Polyphony ...
func (a *Audio) Polyphony() int {
	return a.keyboard.getPolyphony()
}

// Panic releases every voice.
func (a *Audio) Panic() {
	a.changer.forceAllNoteOff()
}

// LoadPreset replaces the tone with a saved one.
func (a *Audio) LoadPreset(name string) error {
	if err := a.presets.applyToParams(name, a.store); err != nil {
		return fmt.Errorf("failed to load preset %q: %w", name, err)
	}
	a.queue.Clear()
	a.changer.resetParameters(a.store.Snapshot())
	a.store.replace(a.changer.parameterValues())
	a.Changes.Add("data")
	return nil
}

// SavePreset stores the current tone.
func (a *Audio) SavePreset(name string) error {
	a.store.replace(a.changer.parameterValues())
	if err := a.presets.save(name, a.store); err != nil {
		return fmt.Errorf("failed to save preset %q: %w", name, err)
	}
	return nil
}

// PresetNames ...
func (a *Audio) PresetNames() ([]string, error) {
	list, err := a.presets.getList()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(list))
	for i, meta := range list {
		names[i] = meta.name
	}
	return names, nil
}

// ApplyJSON ...
func (a *Audio) ApplyJSON(data []byte) error {
	var j audioJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to apply JSON to Audio: %w", err)
	}
	if err := a.store.applyJSON(j.State); err != nil {
		return err
	}
	if j.Polyphony > 0 {
		if err := a.SetPolyphony(j.Polyphony); err != nil {
			return err
		}
	}
	a.queue.Clear()
	a.changer.resetParameters(a.store.Snapshot())
	a.Changes.Add("data")
	return nil
}

// ToJSON ...
func (a *Audio) ToJSON() []byte {
	a.store.replace(a.changer.parameterValues())
	return toRawMessage(&audioJSON{
		Polyphony: a.keyboard.getPolyphony(),
		State:     a.store.toJSON(),
	})
}

func (a *Audio) Read(buf []byte) (int, error) {
	select {
	case <-a.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
		a.state.Lock()
		defer a.state.Unlock()
		timestamp := now()
		frames := len(buf) / bytesPerSample
		if cap(a.state.out) < frames {
			a.state.out = make([]Frame, frames)
		}
		out := a.state.out[:frames]

		var current []MidiEvent
		rest := a.state.events[:0]
		for _, e := range a.state.events {
			if e.Offset < frames {
				current = append(current, e)
			} else {
				e.Offset -= frames
				rest = append(rest, e)
			}
		}
		a.state.events = rest

		a.ProcessBlock(out, current)
		writeBuffer(out, buf)
		a.state.lastRead = timestamp
		return frames * bytesPerSample, nil
	}
}

func writeBuffer(out []Frame, buf []byte) {
	for i, frame := range out {
		for ch := 0; ch < channelNum; ch++ {
			b := frame[ch]
			buf[bytesPerSample*i+2*ch] = byte(b)
			buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
		}
	}
}

func processCommands(audio *Audio, commandCh <-chan []string) {
	for command := range commandCh {
		if err := audio.update(command); err != nil {
			log.Printf("failed to process command %v: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func (a *Audio) update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	args := command[1:]
	switch command[0] {
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("invalid key-value pair %v", args)
		}
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return err
		}
		return a.SetParameter(args[0], value)
	case "poly":
		n, err := intArg(args, 0)
		if err != nil {
			return err
		}
		return a.SetPolyphony(n)
	case "note_on":
		note, err := intArg(args, 0)
		if err != nil {
			return err
		}
		velocity := 100
		if len(args) > 1 {
			if velocity, err = intArg(args, 1); err != nil {
				return err
			}
		}
		a.addMidiEvent(channel.Channel0.NoteOn(uint8(note), uint8(velocity)))
	case "note_off":
		note, err := intArg(args, 0)
		if err != nil {
			return err
		}
		a.addMidiEvent(channel.Channel0.NoteOff(uint8(note)))
	case "pitch_bend":
		value, err := intArg(args, 0)
		if err != nil {
			return err
		}
		a.addMidiEvent(channel.Channel0.Pitchbend(int16(value)))
	case "panic":
		a.Panic()
	case "preset":
		if len(args) != 1 {
			return fmt.Errorf("preset name is required")
		}
		return a.LoadPreset(args[0])
	case "save":
		if len(args) != 1 {
			return fmt.Errorf("preset name is required")
		}
		return a.SavePreset(args[0])
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	return nil
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing argument #%d", i+1)
	}
	v, err := strconv.ParseInt(args[i], 10, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// Close ...
func (a *Audio) Close() error {
	log.Println("Closing Audio...")
	close(a.CommandCh)
	if a.otoContext == nil {
		return nil
	}
	return a.otoContext.Close()
}

// Start ...
func (a *Audio) Start(ctx context.Context) error {
	a.Prepare()
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	a.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// AddMidiEvent schedules a raw message relative to the last rendered block.
func (a *Audio) AddMidiEvent(data []byte) {
	msg, err := decodeMidiMessage(data)
	if err != nil {
		log.Printf("[WARN] %v\n", err)
		return
	}
	a.addMidiEvent(msg)
}

func (a *Audio) addMidiEvent(msg midi.Message) {
	a.state.Lock()
	defer a.state.Unlock()
	offset := now() - a.state.lastRead
	index := int(offset / secPerSample)
	if index < 0 {
		log.Println("[WARN] index < 0")
		index = 0
	}
	if index >= samplesPerCycle*2 {
		log.Println("[WARN] index >= event length")
		index = samplesPerCycle*2 - 1
	}
	a.state.events = append(a.state.events, MidiEvent{Offset: index, Message: msg})
}
