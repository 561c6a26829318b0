package audio

import (
	"log"
	"slices"
	"sync"

	"gitlab.com/gomidi/midi"
	"gitlab.com/gomidi/midi/midimessage/channel"
)

// ----- Changer ----- //

// changer owns the parameter state and turns every state transition into
// the register writes needed to reach it. Writes are reserved here and
// flushed to the chip by triggerReservedChanges.
type changer struct {
	keyboard *keyboard

	paramMu    sync.Mutex
	params     *fmParameters
	noteOnMask uint8 // bit 4-7: enabled operators
	rpn        *rpnDetector

	reservedMu sync.Mutex
	reserved   []Register
}

func newChanger(k *keyboard) *changer {
	c := &changer{
		keyboard: k,
		params:   newFmParameters(),
		rpn:      newRPNDetector(),
		reserved: make([]Register, 0, 256),
	}
	c.noteOnMask = c.params.noteOnMask()
	return c
}

func (c *changer) reserve(changes ...Register) {
	if len(changes) == 0 {
		return
	}
	c.reservedMu.Lock()
	c.reserved = append(c.reserved, changes...)
	c.reservedMu.Unlock()
}

// triggerReservedChanges flushes reserved writes in insertion order.
func (c *changer) triggerReservedChanges(sink RegisterSink) {
	c.reservedMu.Lock()
	changes := c.reserved
	c.reserved = make([]Register, 0, cap(changes))
	c.reservedMu.Unlock()
	for _, r := range changes {
		sink.Write(r.HighBank, r.Address, r.Data)
	}
}

func (c *changer) reservedChanges() []Register {
	c.reservedMu.Lock()
	defer c.reservedMu.Unlock()
	return slices.Clone(c.reserved)
}

func (c *changer) discardReservedChanges() {
	c.reservedMu.Lock()
	c.reserved = c.reserved[:0]
	c.reservedMu.Unlock()
}

// ----- Register Encoding ----- //

func (p *fmParameters) fbAlgorithm() uint8 {
	return p.fb.get()<<3 | p.al.get()
}

func (p *fmParameters) detuneMultiple(slot int) uint8 {
	o := &p.operators[slot]
	return detuneRegisterValue(o.dt.get())<<4 | o.ml.get()
}

// keyScaleAttackRate forces the maximum attack rate while SSG-EG is enabled.
func (p *fmParameters) keyScaleAttackRate(slot int) uint8 {
	o := &p.operators[slot]
	ar := o.ar.get()
	if o.ssgegEnabled {
		ar = rangeRate.max
	}
	return o.ks.get()<<6 | ar
}

func (p *fmParameters) amonDecayRate(slot int) uint8 {
	o := &p.operators[slot]
	return uint8(boolToInt(o.amon))<<7 | o.dr.get()
}

func (p *fmParameters) sustainLevelReleaseRate(slot int) uint8 {
	o := &p.operators[slot]
	return o.sl.get()<<4 | o.rr.get()
}

func (p *fmParameters) ssgeg(slot int) uint8 {
	o := &p.operators[slot]
	if !o.ssgegEnabled {
		return 0
	}
	return ssgegEnabledFlag | o.ssgegShape.get()
}

func (p *fmParameters) panAmsPms() uint8 {
	return panningCenter | p.lfo.ams.get()<<4 | p.lfo.pms.get()
}

func (p *fmParameters) lfoControl() uint8 {
	return uint8(boolToInt(p.lfo.enabled))<<3 | p.lfo.frequency.get()
}

func (p *fmParameters) noteOnMask() uint8 {
	var mask uint8
	for slot, o := range p.operators {
		if o.enabled {
			mask |= 1 << (slot + 4)
		}
	}
	return mask
}

// ----- Register Builders ----- //

func (c *changer) channelWrites(base uint16, data uint8) []Register {
	ids := c.keyboard.usedAssignIDs()
	changes := make([]Register, 0, len(ids))
	for _, id := range ids {
		if !isHardwareChannel(id) {
			// TODO: route voices beyond the hardware channels once polyphony can exceed them
			continue
		}
		changes = append(changes, newRegister(addressOfChannel(id, base), data))
	}
	return changes
}

func (c *changer) operatorWrites(slot int, base uint16, data uint8) []Register {
	return c.channelWrites(addressOfOperator(slot, base), data)
}

func (c *changer) keyOnWrite(id int) (Register, bool) {
	if !isHardwareChannel(id) {
		return Register{}, false
	}
	return newRegister(addrKeyOn, keyOnChannel[id]|c.noteOnMask), true
}

func keyOffWrite(id int) (Register, bool) {
	if !isHardwareChannel(id) {
		return Register{}, false
	}
	return newRegister(addrKeyOn, keyOnChannel[id]), true
}

// pitchWrites must be called with paramMu held.
func (c *changer) pitchWrites(a NoteAssignment) []Register {
	if !isHardwareChannel(a.ID) {
		return nil
	}
	cent := calculateCent(a.Note.Number, c.params.pitchBend.get(), c.params.pbs.get())
	blockFNum := blockAndFNumber(cent)
	return []Register{
		newRegister(addressOfChannel(a.ID, addrBlockFNum2), uint8(blockFNum>>8)),
		newRegister(addressOfChannel(a.ID, addrFNum1), uint8(blockFNum&0xff)),
	}
}

func (c *changer) pitchWritesForSounding() []Register {
	var changes []Register
	for _, a := range c.keyboard.noteOns() {
		changes = append(changes, c.pitchWrites(a)...)
	}
	return changes
}

// refreshNoteOnMask is the single place where the operator mask is rebuilt.
// Every sounding voice gets its trigger register rewritten.
func (c *changer) refreshNoteOnMask() []Register {
	c.noteOnMask = c.params.noteOnMask()
	var changes []Register
	for _, a := range c.keyboard.noteOns() {
		if r, ok := c.keyOnWrite(a.ID); ok {
			changes = append(changes, r)
		}
	}
	return changes
}

// toneWrites builds every per-channel register for the given voice ids.
func (c *changer) toneWrites(ids []int) []Register {
	p := c.params
	changes := make([]Register, 0, len(ids)*(2+slotCount*7))
	for _, id := range ids {
		if !isHardwareChannel(id) {
			continue
		}
		write := func(address uint16, data uint8) {
			changes = append(changes, newRegister(addressOfChannel(id, address), data))
		}
		write(addrFbAlgorithm, p.fbAlgorithm())
		for slot := 0; slot < slotCount; slot++ {
			write(addressOfOperator(slot, addrDetuneMul), p.detuneMultiple(slot))
			write(addressOfOperator(slot, addrTotalLevel), p.operators[slot].tl.get())
			write(addressOfOperator(slot, addrKeyScaleAr), p.keyScaleAttackRate(slot))
			write(addressOfOperator(slot, addrAmonDr), p.amonDecayRate(slot))
			write(addressOfOperator(slot, addrSustainRate), p.operators[slot].sr.get())
			write(addressOfOperator(slot, addrSlRr), p.sustainLevelReleaseRate(slot))
			write(addressOfOperator(slot, addrSsgeg), p.ssgeg(slot))
		}
		write(addrPanAmsPms, p.panAmsPms())
	}
	return changes
}

// ----- Parameter Changes ----- //

// tryReserveParameterChange returns false if the value is out of range or
// equal to the current state. No register is reserved in that case.
func (c *changer) tryReserveParameterChange(param Parameter) bool {
	if !param.inRange() {
		return false
	}
	c.paramMu.Lock()
	defer c.paramMu.Unlock()

	p := c.params
	v := param.Value
	var changes []Register
	switch param.Kind {
	case PitchBendSensitivity:
		if !p.pbs.trySet(v) {
			return false
		}
		changes = c.pitchWritesForSounding()
	case Algorithm:
		if !p.al.trySet(uint8(v)) {
			return false
		}
		changes = c.channelWrites(addrFbAlgorithm, p.fbAlgorithm())
	case Feedback:
		if !p.fb.trySet(uint8(v)) {
			return false
		}
		changes = c.channelWrites(addrFbAlgorithm, p.fbAlgorithm())
	case LfoEnabled:
		if !trySetBool(&p.lfo.enabled, v) {
			return false
		}
		changes = []Register{newRegister(addrLfo, p.lfoControl())}
	case LfoFrequency:
		if !p.lfo.frequency.trySet(uint8(v)) {
			return false
		}
		changes = []Register{newRegister(addrLfo, p.lfoControl())}
	case Pms:
		if !p.lfo.pms.trySet(uint8(v)) {
			return false
		}
		changes = c.channelWrites(addrPanAmsPms, p.panAmsPms())
	case Ams:
		if !p.lfo.ams.trySet(uint8(v)) {
			return false
		}
		changes = c.channelWrites(addrPanAmsPms, p.panAmsPms())
	default:
		var ok bool
		changes, ok = c.tryChangeOperator(param)
		if !ok {
			return false
		}
	}
	c.reserve(changes...)
	return true
}

func (c *changer) tryChangeOperator(param Parameter) ([]Register, bool) {
	slot := param.Slot
	v := param.Value
	p := c.params
	o := &p.operators[slot]
	switch param.Kind {
	case OperatorEnabled:
		if !trySetBool(&o.enabled, v) {
			return nil, false
		}
		return c.refreshNoteOnMask(), true
	case AttackRate:
		if !o.ar.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrKeyScaleAr, p.keyScaleAttackRate(slot)), true
	case KeyScale:
		if !o.ks.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrKeyScaleAr, p.keyScaleAttackRate(slot)), true
	case DecayRate:
		if !o.dr.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrAmonDr, p.amonDecayRate(slot)), true
	case AmplitudeModulationEnabled:
		if !trySetBool(&o.amon, v) {
			return nil, false
		}
		return c.operatorWrites(slot, addrAmonDr, p.amonDecayRate(slot)), true
	case SustainRate:
		if !o.sr.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrSustainRate, o.sr.get()), true
	case ReleaseRate:
		if !o.rr.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrSlRr, p.sustainLevelReleaseRate(slot)), true
	case SustainLevel:
		if !o.sl.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrSlRr, p.sustainLevelReleaseRate(slot)), true
	case TotalLevel:
		if !o.tl.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrTotalLevel, o.tl.get()), true
	case Multiple:
		if !o.ml.trySet(uint8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrDetuneMul, p.detuneMultiple(slot)), true
	case Detune:
		if !o.dt.trySet(int8(v)) {
			return nil, false
		}
		return c.operatorWrites(slot, addrDetuneMul, p.detuneMultiple(slot)), true
	case SsgegEnabled:
		if !trySetBool(&o.ssgegEnabled, v) {
			return nil, false
		}
		changes := c.operatorWrites(slot, addrSsgeg, p.ssgeg(slot))
		return append(changes, c.operatorWrites(slot, addrKeyScaleAr, p.keyScaleAttackRate(slot))...), true
	case SsgegShape:
		if !o.ssgegShape.trySet(uint8(v)) {
			return nil, false
		}
		if !o.ssgegEnabled {
			return nil, true
		}
		return c.operatorWrites(slot, addrSsgeg, p.ssgeg(slot)), true
	}
	log.Printf("[WARN] unhandled parameter kind: %v\n", param.Kind)
	return nil, false
}

func trySetBool(target *bool, v int) bool {
	value := v != 0
	if *target == value {
		return false
	}
	*target = value
	return true
}

// ----- MIDI ----- //

// tryReserveChangeFromMidiMessage returns true iff at least one register
// write was reserved.
func (c *changer) tryReserveChangeFromMidiMessage(message midi.Message) bool {
	if cc, ok := message.(channel.ControlChange); ok {
		return c.tryReserveControlChange(int(cc.Channel()), cc.Controller(), cc.Value())
	}

	c.paramMu.Lock()
	c.rpn.reset()
	c.paramMu.Unlock()

	switch m := message.(type) {
	case channel.NoteOn:
		if m.Velocity() == 0 {
			return c.reserveNoteOff(noteOffOf(int(m.Channel()), int(m.Key())))
		}
		return c.reserveNoteOn(noteOnOf(int(m.Channel()), int(m.Key()), m.Velocity()))
	case channel.NoteOff:
		return c.reserveNoteOff(noteOffOf(int(m.Channel()), int(m.Key())))
	case channel.Pitchbend:
		return c.reservePitchBend(int(m.Value()))
	}
	// note-off with release velocity
	if raw := message.Raw(); len(raw) >= 2 && raw[0]&0xf0 == 0x80 {
		return c.reserveNoteOff(noteOffOf(int(raw[0]&0x0f), int(raw[1])))
	}
	return false
}

func (c *changer) tryReserveControlChange(ch int, controller uint8, value uint8) bool {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	m, ok := c.rpn.tryParse(ch, controller, value)
	if !ok {
		return false
	}
	if m.isNRPN || m.parameterNumber != rpnPitchBendSensitivity {
		return false
	}
	c.rpn.reset()
	// pitch bend sensitivity is shared by all channels
	if !c.params.pbs.trySet(m.coarse()) {
		return false
	}
	changes := c.pitchWritesForSounding()
	c.reserve(changes...)
	return len(changes) > 0
}

func (c *changer) reserveNoteOn(note Note) bool {
	assignments := c.keyboard.tryNoteOn(note)
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	var changes []Register
	for _, a := range assignments {
		if a.Note.IsNoteOn() {
			changes = append(changes, c.pitchWrites(a)...)
			if r, ok := c.keyOnWrite(a.ID); ok {
				changes = append(changes, r)
			}
		} else if r, ok := keyOffWrite(a.ID); ok {
			changes = append(changes, r)
		}
	}
	c.reserve(changes...)
	return len(changes) > 0
}

func (c *changer) reserveNoteOff(note Note) bool {
	a, ok := c.keyboard.tryNoteOff(note)
	if !ok {
		return false
	}
	r, ok := keyOffWrite(a.ID)
	if !ok {
		return false
	}
	c.reserve(r)
	return true
}

func (c *changer) reservePitchBend(value int) bool {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	if !c.params.pitchBend.trySet(value) {
		return false
	}
	changes := c.pitchWritesForSounding()
	c.reserve(changes...)
	return len(changes) > 0
}

func (c *changer) resetRPN() {
	c.paramMu.Lock()
	c.rpn.reset()
	c.paramMu.Unlock()
}

// ----- Voices ----- //

func (c *changer) reserveNoteOffs(assignments []NoteAssignment) {
	var changes []Register
	for _, a := range assignments {
		if r, ok := keyOffWrite(a.ID); ok {
			changes = append(changes, r)
		}
	}
	c.reserve(changes...)
}

func (c *changer) forceAllNoteOff() []NoteAssignment {
	offs := c.keyboard.forceAllNoteOff()
	c.reserveNoteOffs(offs)
	return offs
}

// setPolyphony releases evicted voices and sends the whole tone to channels
// that become usable.
func (c *changer) setPolyphony(polyphony int) ([]NoteAssignment, error) {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	before := c.keyboard.usedAssignIDs()
	offs, err := c.keyboard.setPolyphony(polyphony)
	if err != nil {
		return nil, err
	}
	c.reserveNoteOffs(offs)
	var added []int
	for _, id := range c.keyboard.usedAssignIDs() {
		if _, found := slices.BinarySearch(before, id); !found {
			added = append(added, id)
		}
	}
	c.reserve(c.toneWrites(added)...)
	return offs, nil
}

// ----- Full State ----- //

// reserveUpdatingAllToneParameter reserves every register needed to restore
// the parameter state on a freshly reset chip.
func (c *changer) reserveUpdatingAllToneParameter() {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	c.reserveAllLocked()
}

func (c *changer) reserveAllLocked() {
	changes := c.toneWrites(c.keyboard.usedAssignIDs())
	changes = append(changes, newRegister(addrLfo, c.params.lfoControl()))
	c.noteOnMask = c.params.noteOnMask()
	c.reserve(changes...)
}

// resetParameters replaces the whole state, clamping the given values onto
// the defaults, and reserves a full update.
func (c *changer) resetParameters(values map[string]float64) {
	p := newFmParameters()
	p.applyValues(values)
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	// performance state survives a tone change
	p.pitchBend = c.params.pitchBend
	if _, ok := values[Parameter{Kind: PitchBendSensitivity}.ID()]; !ok {
		p.pbs = c.params.pbs
	}
	c.params = p
	c.reserveAllLocked()
}

func (c *changer) parameterValues() map[string]float64 {
	c.paramMu.Lock()
	defer c.paramMu.Unlock()
	return c.params.values()
}
