package audio

import (
	"testing"

	"gitlab.com/gomidi/midi/midimessage/channel"
)

func newTestChanger(t *testing.T, polyphony int) *changer {
	t.Helper()
	return newChanger(newTestKeyboard(t, polyphony))
}

// take returns and clears the reserved writes.
func take(c *changer) []Register {
	changes := c.reservedChanges()
	c.discardReservedChanges()
	return changes
}

func reg(address uint16, data uint8) Register {
	return newRegister(address, data)
}

func allChannels(base uint16, data uint8) []Register {
	changes := make([]Register, channelCount)
	for id := 0; id < channelCount; id++ {
		changes[id] = reg(addressOfChannel(id, base), data)
	}
	return changes
}

func TestParameterChangeIsIdempotent(t *testing.T) {
	c := newTestChanger(t, 6)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: Algorithm, Value: 3}), true)
	expectDeepEqual(t, take(c), allChannels(addrFbAlgorithm, 0x03))

	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: Algorithm, Value: 3}), false)
	expectEqual(t, len(take(c)), 0)
}

func TestFeedbackAndAlgorithmSharedRegister(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: Algorithm, Value: 5})
	take(c)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: Feedback, Value: 6}), true)
	expectDeepEqual(t, take(c), allChannels(addrFbAlgorithm, 6<<3|5))
}

func TestParameterChangeOutOfRange(t *testing.T) {
	c := newTestChanger(t, 6)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: TotalLevel, Value: 128}), false)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: Detune, Value: -4}), false)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: TotalLevel, Slot: 4, Value: 1}), false)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: parameterKindCount, Value: 0}), false)
	expectEqual(t, len(take(c)), 0)
	expectEqual(t, c.parameterValues()["tl1"], 0.0)
}

func TestOperatorAddressing(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: TotalLevel, Slot: 1, Value: 20})
	changes := take(c)
	expectEqual(t, len(changes), channelCount)
	// slot 2 is at +8
	expectEqual(t, changes[0], reg(0x48, 20))
	expectEqual(t, changes[3], reg(0x148, 20))
	expectEqual(t, changes[5], reg(0x14a, 20))
}

func TestDetuneMultiple(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: Multiple, Value: 1})
	expectEqual(t, take(c)[0], reg(addrDetuneMul, 0x01))
	c.tryReserveParameterChange(Parameter{Kind: Detune, Value: -3})
	expectEqual(t, take(c)[0], reg(addrDetuneMul, 0x71))
	c.tryReserveParameterChange(Parameter{Kind: Detune, Value: 2})
	expectEqual(t, take(c)[0], reg(addrDetuneMul, 0x21))
}

func TestSsgegForcesAttackRate(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: KeyScale, Value: 1})
	c.tryReserveParameterChange(Parameter{Kind: AttackRate, Value: 20})
	expectEqual(t, take(c)[channelCount], reg(addrKeyScaleAr, 1<<6|20))

	c.tryReserveParameterChange(Parameter{Kind: SsgegShape, Value: 5})
	expectEqual(t, len(take(c)), 0)

	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: SsgegEnabled, Value: 1}), true)
	changes := take(c)
	expectEqual(t, len(changes), channelCount*2)
	expectEqual(t, changes[0], reg(addrSsgeg, 0x08|5))
	expectEqual(t, changes[channelCount], reg(addrKeyScaleAr, 1<<6|31))

	// stored but overridden while SSG-EG is on
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: AttackRate, Value: 10}), true)
	expectEqual(t, take(c)[0], reg(addrKeyScaleAr, 1<<6|31))
	expectEqual(t, c.parameterValues()["ar1"], 10.0)

	c.tryReserveParameterChange(Parameter{Kind: SsgegShape, Value: 2})
	expectEqual(t, take(c)[0], reg(addrSsgeg, 0x08|2))

	c.tryReserveParameterChange(Parameter{Kind: SsgegEnabled, Value: 0})
	changes = take(c)
	expectEqual(t, changes[0], reg(addrSsgeg, 0))
	expectEqual(t, changes[channelCount], reg(addrKeyScaleAr, 1<<6|10))
}

func TestLfoControlIsGlobal(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: LfoFrequency, Value: 3})
	expectDeepEqual(t, take(c), []Register{reg(addrLfo, 0x03)})
	c.tryReserveParameterChange(Parameter{Kind: LfoEnabled, Value: 1})
	expectDeepEqual(t, take(c), []Register{reg(addrLfo, 0x0b)})
	c.tryReserveParameterChange(Parameter{Kind: Ams, Value: 2})
	expectDeepEqual(t, take(c), allChannels(addrPanAmsPms, 0xc0|2<<4))
	c.tryReserveParameterChange(Parameter{Kind: Pms, Value: 7})
	expectDeepEqual(t, take(c), allChannels(addrPanAmsPms, 0xc0|2<<4|7))
}

func TestNoteOnWritesPitchThenTrigger(t *testing.T) {
	c := newTestChanger(t, 6)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100)), true)
	expectDeepEqual(t, take(c), []Register{
		reg(addrBlockFNum2, 0x22),
		reg(addrFNum1, 0x6a),
		reg(addrKeyOn, 0xf0),
	})

	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(69, 100)), true)
	expectDeepEqual(t, take(c), []Register{
		reg(addrBlockFNum2+1, 0x24),
		reg(addrFNum1+1, 0x10),
		reg(addrKeyOn, 0xf1),
	})
}

func TestSeventhNoteStealsFirstVoice(t *testing.T) {
	c := newTestChanger(t, 6)
	for i := 0; i < 6; i++ {
		c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(uint8(60+i), 100))
	}
	take(c)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(72, 100)), true)
	changes := take(c)
	expectEqual(t, len(changes), 4)
	expectEqual(t, changes[0], reg(addrKeyOn, 0x00))
	expectEqual(t, changes[1], reg(addrBlockFNum2, 5<<3|0x02))
	expectEqual(t, changes[2], reg(addrFNum1, 0x6a))
	expectEqual(t, changes[3], reg(addrKeyOn, 0xf0))
}

func TestHighBankChannelKeyOn(t *testing.T) {
	c := newTestChanger(t, 6)
	for i := 0; i < 4; i++ {
		c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(uint8(60+i), 100))
	}
	changes := take(c)
	expectEqual(t, changes[9], reg(0x1a4, 0x22))
	expectEqual(t, changes[11], reg(addrKeyOn, 0xf4))
}

func TestNoteOff(t *testing.T) {
	c := newTestChanger(t, 6)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOff(60)), false)

	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(62, 100))
	take(c)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(62, 0)), true)
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0x01)})
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOff(60)), true)
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0x00)})
}

func TestNoteOffWithReleaseVelocity(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	take(c)
	msg, err := decodeMidiMessage([]byte{0x80, 60, 64})
	expectNoError(t, err)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(msg), true)
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0x00)})
}

func TestPitchBendUpdatesSoundingVoices(t *testing.T) {
	c := newTestChanger(t, 6)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(8191)), false)

	c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	take(c)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(8191)), true)
	expectDeepEqual(t, take(c), []Register{
		reg(addrBlockFNum2, 0x22),
		reg(addrFNum1, 0xb6),
	})
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(8191)), false)
}

func TestPitchBendSensitivityUpdatesOnlySoundingVoices(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(64, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOff(64))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(8191))
	take(c)

	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: PitchBendSensitivity, Value: 12}), true)
	expectDeepEqual(t, take(c), []Register{
		reg(addrBlockFNum2, 5<<3|0x02),
		reg(addrFNum1, 0x6a),
	})
}

func TestPitchBendSensitivityFromRPN(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(8191))
	take(c)

	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNMSB, 0)), false)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNLSB, 0)), false)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccDataEntryMSB, 12)), true)
	expectDeepEqual(t, take(c), []Register{
		reg(addrBlockFNum2, 5<<3|0x02),
		reg(addrFNum1, 0x6a),
	})
	expectEqual(t, c.parameterValues()["pitchBendSensitivity"], 12.0)

	// out of range
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNMSB, 0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNLSB, 0))
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccDataEntryMSB, 48)), false)
	expectEqual(t, c.parameterValues()["pitchBendSensitivity"], 12.0)
}

func TestRPNIsInterruptedByOtherMessages(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNMSB, 0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNLSB, 0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	take(c)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccDataEntryMSB, 12)), false)
	expectEqual(t, c.parameterValues()["pitchBendSensitivity"], 2.0)
}

func TestOtherRPNIsIgnored(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNMSB, 0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccRPNLSB, 1))
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccDataEntryMSB, 12)), false)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccNRPNMSB, 0))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccNRPNLSB, 0))
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.ControlChange(ccDataEntryMSB, 12)), false)
	expectEqual(t, c.parameterValues()["pitchBendSensitivity"], 2.0)
}

func TestOperatorEnabledRewritesTrigger(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	take(c)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: OperatorEnabled, Slot: 1, Value: 0}), true)
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0xd0)})

	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(62, 100))
	expectEqual(t, take(c)[2], reg(addrKeyOn, 0xd1))
}

func TestVoicesBeyondHardwareChannelsAreSkipped(t *testing.T) {
	c := newTestChanger(t, 8)
	for i := 0; i < 6; i++ {
		c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(uint8(60+i), 100))
	}
	take(c)
	expectEqual(t, c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(66, 100)), false)
	expectEqual(t, len(take(c)), 0)

	c.tryReserveParameterChange(Parameter{Kind: Algorithm, Value: 1})
	expectEqual(t, len(take(c)), channelCount)
}

func TestReserveUpdatingAllToneParameter(t *testing.T) {
	c := newTestChanger(t, 6)
	c.reserveUpdatingAllToneParameter()
	changes := take(c)
	// $b0 + 4 slots * 7 + $b4 per channel, then $22
	expectEqual(t, len(changes), channelCount*(1+slotCount*7+1)+1)
	expectEqual(t, changes[0], reg(addrFbAlgorithm, 0x07))
	expectEqual(t, changes[len(changes)-1], reg(addrLfo, 0x00))
	expectEqual(t, changes[len(changes)-2], reg(0x1b6, 0xc0))
}

func TestSetPolyphonyWritesToneToNewChannels(t *testing.T) {
	c := newTestChanger(t, 4)
	offs, err := c.setPolyphony(6)
	expectNoError(t, err)
	expectEqual(t, len(offs), 0)
	changes := take(c)
	expectEqual(t, len(changes), 2*(1+slotCount*7+1))
	expectEqual(t, changes[0], reg(0x1b1, 0x07))
}

func TestSetPolyphonyReleasesEvictedVoices(t *testing.T) {
	c := newTestChanger(t, 6)
	for i := 0; i < 6; i++ {
		c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(uint8(60+i), 100))
	}
	take(c)
	offs, err := c.setPolyphony(4)
	expectNoError(t, err)
	expectEqual(t, len(offs), 2)
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0x00), reg(addrKeyOn, 0x01)})
}

func TestForceAllNoteOff(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(61, 100))
	take(c)
	c.forceAllNoteOff()
	expectDeepEqual(t, take(c), []Register{reg(addrKeyOn, 0x00), reg(addrKeyOn, 0x01)})
	expectEqual(t, len(c.keyboard.noteOns()), 0)
}

func TestResetParameters(t *testing.T) {
	c := newTestChanger(t, 6)
	c.tryReserveParameterChange(Parameter{Kind: PitchBendSensitivity, Value: 7})
	c.tryReserveChangeFromMidiMessage(channel.Channel0.Pitchbend(100))
	take(c)
	c.resetParameters(map[string]float64{"al": 9, "fb": 3, "tl2": -1, "unknown": 1})
	values := c.parameterValues()
	expectEqual(t, values["al"], 7.0)
	expectEqual(t, values["fb"], 3.0)
	expectEqual(t, values["tl2"], 0.0)
	expectEqual(t, values["pitchBendSensitivity"], 7.0)
	changes := take(c)
	expectEqual(t, len(changes), channelCount*(1+slotCount*7+1)+1)
	expectEqual(t, changes[0], reg(addrFbAlgorithm, 3<<3|7))
}

func TestTriggerReservedChangesKeepsOrder(t *testing.T) {
	c := newTestChanger(t, 6)
	log := NewRegisterLog()
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOn(60, 100))
	c.tryReserveChangeFromMidiMessage(channel.Channel0.NoteOff(60))
	c.triggerReservedChanges(log)
	expectDeepEqual(t, log.Writes(), []Register{
		reg(addrBlockFNum2, 0x22),
		reg(addrFNum1, 0x6a),
		reg(addrKeyOn, 0xf0),
		reg(addrKeyOn, 0x00),
	})
	expectEqual(t, len(c.reservedChanges()), 0)
}

func TestPitchBendSensitivityWritesOnePairPerSoundingVoice(t *testing.T) {
	c := newTestChanger(t, 6)
	for _, n := range []uint8{60, 64, 67} {
		c.tryReserveChangeFromMidiMessage(channel.Channel1.NoteOn(n, 100))
	}
	take(c)
	expectEqual(t, c.tryReserveParameterChange(Parameter{Kind: PitchBendSensitivity, Value: 5}), true)
	changes := take(c)
	expectEqual(t, len(changes), 3*2)
	for i, r := range changes {
		expectEqual(t, r.HighBank, false)
		address := uint16(r.Address)
		expectTrue(t, address == addrBlockFNum2+uint16(i/2) || address == addrFNum1+uint16(i/2))
	}
}
