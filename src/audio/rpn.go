package audio

// ----- RPN Detector ----- //

const (
	ccDataEntryMSB = 6
	ccDataEntryLSB = 38
	ccNRPNLSB      = 98
	ccNRPNMSB      = 99
	ccRPNLSB       = 100
	ccRPNMSB       = 101
)

const rpnPitchBendSensitivity = 0

type rpnMessage struct {
	channel         int
	parameterNumber int
	value           int
	isNRPN          bool
	is14Bit         bool
}

// semitones reads the coarse part of the value.
func (m rpnMessage) coarse() int {
	if m.is14Bit {
		return m.value >> 7
	}
	return m.value
}

type rpnChannelState struct {
	parameterMSB int
	parameterLSB int
	valueMSB     int
	valueLSB     int
	isNRPN       bool
}

func (s *rpnChannelState) reset() {
	*s = rpnChannelState{parameterMSB: -1, parameterLSB: -1, valueMSB: -1, valueLSB: -1}
}

func (s *rpnChannelState) resetValue() {
	s.valueMSB = -1
	s.valueLSB = -1
}

// rpnDetector collects CC 101/100 (or 99/98) followed by 6/38 per MIDI channel.
type rpnDetector struct {
	channels [16]rpnChannelState
}

func newRPNDetector() *rpnDetector {
	d := &rpnDetector{}
	d.reset()
	return d
}

func (d *rpnDetector) reset() {
	for i := range d.channels {
		d.channels[i].reset()
	}
}

// tryParse returns false until a complete message is available.
func (d *rpnDetector) tryParse(channel int, controller uint8, value uint8) (rpnMessage, bool) {
	if channel < 0 || channel >= len(d.channels) {
		return rpnMessage{}, false
	}
	s := &d.channels[channel]
	v := int(value)
	switch controller {
	case ccNRPNMSB:
		s.isNRPN = true
		s.parameterMSB = v
		s.resetValue()
	case ccNRPNLSB:
		s.isNRPN = true
		s.parameterLSB = v
		s.resetValue()
	case ccRPNMSB:
		s.isNRPN = false
		s.parameterMSB = v
		s.resetValue()
	case ccRPNLSB:
		s.isNRPN = false
		s.parameterLSB = v
		s.resetValue()
	case ccDataEntryMSB:
		s.valueMSB = v
		return s.message(channel)
	case ccDataEntryLSB:
		s.valueLSB = v
		return s.message(channel)
	}
	return rpnMessage{}, false
}

func (s *rpnChannelState) message(channel int) (rpnMessage, bool) {
	if s.parameterMSB < 0 || s.parameterLSB < 0 || s.valueMSB < 0 {
		return rpnMessage{}, false
	}
	m := rpnMessage{
		channel:         channel,
		parameterNumber: s.parameterMSB<<7 | s.parameterLSB,
		value:           s.valueMSB,
		isNRPN:          s.isNRPN,
	}
	if s.valueLSB >= 0 {
		m.value = s.valueMSB<<7 | s.valueLSB
		m.is14Bit = true
	}
	return m, true
}
