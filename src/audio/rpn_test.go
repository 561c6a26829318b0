package audio

import "testing"

func TestRPNDetector(t *testing.T) {
	d := newRPNDetector()
	_, ok := d.tryParse(0, ccRPNMSB, 0)
	expectEqual(t, ok, false)
	_, ok = d.tryParse(0, ccRPNLSB, 0)
	expectEqual(t, ok, false)

	m, ok := d.tryParse(0, ccDataEntryMSB, 12)
	expectEqual(t, ok, true)
	expectEqual(t, m.parameterNumber, rpnPitchBendSensitivity)
	expectEqual(t, m.is14Bit, false)
	expectEqual(t, m.coarse(), 12)

	m, ok = d.tryParse(0, ccDataEntryLSB, 50)
	expectEqual(t, ok, true)
	expectEqual(t, m.is14Bit, true)
	expectEqual(t, m.value, 12<<7|50)
	expectEqual(t, m.coarse(), 12)
}

func TestRPNDetectorNeedsBothParameterBytes(t *testing.T) {
	d := newRPNDetector()
	d.tryParse(0, ccRPNLSB, 0)
	_, ok := d.tryParse(0, ccDataEntryMSB, 12)
	expectEqual(t, ok, false)
}

func TestRPNDetectorSeparatesChannels(t *testing.T) {
	d := newRPNDetector()
	d.tryParse(0, ccRPNMSB, 0)
	d.tryParse(1, ccRPNLSB, 0)
	_, ok := d.tryParse(0, ccDataEntryMSB, 12)
	expectEqual(t, ok, false)
	_, ok = d.tryParse(1, ccDataEntryMSB, 12)
	expectEqual(t, ok, false)

	d.tryParse(1, ccRPNMSB, 0)
	m, ok := d.tryParse(1, ccDataEntryMSB, 3)
	expectEqual(t, ok, true)
	expectEqual(t, m.channel, 1)

	_, ok = d.tryParse(16, ccDataEntryMSB, 3)
	expectEqual(t, ok, false)
}

func TestRPNDetectorNRPN(t *testing.T) {
	d := newRPNDetector()
	d.tryParse(2, ccNRPNMSB, 1)
	d.tryParse(2, ccNRPNLSB, 2)
	m, ok := d.tryParse(2, ccDataEntryMSB, 64)
	expectEqual(t, ok, true)
	expectEqual(t, m.isNRPN, true)
	expectEqual(t, m.parameterNumber, 1<<7|2)
}

func TestRPNDetectorReset(t *testing.T) {
	d := newRPNDetector()
	d.tryParse(0, ccRPNMSB, 0)
	d.tryParse(0, ccRPNLSB, 0)
	d.reset()
	_, ok := d.tryParse(0, ccDataEntryMSB, 12)
	expectEqual(t, ok, false)
}
