package audio

import "math"

const (
	chipClockHz    = 3993600 * 2 // 975 << 13
	synthesisRate  = chipClockHz / 144
	c4NoteNumber   = 60
	a4NoteNumber   = c4NoteNumber + 9
	a4Hz           = 440.0
	semitoneCent   = 100
	octaveCent     = 12 * semitoneCent
	minPitchBend   = -8192
	maxPitchBend   = 8191
	maxBlock       = 7
	maxFNumber     = 0x7ff
	fNumberDivisor = chipClockHz >> 13
)

// calculateCent returns the distance from MIDI note 0 in cents.
func calculateCent(noteNumber int, pitchBend int, pitchBendSensitivity int) int {
	bendRange := maxPitchBend
	if pitchBend < 0 {
		bendRange = -minPitchBend
	}
	return noteNumber*semitoneCent + semitoneCent*pitchBendSensitivity*pitchBend/bendRange
}

func centToHz(cent int) float64 {
	return a4Hz * math.Pow(2.0, float64(cent-a4NoteNumber*semitoneCent)/octaveCent)
}

func hzToFNumber(hz float64) int {
	return int(math.Round(hz * 2304.0 / fNumberDivisor))
}

// blockAndFNumber packs block into bit 11-13 and F-Number into bit 0-10.
func blockAndFNumber(cent int) uint16 {
	octave := floorDiv(cent, octaveCent)
	centInOctave := cent - octave*octaveCent
	block := octave - 1
	fnum := hzToFNumber(centToHz(c4NoteNumber*semitoneCent + centInOctave))
	if block < 0 {
		fnum >>= -block
		block = 0
	}
	if block > maxBlock {
		fnum <<= block - maxBlock
		block = maxBlock
	}
	fnum = min(fnum, maxFNumber)
	return uint16(block)<<11 | uint16(fnum)
}

func floorDiv(a int, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// BlockAndFNumber returns the block and F-Number written for a note.
func BlockAndFNumber(noteNumber int, pitchBend int, pitchBendSensitivity int) (int, int) {
	v := blockAndFNumber(calculateCent(noteNumber, pitchBend, pitchBendSensitivity))
	return int(v >> 11), int(v & maxFNumber)
}
