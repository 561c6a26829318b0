package audio

import "sync"

// Frame is one stereo sample.
type Frame [2]int16

// RegisterSink accepts register writes in order.
type RegisterSink interface {
	Write(highBank bool, address uint8, data uint8)
}

// Chip is the emulator behind the sink. It is reset before use and renders
// frames with the registers written so far.
type Chip interface {
	RegisterSink
	Reset()
	Generate(out []Frame)
}

// ----- Register Log ----- //

// RegisterLog is a silent chip that remembers every write.
type RegisterLog struct {
	sync.Mutex
	writes   []Register
	limit    int // 0: unlimited
	rendered int
	resets   int
}

var _ Chip = (*RegisterLog)(nil)

// NewRegisterLog ...
func NewRegisterLog() *RegisterLog {
	return &RegisterLog{}
}

// NewBoundedRegisterLog keeps only the latest limit writes.
func NewBoundedRegisterLog(limit int) *RegisterLog {
	return &RegisterLog{limit: limit}
}

// Write ...
func (l *RegisterLog) Write(highBank bool, address uint8, data uint8) {
	l.Lock()
	if l.limit > 0 && len(l.writes) >= l.limit {
		n := copy(l.writes, l.writes[len(l.writes)-l.limit+1:])
		l.writes = l.writes[:n]
	}
	l.writes = append(l.writes, Register{HighBank: highBank, Address: address, Data: data})
	l.Unlock()
}

// Reset ...
func (l *RegisterLog) Reset() {
	l.Lock()
	l.writes = l.writes[:0]
	l.rendered = 0
	l.resets++
	l.Unlock()
}

// Generate ...
func (l *RegisterLog) Generate(out []Frame) {
	clear(out)
	l.Lock()
	l.rendered += len(out)
	l.Unlock()
}

// Writes returns a copy of all writes since the last reset.
func (l *RegisterLog) Writes() []Register {
	l.Lock()
	defer l.Unlock()
	writes := make([]Register, len(l.writes))
	copy(writes, l.writes)
	return writes
}

// Rendered returns the number of frames generated since the last reset.
func (l *RegisterLog) Rendered() int {
	l.Lock()
	defer l.Unlock()
	return l.rendered
}
