package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
)

// ----- VGM Recorder ----- //

const (
	vgmVersion        = 0x151
	vgmHeaderSize     = 0x80
	vgmSampleRate     = 44100
	vgmMaxWait        = 0xffff
	vgmCmdYM2608Port0 = 0x56
	vgmCmdYM2608Port1 = 0x57
	vgmCmdWait        = 0x61
	vgmCmdEnd         = 0x66
)

// VGMRecorder is a silent chip that records the register stream as a VGM
// 1.51 YM2608 log. Rendering advances the log clock.
type VGMRecorder struct {
	sync.Mutex
	data         bytes.Buffer
	totalSamples uint32
	pending      float64 // in 44.1kHz samples
}

var _ Chip = (*VGMRecorder)(nil)

// NewVGMRecorder ...
func NewVGMRecorder() *VGMRecorder {
	return &VGMRecorder{}
}

// Write ...
func (v *VGMRecorder) Write(highBank bool, address uint8, data uint8) {
	v.Lock()
	defer v.Unlock()
	v.flushWait()
	cmd := byte(vgmCmdYM2608Port0)
	if highBank {
		cmd = vgmCmdYM2608Port1
	}
	v.data.Write([]byte{cmd, address, data})
}

// Reset starts a new log.
func (v *VGMRecorder) Reset() {
	v.Lock()
	defer v.Unlock()
	v.data.Reset()
	v.totalSamples = 0
	v.pending = 0
}

// Generate ...
func (v *VGMRecorder) Generate(out []Frame) {
	clear(out)
	v.Lock()
	v.pending += float64(len(out)) * vgmSampleRate / synthesisRate
	v.Unlock()
}

func (v *VGMRecorder) flushWait() {
	wait := uint32(v.pending)
	v.pending -= float64(wait)
	v.totalSamples += wait
	for wait > 0 {
		n := min(wait, vgmMaxWait)
		var cmd [3]byte
		cmd[0] = vgmCmdWait
		binary.LittleEndian.PutUint16(cmd[1:], uint16(n))
		v.data.Write(cmd[:])
		wait -= n
	}
}

// WriteTo writes the header, the commands and the end marker.
func (v *VGMRecorder) WriteTo(w io.Writer) (int64, error) {
	v.Lock()
	defer v.Unlock()
	v.flushWait()

	body := v.data.Bytes()
	header := make([]byte, vgmHeaderSize)
	copy(header[0x00:], "Vgm ")
	binary.LittleEndian.PutUint32(header[0x04:], uint32(vgmHeaderSize+len(body)+1-0x04))
	binary.LittleEndian.PutUint32(header[0x08:], vgmVersion)
	binary.LittleEndian.PutUint32(header[0x18:], v.totalSamples)
	binary.LittleEndian.PutUint32(header[0x34:], vgmHeaderSize-0x34)
	binary.LittleEndian.PutUint32(header[0x48:], chipClockHz)

	var written int64
	for _, chunk := range [][]byte{header, body, {vgmCmdEnd}} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
