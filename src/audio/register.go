package audio

import "fmt"

// Register is a single write to the chip.
type Register struct {
	HighBank bool // state of pin A1
	Address  uint8
	Data     uint8
}

// newRegister accepts a 16-bit address where bit 8 selects the high bank.
func newRegister(address uint16, data uint8) Register {
	return Register{
		HighBank: address&0x100 != 0,
		Address:  uint8(address & 0xff),
		Data:     data,
	}
}

func (r Register) String() string {
	bank := 0
	if r.HighBank {
		bank = 1
	}
	return fmt.Sprintf("%d:$%02x=$%02x", bank, r.Address, r.Data)
}

// ----- Address Map ----- //

const (
	channelCount = 6
	slotCount    = 4
)

const (
	addrLfo          uint16 = 0x22
	addrKeyOn        uint16 = 0x28
	addrMode         uint16 = 0x29
	addrDetuneMul    uint16 = 0x30
	addrTotalLevel   uint16 = 0x40
	addrKeyScaleAr   uint16 = 0x50
	addrAmonDr       uint16 = 0x60
	addrSustainRate  uint16 = 0x70
	addrSlRr         uint16 = 0x80
	addrSsgeg        uint16 = 0x90
	addrFNum1        uint16 = 0xa0
	addrBlockFNum2   uint16 = 0xa4
	addrFbAlgorithm  uint16 = 0xb0
	addrPanAmsPms    uint16 = 0xb4
	modeYM2608       uint8  = 0x80
	panningCenter    uint8  = 0xc0
	ssgegEnabledFlag uint8  = 0x08
)

var channelAddressOffset = [channelCount]uint16{0x000, 0x001, 0x002, 0x100, 0x101, 0x102}

var operatorAddressOffset = [slotCount]uint16{0, 8, 4, 12}

// low nibble of $28
var keyOnChannel = [channelCount]uint8{0b000, 0b001, 0b010, 0b100, 0b101, 0b110}

func isHardwareChannel(id int) bool {
	return 0 <= id && id < channelCount
}

func addressOfChannel(id int, base uint16) uint16 {
	if !isHardwareChannel(id) {
		return base
	}
	return base + channelAddressOffset[id]
}

func addressOfOperator(slot int, base uint16) uint16 {
	if slot < 0 || slot >= slotCount {
		return base
	}
	return base + operatorAddressOffset[slot]
}

// detuneRegisterValue encodes a signed detune as sign bit + magnitude.
func detuneRegisterValue(dt int8) uint8 {
	if dt < 0 {
		return 0b100 | uint8(-dt)
	}
	return uint8(dt)
}
