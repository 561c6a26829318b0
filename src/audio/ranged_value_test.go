package audio

import "testing"

func TestRangedValue(t *testing.T) {
	v := newRangedValue(valueRange[uint8]{0, 31}, 40)
	expectEqual(t, v.get(), uint8(31))

	expectEqual(t, v.trySet(31), false)
	expectEqual(t, v.trySet(32), false)
	expectEqual(t, v.get(), uint8(31))
	expectEqual(t, v.trySet(10), true)
	expectEqual(t, v.get(), uint8(10))

	v.setAndClamp(100)
	expectEqual(t, v.get(), uint8(31))
}

func TestRangedValueSigned(t *testing.T) {
	v := newRangedValue(rangeDetune, 0)
	expectEqual(t, v.trySet(-4), false)
	expectEqual(t, v.trySet(-3), true)
	expectEqual(t, v.get(), int8(-3))
	expectEqual(t, detuneRegisterValue(v.get()), uint8(0b111))
	expectEqual(t, detuneRegisterValue(2), uint8(0b010))
}
