package audio

import (
	"math"
	"testing"
)

func expectEqual(t *testing.T, actual, expected interface{}) {
	t.Helper()
	if actual != expected {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func expectNearlyEqual(t *testing.T, actual, expected float64) {
	t.Helper()
	if math.Abs(actual-expected) > 0.0001 {
		t.Errorf("expected %v, but got: %v", expected, actual)
	}
}

func TestCalculateCent(t *testing.T) {
	expectEqual(t, calculateCent(60, 0, 2), 6000)
	expectEqual(t, calculateCent(60, 8191, 2), 6200)
	expectEqual(t, calculateCent(60, -8192, 2), 5800)
	expectEqual(t, calculateCent(60, 8191, 12), 7200)
	expectEqual(t, calculateCent(60, 4096, 2), 6100)
}

func TestCentToHz(t *testing.T) {
	expectNearlyEqual(t, centToHz(6900), 440)
	expectNearlyEqual(t, centToHz(8100), 880)
	expectNearlyEqual(t, centToHz(5700), 220)
}

func TestFloorDiv(t *testing.T) {
	expectEqual(t, floorDiv(1200, 1200), 1)
	expectEqual(t, floorDiv(1199, 1200), 0)
	expectEqual(t, floorDiv(-1, 1200), -1)
	expectEqual(t, floorDiv(-1200, 1200), -1)
	expectEqual(t, floorDiv(-1201, 1200), -2)
}

func TestBlockAndFNumber(t *testing.T) {
	// C4: block 4, F-Number 618
	expectEqual(t, blockAndFNumber(6000), uint16(4<<11|618))
	// A4: block 4, F-Number 1040
	expectEqual(t, blockAndFNumber(6900), uint16(4<<11|1040))
	// one octave up only changes the block
	expectEqual(t, blockAndFNumber(7200), uint16(5<<11|618))
}

func TestBlockAndFNumberOutOfBlockRange(t *testing.T) {
	block, fnum := BlockAndFNumber(0, 0, 2)
	expectEqual(t, block, 0)
	expectEqual(t, fnum, 618>>1)

	block, fnum = BlockAndFNumber(127, 0, 2)
	expectEqual(t, block, maxBlock)
	expectEqual(t, fnum, maxFNumber)
}
