package audio

import (
	"testing"
)

func TestParseParameterID(t *testing.T) {
	kind, slot, err := ParseParameterID("ar2")
	expectNoError(t, err)
	expectEqual(t, kind, AttackRate)
	expectEqual(t, slot, 1)

	kind, _, err = ParseParameterID("pitchBendSensitivity")
	expectNoError(t, err)
	expectEqual(t, kind, PitchBendSensitivity)

	for _, id := range []string{"ar", "ar0", "ar5", "al1", "unknown", ""} {
		_, _, err := ParseParameterID(id)
		expectTrue(t, err != nil)
	}
}

func TestAllParameterIDsResolve(t *testing.T) {
	ids := AllParameterIDs()
	expectEqual(t, len(ids), 7+13*slotCount)
	values := newFmParameters().values()
	expectEqual(t, len(values), len(ids))
	for _, id := range ids {
		kind, slot, err := ParseParameterID(id)
		expectNoError(t, err)
		expectEqual(t, Parameter{Kind: kind, Slot: slot}.ID(), id)
		_, ok := values[id]
		expectTrue(t, ok)
	}
}

func TestParameterFromValue(t *testing.T) {
	p, err := ParameterFromValue("tl3", 20.4)
	expectNoError(t, err)
	expectEqual(t, p, Parameter{Kind: TotalLevel, Slot: 2, Value: 20})

	p, err = ParameterFromValue("dt1", -2.6)
	expectNoError(t, err)
	expectEqual(t, p.Value, -3)

	p, err = ParameterFromValue("amon4", 0.6)
	expectNoError(t, err)
	expectEqual(t, p.Value, 1)
	p, err = ParameterFromValue("lfoEnabled", 0.4)
	expectNoError(t, err)
	expectEqual(t, p.Value, 0)

	_, err = ParameterFromValue("nope", 1)
	expectTrue(t, err != nil)
}

func TestDefaultValues(t *testing.T) {
	values := NewParameterStore().Snapshot()
	expectEqual(t, values["al"], 7.0)
	expectEqual(t, values["ar1"], 31.0)
	expectEqual(t, values["rr4"], 7.0)
	expectEqual(t, values["operatorEnabled2"], 1.0)
	expectEqual(t, values["pitchBendSensitivity"], 2.0)
}

func TestParameterStoreJSON(t *testing.T) {
	s := NewParameterStore()
	s.Set("fb", 5)
	data := s.toJSON()

	restored := NewParameterStore()
	expectNoError(t, restored.applyJSON(data))
	v, ok := restored.Get("fb")
	expectTrue(t, ok)
	expectEqual(t, v, 5.0)

	expectNoError(t, restored.applyJSON([]byte(`{"version":1,"values":{"al":2,"bogus":3}}`)))
	v, _ = restored.Get("al")
	expectEqual(t, v, 2.0)
	_, ok = restored.Get("bogus")
	expectEqual(t, ok, false)

	expectTrue(t, restored.applyJSON([]byte(`{"version":2,"values":{}}`)) != nil)
	expectTrue(t, restored.applyJSON([]byte(`{`)) != nil)
}
