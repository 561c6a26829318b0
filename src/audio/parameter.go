package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// ----- Parameter Kind ----- //

// ParameterKind ...
type ParameterKind int

// plugin
const (
	PitchBendSensitivity ParameterKind = iota
)

// tone
const (
	Algorithm ParameterKind = iota + 1
	Feedback
	LfoEnabled
	LfoFrequency
	Pms
	Ams
)

// operator
const (
	OperatorEnabled ParameterKind = iota + Ams + 1
	AttackRate
	DecayRate
	SustainRate
	ReleaseRate
	SustainLevel
	TotalLevel
	KeyScale
	Multiple
	Detune
	AmplitudeModulationEnabled
	SsgegEnabled
	SsgegShape
	parameterKindCount
)

type parameterInfo struct {
	id   string
	name string
	r    valueRange[int]
}

var parameterInfos = [parameterKindCount]parameterInfo{
	PitchBendSensitivity: {"pitchBendSensitivity", "Pitch Bend Sensitivity", valueRange[int]{1, 24}},

	Algorithm:    {"al", "Algorithm", valueRange[int]{0, 7}},
	Feedback:     {"fb", "Feedback", valueRange[int]{0, 7}},
	LfoEnabled:   {"lfoEnabled", "LFO Enabled", valueRange[int]{0, 1}},
	LfoFrequency: {"lfoFrequency", "LFO Frequency", valueRange[int]{0, 7}},
	Pms:          {"pms", "Phase Modulation Sensitivity", valueRange[int]{0, 7}},
	Ams:          {"ams", "Amplitude Modulation Sensitivity", valueRange[int]{0, 3}},

	OperatorEnabled:            {"operatorEnabled", "Operator Enabled", valueRange[int]{0, 1}},
	AttackRate:                 {"ar", "Attack Rate", valueRange[int]{0, 31}},
	DecayRate:                  {"dr", "Decay Rate", valueRange[int]{0, 31}},
	SustainRate:                {"sr", "Sustain Rate", valueRange[int]{0, 31}},
	ReleaseRate:                {"rr", "Release Rate", valueRange[int]{0, 15}},
	SustainLevel:               {"sl", "Sustain Level", valueRange[int]{0, 15}},
	TotalLevel:                 {"tl", "Total Level", valueRange[int]{0, 127}},
	KeyScale:                   {"ks", "Key Scale", valueRange[int]{0, 3}},
	Multiple:                   {"ml", "Multiple", valueRange[int]{0, 15}},
	Detune:                     {"dt", "Detune", valueRange[int]{-3, 3}},
	AmplitudeModulationEnabled: {"amon", "Amplitude Modulation Enabled", valueRange[int]{0, 1}},
	SsgegEnabled:               {"ssgegEnabled", "SSG-EG Enabled", valueRange[int]{0, 1}},
	SsgegShape:                 {"ssgegShape", "SSG-EG Shape", valueRange[int]{0, 7}},
}

// IsOperatorParameter reports whether the kind needs a slot.
func (k ParameterKind) IsOperatorParameter() bool {
	return OperatorEnabled <= k && k < parameterKindCount
}

func (k ParameterKind) valid() bool {
	return 0 <= k && k < parameterKindCount
}

func (k ParameterKind) String() string {
	if !k.valid() {
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
	return parameterInfos[k].name
}

// ----- Parameter ----- //

// Parameter is a requested value for one parameter. Slot is 0-3 and only
// meaningful for operator parameters.
type Parameter struct {
	Kind  ParameterKind
	Slot  int
	Value int
}

type parameterKey struct {
	kind ParameterKind
	slot int
}

func (p Parameter) key() parameterKey {
	if !p.Kind.IsOperatorParameter() {
		return parameterKey{kind: p.Kind}
	}
	return parameterKey{kind: p.Kind, slot: p.Slot}
}

// ID returns the host parameter id. Operator ids carry a 1-based slot suffix.
func (p Parameter) ID() string {
	if !p.Kind.valid() {
		return ""
	}
	if p.Kind.IsOperatorParameter() {
		return parameterInfos[p.Kind].id + strconv.Itoa(p.Slot+1)
	}
	return parameterInfos[p.Kind].id
}

func (p Parameter) inRange() bool {
	if !p.Kind.valid() {
		return false
	}
	if p.Kind.IsOperatorParameter() && (p.Slot < 0 || p.Slot >= slotCount) {
		return false
	}
	return parameterInfos[p.Kind].r.contains(p.Value)
}

func (p Parameter) String() string {
	return fmt.Sprintf("%s=%d", p.ID(), p.Value)
}

// ParseParameterID resolves a host id such as "fb" or "ar2".
func ParseParameterID(id string) (ParameterKind, int, error) {
	for kind := ParameterKind(0); kind < parameterKindCount; kind++ {
		base := parameterInfos[kind].id
		if !kind.IsOperatorParameter() {
			if id == base {
				return kind, 0, nil
			}
			continue
		}
		suffix, ok := strings.CutPrefix(id, base)
		if !ok {
			continue
		}
		slot, err := strconv.Atoi(suffix)
		if err != nil || slot < 1 || slot > slotCount {
			continue
		}
		return kind, slot - 1, nil
	}
	return 0, 0, fmt.Errorf("unknown parameter id %q", id)
}

// AllParameterIDs lists every host id in a stable order.
func AllParameterIDs() []string {
	ids := make([]string, 0, int(parameterKindCount)*slotCount)
	for kind := ParameterKind(0); kind < parameterKindCount; kind++ {
		if !kind.IsOperatorParameter() {
			ids = append(ids, Parameter{Kind: kind}.ID())
		}
	}
	for slot := 0; slot < slotCount; slot++ {
		for kind := OperatorEnabled; kind < parameterKindCount; kind++ {
			ids = append(ids, Parameter{Kind: kind, Slot: slot}.ID())
		}
	}
	return ids
}

// ----- FM Parameters ----- //

var (
	rangeAlgorithm  = valueRange[uint8]{0, 7}
	rangeFeedback   = valueRange[uint8]{0, 7}
	rangeRate       = valueRange[uint8]{0, 31}
	rangeNibble     = valueRange[uint8]{0, 15}
	rangeTotalLevel = valueRange[uint8]{0, 127}
	rangeKeyScale   = valueRange[uint8]{0, 3}
	rangeDetune     = valueRange[int8]{-3, 3}
	rangeThreeBits  = valueRange[uint8]{0, 7}
	rangeAms        = valueRange[uint8]{0, 3}
	rangePbs        = valueRange[int]{1, 24}
	rangePitchBend  = valueRange[int]{minPitchBend, maxPitchBend}
)

type operatorParams struct {
	enabled      bool
	ar           rangedValue[uint8]
	dr           rangedValue[uint8]
	sr           rangedValue[uint8]
	rr           rangedValue[uint8]
	sl           rangedValue[uint8]
	tl           rangedValue[uint8]
	ks           rangedValue[uint8]
	ml           rangedValue[uint8]
	dt           rangedValue[int8]
	amon         bool
	ssgegEnabled bool
	ssgegShape   rangedValue[uint8] // hardware shape is 8 + this
}

type lfoParams struct {
	enabled   bool
	frequency rangedValue[uint8]
	pms       rangedValue[uint8]
	ams       rangedValue[uint8]
}

type fmParameters struct {
	al        rangedValue[uint8]
	fb        rangedValue[uint8]
	operators [slotCount]operatorParams
	lfo       lfoParams
	pbs       rangedValue[int]
	pitchBend rangedValue[int]
}

func newFmParameters() *fmParameters {
	p := &fmParameters{
		al: newRangedValue(rangeAlgorithm, 7),
		fb: newRangedValue(rangeFeedback, 0),
		lfo: lfoParams{
			frequency: newRangedValue(rangeThreeBits, 0),
			pms:       newRangedValue(rangeThreeBits, 0),
			ams:       newRangedValue(rangeAms, 0),
		},
		pbs:       newRangedValue(rangePbs, 2),
		pitchBend: newRangedValue(rangePitchBend, 0),
	}
	for i := range p.operators {
		p.operators[i] = operatorParams{
			enabled:    true,
			ar:         newRangedValue(rangeRate, 31),
			dr:         newRangedValue(rangeRate, 0),
			sr:         newRangedValue(rangeRate, 0),
			rr:         newRangedValue(rangeNibble, 7),
			sl:         newRangedValue(rangeNibble, 0),
			tl:         newRangedValue(rangeTotalLevel, 0),
			ks:         newRangedValue(rangeKeyScale, 0),
			ml:         newRangedValue(rangeNibble, 0),
			dt:         newRangedValue(rangeDetune, 0),
			ssgegShape: newRangedValue(rangeThreeBits, 0),
		}
	}
	return p
}

// applyValues builds state from host values, clamping anything out of range.
// Unknown ids are ignored.
func (p *fmParameters) applyValues(values map[string]float64) {
	for id, raw := range values {
		kind, slot, err := ParseParameterID(id)
		if err != nil {
			continue
		}
		v := quantize(kind, raw)
		if kind.IsOperatorParameter() {
			p.operators[slot].setClamped(kind, v)
			continue
		}
		switch kind {
		case PitchBendSensitivity:
			p.pbs.setAndClamp(v)
		case Algorithm:
			p.al.setAndClamp(uint8(rangeAlgorithm.clampInt(v)))
		case Feedback:
			p.fb.setAndClamp(uint8(rangeFeedback.clampInt(v)))
		case LfoEnabled:
			p.lfo.enabled = v != 0
		case LfoFrequency:
			p.lfo.frequency.setAndClamp(uint8(rangeThreeBits.clampInt(v)))
		case Pms:
			p.lfo.pms.setAndClamp(uint8(rangeThreeBits.clampInt(v)))
		case Ams:
			p.lfo.ams.setAndClamp(uint8(rangeAms.clampInt(v)))
		}
	}
}

func (o *operatorParams) setClamped(kind ParameterKind, v int) {
	switch kind {
	case OperatorEnabled:
		o.enabled = v != 0
	case AttackRate:
		o.ar.setAndClamp(uint8(rangeRate.clampInt(v)))
	case DecayRate:
		o.dr.setAndClamp(uint8(rangeRate.clampInt(v)))
	case SustainRate:
		o.sr.setAndClamp(uint8(rangeRate.clampInt(v)))
	case ReleaseRate:
		o.rr.setAndClamp(uint8(rangeNibble.clampInt(v)))
	case SustainLevel:
		o.sl.setAndClamp(uint8(rangeNibble.clampInt(v)))
	case TotalLevel:
		o.tl.setAndClamp(uint8(rangeTotalLevel.clampInt(v)))
	case KeyScale:
		o.ks.setAndClamp(uint8(rangeKeyScale.clampInt(v)))
	case Multiple:
		o.ml.setAndClamp(uint8(rangeNibble.clampInt(v)))
	case Detune:
		o.dt.setAndClamp(int8(max(min(v, 3), -3)))
	case AmplitudeModulationEnabled:
		o.amon = v != 0
	case SsgegEnabled:
		o.ssgegEnabled = v != 0
	case SsgegShape:
		o.ssgegShape.setAndClamp(uint8(rangeThreeBits.clampInt(v)))
	}
}

// clampInt clamps before narrowing.
func (r valueRange[T]) clampInt(v int) int {
	return min(max(v, int(r.min)), int(r.max))
}

// values exports the state with host ids.
func (p *fmParameters) values() map[string]float64 {
	values := make(map[string]float64, int(parameterKindCount)*slotCount)
	set := func(kind ParameterKind, slot int, v int) {
		values[Parameter{Kind: kind, Slot: slot}.ID()] = float64(v)
	}
	set(PitchBendSensitivity, 0, p.pbs.get())
	set(Algorithm, 0, int(p.al.get()))
	set(Feedback, 0, int(p.fb.get()))
	set(LfoEnabled, 0, boolToInt(p.lfo.enabled))
	set(LfoFrequency, 0, int(p.lfo.frequency.get()))
	set(Pms, 0, int(p.lfo.pms.get()))
	set(Ams, 0, int(p.lfo.ams.get()))
	for slot, o := range p.operators {
		set(OperatorEnabled, slot, boolToInt(o.enabled))
		set(AttackRate, slot, int(o.ar.get()))
		set(DecayRate, slot, int(o.dr.get()))
		set(SustainRate, slot, int(o.sr.get()))
		set(ReleaseRate, slot, int(o.rr.get()))
		set(SustainLevel, slot, int(o.sl.get()))
		set(TotalLevel, slot, int(o.tl.get()))
		set(KeyScale, slot, int(o.ks.get()))
		set(Multiple, slot, int(o.ml.get()))
		set(Detune, slot, int(o.dt.get()))
		set(AmplitudeModulationEnabled, slot, boolToInt(o.amon))
		set(SsgegEnabled, slot, boolToInt(o.ssgegEnabled))
		set(SsgegShape, slot, int(o.ssgegShape.get()))
	}
	return values
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
