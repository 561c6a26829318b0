package audio

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"sync"
)

const snapshotVersion = 1

// ----- Parameter Store ----- //

// ParameterStore is the host side view of all parameters, keyed by host id.
type ParameterStore struct {
	sync.Mutex
	values map[string]float64
}

type snapshotJSON struct {
	Version int                `json:"version"`
	Values  map[string]float64 `json:"values"`
}

// NewParameterStore starts from the default tone.
func NewParameterStore() *ParameterStore {
	return &ParameterStore{values: newFmParameters().values()}
}

// Get ...
func (s *ParameterStore) Get(id string) (float64, bool) {
	s.Lock()
	defer s.Unlock()
	v, ok := s.values[id]
	return v, ok
}

// Set ...
func (s *ParameterStore) Set(id string, value float64) {
	s.Lock()
	s.values[id] = value
	s.Unlock()
}

// Snapshot ...
func (s *ParameterStore) Snapshot() map[string]float64 {
	s.Lock()
	defer s.Unlock()
	return maps.Clone(s.values)
}

func (s *ParameterStore) replace(values map[string]float64) {
	s.Lock()
	s.values = maps.Clone(values)
	s.Unlock()
}

func (s *ParameterStore) applyJSON(data json.RawMessage) error {
	var j snapshotJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("failed to apply JSON to parameters: %w", err)
	}
	if j.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", j.Version)
	}
	s.Lock()
	defer s.Unlock()
	for id, v := range j.Values {
		if _, _, err := ParseParameterID(id); err != nil {
			continue
		}
		s.values[id] = v
	}
	return nil
}

func (s *ParameterStore) toJSON() json.RawMessage {
	return toRawMessage(&snapshotJSON{
		Version: snapshotVersion,
		Values:  s.Snapshot(),
	})
}

// quantize rounds a host value to the parameter's integer domain.
func quantize(kind ParameterKind, raw float64) int {
	if !kind.valid() {
		return 0
	}
	r := parameterInfos[kind].r
	if r.min == 0 && r.max == 1 {
		return boolToInt(raw >= 0.5)
	}
	return int(math.Round(raw))
}

// ParameterFromValue converts a host value into a parameter request.
// Range checking is left to the changer.
func ParameterFromValue(id string, raw float64) (Parameter, error) {
	kind, slot, err := ParseParameterID(id)
	if err != nil {
		return Parameter{}, err
	}
	return Parameter{Kind: kind, Slot: slot, Value: quantize(kind, raw)}, nil
}
