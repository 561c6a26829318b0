package audio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
)

type presetMetaJSON struct {
	Name string `json:"name"`
}
type presetMetaListJSON struct {
	Items []presetMetaJSON `json:"items"`
}
type presetMeta struct {
	name string
}
type presetData struct {
	list []*presetMeta
}
type presetManager struct {
	dir  string
	data *presetData
}

func newPresetManager(dir string) *presetManager {
	return &presetManager{
		dir: dir,
	}
}

func (pm *presetManager) getList() ([]*presetMeta, error) {
	if pm.data == nil {
		if err := pm.loadData(); err != nil {
			return nil, err
		}
	}
	return pm.data.list, nil
}

func (pm *presetManager) applyToParams(name string, target *ParameterStore) error {
	bytes, err := os.ReadFile(pm.path(name))
	if err != nil {
		return err
	}
	return target.applyJSON(bytes)
}

func (pm *presetManager) save(name string, source *ParameterStore) error {
	if err := os.MkdirAll(pm.dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(pm.path(name), source.toJSON(), 0o644); err != nil {
		return err
	}
	if pm.data == nil {
		// a missing list is created by the first save
		_ = pm.loadData()
	}
	if pm.data == nil {
		pm.data = &presetData{list: make([]*presetMeta, 0, 128)}
	}
	if slices.ContainsFunc(pm.data.list, func(m *presetMeta) bool { return m.name == name }) {
		return nil
	}
	pm.data.list = append(pm.data.list, &presetMeta{name: name})
	return pm.saveData()
}

func (pm *presetManager) path(name string) string {
	return filepath.Join(pm.dir, name+".json")
}

func (pm *presetManager) loadData() error {
	bytes, err := os.ReadFile(filepath.Join(pm.dir, "_list.json"))
	if err != nil {
		return err
	}
	metaListJSON := &presetMetaListJSON{}
	err = json.Unmarshal(bytes, &metaListJSON)
	if err != nil {
		return err
	}
	if pm.data == nil {
		pm.data = &presetData{list: make([]*presetMeta, 0, 128)}
	}
	pm.data.list = pm.data.list[:0]
	for _, item := range metaListJSON.Items {
		pm.data.list = append(pm.data.list, &presetMeta{name: item.Name})
	}
	return nil
}

func (pm *presetManager) saveData() error {
	items := make([]presetMetaJSON, len(pm.data.list))
	for i, meta := range pm.data.list {
		items[i] = presetMetaJSON{Name: meta.name}
	}
	return os.WriteFile(filepath.Join(pm.dir, "_list.json"), toRawMessage(&presetMetaListJSON{Items: items}), 0o644)
}
