package negative

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// WorkspaceConfig is the complete per-image editing state: one sub-config
// per render stage.
type WorkspaceConfig struct {
	Process  ProcessConfig  `yaml:"process"`
	Exposure ExposureConfig `yaml:"exposure"`
	Geometry GeometryConfig `yaml:"geometry"`
	Retouch  RetouchConfig  `yaml:"retouch"`
	Lab      LabConfig      `yaml:"lab"`
	Toning   ToningConfig   `yaml:"toning"`
	Export   ExportConfig   `yaml:"export"`
}

// DefaultWorkspaceConfig returns the editing state of a freshly loaded
// C-41 frame.
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Process:  DefaultProcessConfig(),
		Exposure: DefaultExposureConfig(),
		Geometry: DefaultGeometryConfig(),
		Retouch:  DefaultRetouchConfig(),
		Lab:      DefaultLabConfig(),
		Toning:   DefaultToningConfig(),
		Export:   DefaultExportConfig(),
	}
}

// FlatMap merges every sub-config field into a single flat key/value map,
// the shape sidecar files and the UI bindings use. Field names are the yaml
// tags, which are unique across all sub-configs.
func (w WorkspaceConfig) FlatMap() (map[string]any, error) {
	flat := make(map[string]any)
	for _, sub := range []any{w.Process, w.Exposure, w.Geometry, w.Retouch, w.Lab, w.Toning, w.Export} {
		raw, err := yaml.Marshal(sub)
		if err != nil {
			return nil, fmt.Errorf("flatten config: %w", err)
		}
		var m map[string]any
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("flatten config: %w", err)
		}
		for k, v := range m {
			flat[k] = v
		}
	}
	return flat, nil
}

// FromFlatMap rebuilds a WorkspaceConfig from a flat map. Unknown keys are
// ignored; missing keys keep their defaults.
func FromFlatMap(flat map[string]any) (WorkspaceConfig, error) {
	w := DefaultWorkspaceConfig()
	raw, err := yaml.Marshal(flat)
	if err != nil {
		return w, fmt.Errorf("parse flat config: %w", err)
	}
	// Unmarshal into each sub-config; yaml skips keys a struct does not
	// declare, which gives the unknown-key filtering for free.
	targets := []any{&w.Process, &w.Exposure, &w.Geometry, &w.Retouch, &w.Lab, &w.Toning, &w.Export}
	for _, t := range targets {
		if err := yaml.Unmarshal(raw, t); err != nil {
			return w, fmt.Errorf("parse flat config: %w", err)
		}
	}
	return w, nil
}

// ConfigHash returns a stable digest of any config value, used as a stage
// cache key. Two configs hash equal iff their serialized forms match.
func ConfigHash(v any) string {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("unhashable:%v", err)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
