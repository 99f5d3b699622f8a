// Package storage persists editing state between sessions: per-file
// workspace settings, named roll normalization records, and the global
// defaults, all in one YAML file.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/negproof/negproof/internal/negative"
)

// RollRecord holds the normalization a whole roll shares: channel floors
// and ceilings in log density, plus the measured base cast.
type RollRecord struct {
	Floors [3]float64 `yaml:"floors"`
	Ceils  [3]float64 `yaml:"ceils"`
	Cast   [3]float64 `yaml:"cast"`
}

type storeData struct {
	Global *negative.WorkspaceConfig            `yaml:"global,omitempty"`
	Files  map[string]*negative.WorkspaceConfig `yaml:"files,omitempty"`
	Rolls  map[string]RollRecord                `yaml:"rolls,omitempty"`
}

// Store is a file-backed settings database. All methods are safe for
// concurrent use; every mutation is written through to disk atomically.
type Store struct {
	path string

	mu   sync.RWMutex
	data storeData
}

// Open loads the store at path, creating an empty one if the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	raw, err := os.ReadFile(path) //nolint:gosec // store path is user configuration
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// SettingsFor returns the saved workspace settings for a source file,
// keyed by its content hash. The second return is false when the file has
// never been saved; callers then fall back to Global or the defaults.
func (s *Store) SettingsFor(hash string) (negative.WorkspaceConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.data.Files[hash]; ok {
		return cloneConfig(cfg), true
	}
	return negative.DefaultWorkspaceConfig(), false
}

// SaveSettings stores the workspace settings for a source file.
func (s *Store) SaveSettings(hash string, cfg negative.WorkspaceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Files == nil {
		s.data.Files = make(map[string]*negative.WorkspaceConfig)
	}
	c := cloneConfig(&cfg)
	s.data.Files[hash] = &c
	return s.persistLocked()
}

// Global returns the saved global defaults, or DefaultWorkspaceConfig
// when none have been stored.
func (s *Store) Global() negative.WorkspaceConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.Global == nil {
		return negative.DefaultWorkspaceConfig()
	}
	return cloneConfig(s.data.Global)
}

// SaveGlobal stores the global defaults.
func (s *Store) SaveGlobal(cfg negative.WorkspaceConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneConfig(&cfg)
	s.data.Global = &c
	return s.persistLocked()
}

// Roll returns the normalization record saved under name.
func (s *Store) Roll(name string) (RollRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data.Rolls[name]
	return rec, ok
}

// SaveRoll stores a roll normalization record under name.
func (s *Store) SaveRoll(name string, rec RollRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Rolls == nil {
		s.data.Rolls = make(map[string]RollRecord)
	}
	s.data.Rolls[name] = rec
	return s.persistLocked()
}

// RollNames lists the saved rolls.
func (s *Store) RollNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data.Rolls))
	for name := range s.data.Rolls {
		names = append(names, name)
	}
	return names
}

// persistLocked writes the store through a temp file in the same
// directory so a crash mid-write never corrupts the previous state.
func (s *Store) persistLocked() error {
	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("persist store: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("persist store: %w", err)
	}
	return nil
}

// cloneConfig deep-copies a config through its serialized form, so stored
// state never aliases caller-held adjustment slices.
func cloneConfig(cfg *negative.WorkspaceConfig) negative.WorkspaceConfig {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return *cfg
	}
	out := negative.DefaultWorkspaceConfig()
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return *cfg
	}
	return out
}
