package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestOpenMissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	_, ok := s.SettingsFor("deadbeef")
	assert.False(t, ok)
	_, ok = s.Roll("roll-07")
	assert.False(t, ok)
	assert.Empty(t, s.RollNames())
}

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	cfg := negative.DefaultWorkspaceConfig()
	cfg.Exposure.Density = 0.7
	cfg.Lab.Saturation = 1.15
	cfg.Retouch.LocalAdjustments = []negative.LocalAdjustment{
		{Points: [][2]float64{{0.5, 0.5}}, Radius: 0.1, Strength: 0.3},
	}
	require.NoError(t, s.SaveSettings("abc123", cfg))

	// Mutating the caller's slice must not leak into the store.
	cfg.Retouch.LocalAdjustments[0].Strength = -9

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.SettingsFor("abc123")
	require.True(t, ok)
	assert.InDelta(t, 0.7, got.Exposure.Density, 1e-9)
	assert.InDelta(t, 1.15, got.Lab.Saturation, 1e-9)
	require.Len(t, got.Retouch.LocalAdjustments, 1)
	assert.InDelta(t, 0.3, got.Retouch.LocalAdjustments[0].Strength, 1e-9)
}

func TestUnknownHashFallsBackToDefaults(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	require.NoError(t, err)

	got, ok := s.SettingsFor("nope")
	assert.False(t, ok)
	assert.Equal(t, negative.DefaultWorkspaceConfig(), got)
}

func TestRollRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	rec := RollRecord{
		Floors: [3]float64{-2.1, -2.0, -1.9},
		Ceils:  [3]float64{-0.3, -0.25, -0.2},
		Cast:   [3]float64{0.02, -0.01, 0.015},
	}
	require.NoError(t, s.SaveRoll("portra-160 2026-08", rec))

	reopened, err := Open(path)
	require.NoError(t, err)
	got, ok := reopened.Roll("portra-160 2026-08")
	require.True(t, ok)
	assert.Equal(t, rec, got)
	assert.Equal(t, []string{"portra-160 2026-08"}, reopened.RollNames())
}

func TestGlobalSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, negative.DefaultWorkspaceConfig(), s.Global())

	cfg := negative.DefaultWorkspaceConfig()
	cfg.Export.DPI = 600
	require.NoError(t, s.SaveGlobal(cfg))

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 600, reopened.Global().Export.DPI)
}

func TestPersistLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.SaveRoll("r", RollRecord{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "settings.yaml", entries[0].Name())
}

func TestOpenRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("files: [not a map"), 0o600))
	_, err := Open(path)
	require.Error(t, err)
}
