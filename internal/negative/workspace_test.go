package negative

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	w := DefaultWorkspaceConfig()
	assert.Equal(t, ProcessC41, w.Process.Mode)
	assert.InDelta(t, 0.07, w.Process.AnalysisBuffer, 1e-12)
	assert.True(t, w.Process.E6Normalize)
	assert.InDelta(t, 0.75, w.Process.ShadowCastThreshold, 1e-12)
	assert.InDelta(t, 1.0, w.Exposure.Density, 1e-12)
	assert.InDelta(t, 2.0, w.Exposure.Grade, 1e-12)
	assert.InDelta(t, 3.0, w.Exposure.ToeWidth, 1e-12)
	assert.True(t, w.Geometry.Autocrop)
	assert.Equal(t, "3:2", w.Geometry.AutocropRatio)
	assert.InDelta(t, 0.25, w.Lab.Sharpen, 1e-12)
	assert.Equal(t, PaperNone, w.Toning.PaperProfile)
	assert.Equal(t, FormatJPEG, w.Export.Format)
}

func TestFlatMapRoundTrip(t *testing.T) {
	w := DefaultWorkspaceConfig()
	w.Exposure.Grade = 3.5
	w.Process.Mode = ProcessE6
	w.Geometry.Rotation = 1
	w.Retouch.ManualSpots = []DustSpot{{X: 0.2, Y: 0.3, Size: 4}}
	w.Lab.Saturation = 1.2

	flat, err := w.FlatMap()
	require.NoError(t, err)
	assert.Equal(t, 3.5, flat["grade"])

	got, err := FromFlatMap(flat)
	require.NoError(t, err)
	assert.Equal(t, ProcessE6, got.Process.Mode)
	assert.InDelta(t, 3.5, got.Exposure.Grade, 1e-12)
	assert.Equal(t, 1, got.Geometry.Rotation)
	require.Len(t, got.Retouch.ManualSpots, 1)
	assert.InDelta(t, 0.3, got.Retouch.ManualSpots[0].Y, 1e-12)
	assert.InDelta(t, 1.2, got.Lab.Saturation, 1e-12)
}

func TestFromFlatMapIgnoresUnknownKeys(t *testing.T) {
	got, err := FromFlatMap(map[string]any{
		"grade":            4.0,
		"no_such_setting":  true,
		"another_stranger": "hello",
	})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got.Exposure.Grade, 1e-12)
	// untouched fields keep defaults
	assert.InDelta(t, 1.0, got.Exposure.Density, 1e-12)
	assert.True(t, got.Process.E6Normalize)
}

func TestConfigHash(t *testing.T) {
	a := DefaultExposureConfig()
	b := DefaultExposureConfig()
	assert.Equal(t, ConfigHash(a), ConfigHash(b))
	b.Grade = 3.0
	assert.NotEqual(t, ConfigHash(a), ConfigHash(b))
}

func TestNormalizationBoundsInitialized(t *testing.T) {
	var b NormalizationBounds
	assert.False(t, b.Initialized())
	b.Floors[1] = -2.1
	assert.True(t, b.Initialized())
}

func TestFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.dat")
	require.NoError(t, os.WriteFile(path, []byte("negative scan payload"), 0o600))

	h1, err := FileHash(path)
	require.NoError(t, err)
	h2, err := FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	// content change flips the hash
	require.NoError(t, os.WriteFile(path, []byte("negative scan payloaD"), 0o600))
	h3, err := FileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = FileHash(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestLookupPaper(t *testing.T) {
	assert.Equal(t, PaperWarmFiber, LookupPaper(PaperWarmFiber).Name)
	assert.Equal(t, PaperNone, LookupPaper("nonexistent paper").Name)
}
