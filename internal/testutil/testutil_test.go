package testutil

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateScanDimensions(t *testing.T) {
	cfg := DefaultScanConfig()
	img := GenerateScan(cfg)
	assert.Equal(t, cfg.Width, img.Bounds().Dx())
	assert.Equal(t, cfg.Height, img.Bounds().Dy())
}

func TestGenerateScanGradient(t *testing.T) {
	cfg := DefaultScanConfig()
	img := GenerateScan(cfg)

	left := img.NRGBAAt(0, 0)
	right := img.NRGBAAt(cfg.Width-1, 0)
	assert.Equal(t, cfg.Base, left, "left edge should be unexposed film base")
	assert.Less(t, right.R, left.R, "right edge should be denser than the base")
	assert.Less(t, right.G, left.G)
	assert.Less(t, right.B, left.B)
}

func TestGenerateScanRotationChangesBounds(t *testing.T) {
	cfg := DefaultScanConfig()
	cfg.Rotation = 90
	img := GenerateScan(cfg)
	assert.Equal(t, cfg.Height, img.Bounds().Dx())
	assert.Equal(t, cfg.Width, img.Bounds().Dy())
}

func TestWriteScanPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	WriteScanPNG(t, path, DefaultScanConfig())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 24, decoded.Bounds().Dx())
}
