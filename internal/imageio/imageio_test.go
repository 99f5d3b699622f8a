package imageio

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("scan.tif"))
	assert.True(t, IsSupported("SCAN.TIFF"))
	assert.True(t, IsSupported("frame_03.png"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported("raw.dng"))
}

func TestLoadBufferRejectsUnsupported(t *testing.T) {
	_, _, err := LoadBuffer("")
	require.Error(t, err)
	_, _, err = LoadBuffer("scan.dng")
	require.Error(t, err)
}

func TestLoadBufferRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frame.png")

	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: 128, B: uint8(y * 40), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	buf, meta, err := LoadBuffer(path)
	require.NoError(t, err)
	assert.Equal(t, 8, buf.W)
	assert.Equal(t, 6, buf.H)
	assert.Equal(t, 8, meta.Width)
	assert.Equal(t, 6, meta.Height)
	assert.NotEmpty(t, meta.Hash)
	assert.Positive(t, meta.SizeBytes)

	r, g, b := buf.At(3, 2)
	assert.InDelta(t, 90.0/255.0, r, 0.01)
	assert.InDelta(t, 128.0/255.0, g, 0.01)
	assert.InDelta(t, 80.0/255.0, b, 0.01)
}

func TestSaveFormats(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))

	for _, tc := range []struct {
		format negative.ExportFormat
		name   string
	}{
		{negative.FormatTIFF, "out.tif"},
		{negative.FormatPNG, "out.png"},
		{negative.FormatJPEG, "out.jpg"},
	} {
		path := filepath.Join(dir, tc.name)
		require.NoError(t, Save(path, img, tc.format))
		fi, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, fi.Size())
	}

	err := Save(filepath.Join(dir, "out.xxx"), img, negative.ExportFormat("WEBP"))
	require.Error(t, err)
}

func TestExportPath(t *testing.T) {
	p := ExportPath("/scans/roll1/frame_07.tif", "/out", negative.FormatJPEG)
	assert.Equal(t, filepath.Join("/out", "frame_07_print.jpg"), p)

	p = ExportPath("/scans/frame.png", "", negative.FormatTIFF)
	assert.Equal(t, filepath.Join("/scans", "frame_print.tif"), p)
}
