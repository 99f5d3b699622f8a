// Package testutil generates synthetic film-scan fixtures for tests:
// orange-masked negative frames with a controllable density ramp, so
// analysis and render tests do not depend on binary image assets.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ScanConfig describes a synthetic negative frame.
type ScanConfig struct {
	Width    int
	Height   int
	Base     color.NRGBA // film-base color, the unexposed rebate
	Gradient bool        // horizontal density ramp from base toward black
	Rotation float64     // degrees, counter-clockwise
}

// DefaultScanConfig returns a small C-41-looking frame: orange mask with
// a left-to-right density ramp.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		Width:    24,
		Height:   16,
		Base:     color.NRGBA{R: 230, G: 140, B: 90, A: 255},
		Gradient: true,
	}
}

// GenerateScan renders the configured frame. A gradient frame ramps each
// channel from the base color down to a dense shadow, which gives the
// normalization analysis a real floor and ceiling to find.
func GenerateScan(cfg ScanConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			c := cfg.Base
			if cfg.Gradient && cfg.Width > 1 {
				f := 1.0 - float64(x)/float64(cfg.Width-1)*0.85
				c = color.NRGBA{
					R: uint8(float64(cfg.Base.R) * f),
					G: uint8(float64(cfg.Base.G) * f),
					B: uint8(float64(cfg.Base.B) * f),
					A: 255,
				}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	if cfg.Rotation != 0 {
		rotated := imaging.Rotate(img, cfg.Rotation, color.NRGBA{A: 255})
		return imaging.Clone(rotated)
	}
	return img
}

// WriteScanPNG writes a synthetic frame to path and fails the test on any
// I/O error.
func WriteScanPNG(t *testing.T, path string, cfg ScanConfig) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, GenerateScan(cfg)))
	require.NoError(t, f.Close())
}
