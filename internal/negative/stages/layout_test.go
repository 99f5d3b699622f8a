package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestCalculateLayoutDims(t *testing.T) {
	cfg := negative.DefaultExportConfig()
	cfg.PaperRatio = "3:2"
	cfg.PrintSize = 30.0
	cfg.BorderSize = 1.0

	dims := CalculateLayoutDims(3000, 2000, cfg, 3000)
	assert.Equal(t, 3000, dims.PaperW)
	assert.Equal(t, 2000, dims.PaperH)
	// 30cm over 3000px = 254 dpi
	assert.Equal(t, 254, dims.DPI)
	assert.Equal(t, 100, dims.BorderPx)
	// content fits inside the border, centered
	assert.LessOrEqual(t, dims.ContentW, 3000-2*dims.BorderPx)
	assert.LessOrEqual(t, dims.ContentH, 2000-2*dims.BorderPx)
	assert.Equal(t, (dims.PaperW-dims.ContentW)/2, dims.OffsetX)
	assert.Equal(t, (dims.PaperH-dims.ContentH)/2, dims.OffsetY)
	// content keeps its own aspect
	assert.InDelta(t, 1.5, float64(dims.ContentW)/float64(dims.ContentH), 0.01)
}

func TestCalculateLayoutDimsVerticalContent(t *testing.T) {
	cfg := negative.DefaultExportConfig()
	cfg.PaperRatio = "3:2"
	dims := CalculateLayoutDims(2000, 3000, cfg, 3000)
	// paper flips to portrait for vertical content
	assert.Equal(t, 2000, dims.PaperW)
	assert.Equal(t, 3000, dims.PaperH)
}

func TestCalculateLayoutDimsOriginalRatio(t *testing.T) {
	cfg := negative.DefaultExportConfig()
	cfg.PaperRatio = negative.RatioOriginal
	dims := CalculateLayoutDims(1234, 567, cfg, 1234)
	assert.InDelta(t, float64(1234)/567, float64(dims.PaperW)/float64(dims.PaperH), 0.01)
}

func TestLayoutProcessFillsBorder(t *testing.T) {
	cfg := negative.DefaultExportConfig()
	cfg.PaperRatio = "1:1"
	cfg.BorderSize = 2.0
	cfg.BorderColor = "#ff0000"
	pc := negative.NewContext(100, 100, negative.ProcessC41, 100)

	img := uniformBuffer(100, 100, 0, 0, 0)
	out, err := NewLayout(cfg, 100).Process(pc, img)
	require.NoError(t, err)
	require.Equal(t, 100, out.W)
	require.Equal(t, 100, out.H)
	r, g, b := out.At(0, 0)
	assert.InDelta(t, 1.0, r, 1e-5)
	assert.InDelta(t, 0.0, g, 1e-5)
	assert.InDelta(t, 0.0, b, 1e-5)
	// center still content
	cr, _, _ := out.At(50, 50)
	assert.InDelta(t, 0.0, cr, 1e-5)
}

func TestLayoutFreeWithoutBorderPassthrough(t *testing.T) {
	cfg := negative.DefaultExportConfig()
	cfg.PaperRatio = negative.RatioFree
	cfg.BorderSize = 0
	pc := negative.NewContext(10, 10, negative.ProcessC41, 10)
	img := uniformBuffer(10, 10, 0.5, 0.5, 0.5)
	out, err := NewLayout(cfg, 10).Process(pc, img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestParseHexColor(t *testing.T) {
	r, g, b, err := ParseHexColor("#ffffff")
	require.NoError(t, err)
	assert.Equal(t, float32(1), r)
	assert.Equal(t, float32(1), g)
	assert.Equal(t, float32(1), b)

	r, g, b, err = ParseHexColor("336699")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, r, 0.01)
	assert.InDelta(t, 0.4, g, 0.01)
	assert.InDelta(t, 0.6, b, 0.01)

	_, _, _, err = ParseHexColor("#zzz")
	assert.Error(t, err)
}

func TestCropAppliesROI(t *testing.T) {
	pc := negative.NewContext(20, 20, negative.ProcessC41, 20)
	pc.ActiveROI = &negative.ROI{Y1: 5, Y2: 15, X1: 2, X2: 18}
	img := uniformBuffer(20, 20, 0.5, 0.5, 0.5)

	out, err := (&Crop{}).Process(pc, img)
	require.NoError(t, err)
	assert.Equal(t, 16, out.W)
	assert.Equal(t, 10, out.H)

	full, err := (&Crop{KeepFullFrame: true}).Process(pc, img)
	require.NoError(t, err)
	assert.Same(t, img, full)
}
