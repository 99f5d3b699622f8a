package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestToningNoOpPassthrough(t *testing.T) {
	cfg := negative.DefaultToningConfig()
	pc := negative.NewContext(4, 4, negative.ProcessC41, 4)
	img := uniformBuffer(4, 4, 0.3, 0.5, 0.7)
	out, err := NewToning(cfg).Process(pc, img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestSeleniumCoolsShadows(t *testing.T) {
	cfg := negative.DefaultToningConfig()
	cfg.SeleniumStrength = 1.0
	pc := negative.NewContext(4, 4, negative.ProcessC41, 4)

	dark := uniformBuffer(2, 2, 0.15, 0.15, 0.15)
	out, err := NewToning(cfg).Process(pc, dark)
	require.NoError(t, err)
	r, _, b := out.At(0, 0)
	assert.Greater(t, b, r)

	// highlights barely shift
	bright := uniformBuffer(2, 2, 0.95, 0.95, 0.95)
	out, err = NewToning(cfg).Process(pc, bright)
	require.NoError(t, err)
	r, _, b = out.At(0, 0)
	assert.InDelta(t, float64(r), float64(b), 0.005)
}

func TestSepiaWarmsMidtones(t *testing.T) {
	cfg := negative.DefaultToningConfig()
	cfg.SepiaStrength = 1.0
	pc := negative.NewContext(4, 4, negative.ProcessC41, 4)

	mid := uniformBuffer(2, 2, 0.5, 0.5, 0.5)
	out, err := NewToning(cfg).Process(pc, mid)
	require.NoError(t, err)
	r, _, b := out.At(0, 0)
	assert.Greater(t, r, b)

	dark := uniformBuffer(2, 2, 0.02, 0.02, 0.02)
	out, err = NewToning(cfg).Process(pc, dark)
	require.NoError(t, err)
	r, _, b = out.At(0, 0)
	assert.InDelta(t, float64(r), float64(b), 0.01)
}

func TestPaperTintAndDMaxBoost(t *testing.T) {
	cfg := negative.DefaultToningConfig()
	cfg.PaperProfile = negative.PaperWarmFiber
	pc := negative.NewContext(2, 2, negative.ProcessC41, 2)

	img := uniformBuffer(2, 2, 0.9, 0.9, 0.9)
	out, err := NewToning(cfg).Process(pc, img)
	require.NoError(t, err)
	r, _, b := out.At(0, 0)
	assert.Greater(t, r, b) // warm base

	dark := uniformBuffer(2, 2, 0.1, 0.1, 0.1)
	out, err = NewToning(cfg).Process(pc, dark)
	require.NoError(t, err)
	dr, _, _ := out.At(0, 0)
	// blacks get deeper than plain tint would make them
	assert.Less(t, dr, float32(0.1*0.985))
}

func TestBWStaysNeutralBeforeTint(t *testing.T) {
	cfg := negative.DefaultToningConfig()
	pc := negative.NewContext(2, 2, negative.ProcessBW, 2)
	img := uniformBuffer(2, 2, 0.6, 0.4, 0.5)
	out, err := NewToning(cfg).Process(pc, img)
	require.NoError(t, err)
	r, g, b := out.At(0, 0)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)
}
