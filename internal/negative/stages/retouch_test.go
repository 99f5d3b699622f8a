package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

func TestRemoveDustClearsSpeckOnFlatField(t *testing.T) {
	img := uniformBuffer(40, 40, 0.5, 0.5, 0.5)
	// a bright two-pixel speck
	img.Set(20, 20, 1, 1, 1)
	img.Set(21, 20, 1, 1, 1)

	out := RemoveDust(img, 0.12, 2.0, 1.0)
	r, _, _ := out.At(20, 20)
	assert.InDelta(t, 0.5, r, 0.1)
	// far away untouched
	fr, _, _ := out.At(5, 35)
	assert.InDelta(t, 0.5, fr, 0.01)
}

func TestRemoveDustLeavesTextureAlone(t *testing.T) {
	// strong checkerboard: high local std keeps detection off
	img := imagemath.NewBuffer(32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v := float32(0.2)
			if (x+y)%2 == 0 {
				v = 0.8
			}
			img.Set(x, y, v, v, v)
		}
	}
	out := RemoveDust(img, 0.12, 2.0, 1.0)
	r0, _, _ := img.At(16, 16)
	r1, _, _ := out.At(16, 16)
	assert.InDelta(t, r0, r1, 0.05)
}

func TestHealSpotsFillsRegion(t *testing.T) {
	img := uniformBuffer(40, 40, 0.5, 0.5, 0.5)
	// dark blotch to heal
	for y := 18; y < 23; y++ {
		for x := 18; x < 23; x++ {
			img.Set(x, y, 0.02, 0.02, 0.02)
		}
	}
	pc := negative.NewContext(40, 40, negative.ProcessC41, 40)
	spots := []negative.DustSpot{{X: 0.5, Y: 0.5, Size: 5}}

	out := HealSpots(img, spots, pc)
	r, _, _ := out.At(20, 20)
	assert.Greater(t, r, float32(0.1))
}

func TestHealSpotsDeterministic(t *testing.T) {
	img := uniformBuffer(30, 30, 0.4, 0.4, 0.4)
	img.Set(15, 15, 1, 1, 1)
	pc := negative.NewContext(30, 30, negative.ProcessC41, 30)
	spots := []negative.DustSpot{{X: 0.5, Y: 0.5, Size: 3}}

	a := HealSpots(img, spots, pc)
	b := HealSpots(img, spots, pc)
	assert.Equal(t, a.Data, b.Data)
}

func TestLocalAdjustmentDodgesRegion(t *testing.T) {
	img := uniformBuffer(60, 60, 0.25, 0.25, 0.25)
	pc := negative.NewContext(60, 60, negative.ProcessC41, 60)
	adj := []negative.LocalAdjustment{{
		Points:   [][2]float64{{0.5, 0.5}},
		Strength: 1.0, // one stop up
		Radius:   8,
	}}
	out := ApplyLocalAdjustments(img, adj, pc)
	r, _, _ := out.At(30, 30)
	assert.InDelta(t, 0.5, r, 0.02)
	// outside the region untouched
	fr, _, _ := out.At(5, 5)
	assert.InDelta(t, 0.25, fr, 1e-5)
}

func TestLocalAdjustmentBurn(t *testing.T) {
	img := uniformBuffer(40, 40, 0.8, 0.8, 0.8)
	pc := negative.NewContext(40, 40, negative.ProcessC41, 40)
	adj := []negative.LocalAdjustment{{
		Points:   [][2]float64{{0.5, 0.5}},
		Strength: -1.0,
		Radius:   6,
	}}
	out := ApplyLocalAdjustments(img, adj, pc)
	r, _, _ := out.At(20, 20)
	assert.InDelta(t, 0.4, r, 0.02)
}

func TestLocalAdjustmentLumaRange(t *testing.T) {
	// left half dark, right half bright; target only the bright side
	img := imagemath.NewBuffer(40, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := float32(0.2)
			if x >= 20 {
				v = 0.8
			}
			img.Set(x, y, v, v, v)
		}
	}
	pc := negative.NewContext(40, 20, negative.ProcessC41, 40)
	lumaRange := [2]float64{0.5, 1.0}
	adj := []negative.LocalAdjustment{{
		Points:       [][2]float64{{0.25, 0.5}, {0.75, 0.5}},
		Strength:     -1.0,
		Radius:       5,
		LumaRange:    &lumaRange,
		LumaSoftness: 0.02,
	}}
	out := ApplyLocalAdjustments(img, adj, pc)
	dark, _, _ := out.At(10, 10)
	bright, _, _ := out.At(30, 10)
	assert.InDelta(t, 0.2, dark, 0.02)  // outside luma range
	assert.InDelta(t, 0.4, bright, 0.03) // burned one stop
}

func TestRetouchStageDisabledPassthrough(t *testing.T) {
	cfg := negative.DefaultRetouchConfig()
	pc := negative.NewContext(8, 8, negative.ProcessC41, 8)
	img := uniformBuffer(8, 8, 0.5, 0.5, 0.5)
	out, err := NewRetouch(cfg).Process(pc, img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestSpotsRemapThroughGeometry(t *testing.T) {
	img := uniformBuffer(40, 20, 0.5, 0.5, 0.5)
	pc := negative.NewContext(40, 20, negative.ProcessC41, 40)
	// a quarter turn: the oriented frame is 20x40
	oriented := imagemath.RotateQuarter(img, 1)
	pc.Geometry = testGeometryParams(1, 0, false, false, 40, 20)

	// spot at source (0.25, 0.5) lands at oriented (0.5, 0.75)
	spots := []negative.DustSpot{{X: 0.25, Y: 0.5, Size: 3}}
	dark := oriented.Clone()
	dark.Set(10, 30, 0, 0, 0)
	out := HealSpots(dark, spots, pc)
	r, _, _ := out.At(10, 30)
	assert.Greater(t, r, float32(0.3))
}
