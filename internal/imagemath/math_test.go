package imagemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigmoid(t *testing.T) {
	assert.InDelta(t, 0.5, Sigmoid(0), 1e-12)
	assert.InDelta(t, 1.0, Sigmoid(500), 1e-12)
	assert.InDelta(t, 0.0, Sigmoid(-500), 1e-12)
	// symmetric around 0
	for _, x := range []float64{0.1, 1, 3.7, 40} {
		assert.InDelta(t, 1, Sigmoid(x)+Sigmoid(-x), 1e-12)
	}
	// no overflow for extreme inputs
	assert.False(t, math.IsNaN(Sigmoid(1e10)))
	assert.False(t, math.IsNaN(Sigmoid(-1e10)))
}

func TestSigmoidMonotonic(t *testing.T) {
	prev := Sigmoid(-10)
	for x := -9.9; x <= 10; x += 0.1 {
		cur := Sigmoid(x)
		require.Greater(t, cur, prev)
		prev = cur
	}
}

func TestLog10Clip(t *testing.T) {
	assert.InDelta(t, 0, Log10Clip(1), 1e-12)
	assert.InDelta(t, -6, Log10Clip(0), 1e-12)
	assert.InDelta(t, -6, Log10Clip(-5), 1e-12)
	assert.InDelta(t, 0, Log10Clip(2), 1e-12)
	assert.InDelta(t, -1, Log10Clip(0.1), 1e-12)
}

func TestPercentile(t *testing.T) {
	vals := []float32{5, 1, 3, 2, 4}
	assert.InDelta(t, 1, Percentile(vals, 0), 1e-6)
	assert.InDelta(t, 3, Percentile(vals, 50), 1e-6)
	assert.InDelta(t, 5, Percentile(vals, 100), 1e-6)
	// interpolated rank
	assert.InDelta(t, 1.4, Percentile(vals, 10), 1e-6)
	// input untouched
	assert.Equal(t, float32(5), vals[0])

	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.InDelta(t, 7, Percentile([]float32{7}, 99), 1e-6)
}

func TestCMYDensityRoundTrip(t *testing.T) {
	for _, v := range []float64{-1, -0.25, 0, 0.5, 1} {
		assert.InDelta(t, v, DensityToCMY(CMYToDensity(v)), 1e-12)
	}
}

func TestWBShiftsFromGray(t *testing.T) {
	mg, yl := WBShiftsFromGray(0.5, 0.5, 0.5)
	assert.InDelta(t, 0, mg, 1e-12)
	assert.InDelta(t, 0, yl, 1e-12)

	mg, yl = WBShiftsFromGray(0.25, 0.5, 0.5)
	assert.InDelta(t, math.Log10(2), mg, 1e-9)
	assert.InDelta(t, math.Log10(2), yl, 1e-9)
}

func TestLabRoundTrip(t *testing.T) {
	cases := [][3]float32{
		{0.5, 0.5, 0.5},
		{0.9, 0.1, 0.2},
		{0.05, 0.7, 0.3},
		{1, 1, 1},
	}
	for _, c := range cases {
		l, a, b := RGBToLab(c[0], c[1], c[2])
		r, g, bl := LabToRGB(l, a, b)
		assert.InDelta(t, c[0], r, 1e-3)
		assert.InDelta(t, c[1], g, 1e-3)
		assert.InDelta(t, c[2], bl, 1e-3)
	}
	// gray has no chroma
	_, a, b := RGBToLab(0.42, 0.42, 0.42)
	assert.InDelta(t, 0, a, 0.2)
	assert.InDelta(t, 0, b, 0.2)
}

func TestHSVRoundTrip(t *testing.T) {
	cases := [][3]float32{
		{1, 0, 0},
		{0.2, 0.8, 0.4},
		{0.3, 0.3, 0.3},
		{0, 0.5, 1},
	}
	for _, c := range cases {
		h, s, v := RGBToHSV(c[0], c[1], c[2])
		r, g, b := HSVToRGB(h, s, v)
		assert.InDelta(t, c[0], r, 1e-5)
		assert.InDelta(t, c[1], g, 1e-5)
		assert.InDelta(t, c[2], b, 1e-5)
	}
}

func TestQuantizeNaN(t *testing.T) {
	nan := float32(math.NaN())
	assert.Equal(t, uint8(0), quantize8(nan))
	assert.Equal(t, uint16(0), quantize16(nan))
	assert.Equal(t, uint8(255), quantize8(1.5))
	assert.Equal(t, uint8(128), quantize8(0.5))
}
