package stages

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

func uniformBuffer(w, h int, r, g, b float32) *imagemath.Buffer {
	buf := imagemath.NewBuffer(w, h)
	for i := 0; i < buf.Pixels(); i++ {
		j := i * 3
		buf.Data[j], buf.Data[j+1], buf.Data[j+2] = r, g, b
	}
	return buf
}

func TestNormalizeMidpoint(t *testing.T) {
	bounds := negative.NormalizationBounds{
		Floors: [3]float64{-2, -2, -2},
		Ceils:  [3]float64{0, 0, 0},
	}
	// log10(0.1) = -1 sits exactly between floor and ceil
	img := uniformBuffer(4, 4, 0.1, 0.1, 0.1)
	out := Normalize(img, bounds)
	for i := 0; i < out.Pixels()*3; i++ {
		require.InDelta(t, 0.5, out.Data[i], 1e-5)
	}
}

func TestNormalizeMonotonic(t *testing.T) {
	bounds := negative.NormalizationBounds{
		Floors: [3]float64{-3, -3, -3},
		Ceils:  [3]float64{0, 0, 0},
	}
	prev := float32(-1)
	for _, v := range []float32{0.001, 0.01, 0.1, 0.3, 0.6, 1.0} {
		out := Normalize(uniformBuffer(1, 1, v, v, v), bounds)
		require.GreaterOrEqual(t, out.Data[0], prev)
		prev = out.Data[0]
	}
	// endpoints clamp to the unit range
	lo := Normalize(uniformBuffer(1, 1, 0, 0, 0), bounds)
	hi := Normalize(uniformBuffer(1, 1, 1, 1, 1), bounds)
	assert.InDelta(t, 0, lo.Data[0], 1e-5)
	assert.InDelta(t, 1, hi.Data[0], 1e-5)
}

func TestGuardDenomPreservesSign(t *testing.T) {
	assert.Equal(t, denomGuard, guardDenom(0))
	assert.Equal(t, denomGuard, guardDenom(1e-9))
	assert.Equal(t, -denomGuard, guardDenom(-1e-9))
	assert.Equal(t, 2.5, guardDenom(2.5))
	assert.Equal(t, -2.5, guardDenom(-2.5))
}

func TestAnalyzeBoundsGradient(t *testing.T) {
	// horizontal gradient from deep density to clear film
	img := imagemath.NewBuffer(256, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 256; x++ {
			v := 0.001 + float32(x)/255*0.999
			img.Set(x, y, v, v, v)
		}
	}
	bounds := AnalyzeBounds(img, nil, negative.ProcessC41, 0, true)
	for ch := 0; ch < 3; ch++ {
		assert.Less(t, bounds.Floors[ch], bounds.Ceils[ch])
		assert.Greater(t, bounds.Floors[ch], -6.1)
		assert.InDelta(t, 0, bounds.Ceils[ch], 0.05)
	}
}

func TestAnalyzeBoundsHonorsActiveROI(t *testing.T) {
	// bright unexposed rebate everywhere outside a centered crop whose
	// interior never rises above 0.40
	img := imagemath.NewBuffer(64, 64)
	roi := negative.ROI{X1: 16, Y1: 16, X2: 48, Y2: 48}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x >= roi.X1 && x < roi.X2 && y >= roi.Y1 && y < roi.Y2 {
				v := 0.05 + float32(x-roi.X1)/float32(roi.Width()-1)*0.35
				img.Set(x, y, v, v, v)
			} else {
				img.Set(x, y, 0.90, 0.90, 0.90)
			}
		}
	}

	whole := AnalyzeBounds(img, nil, negative.ProcessC41, 0, true)
	inROI := AnalyzeBounds(img, &roi, negative.ProcessC41, 0, true)
	for ch := 0; ch < 3; ch++ {
		// rebate at 0.90 pulls the whole-frame ceiling toward zero density
		assert.Greater(t, whole.Ceils[ch], math.Log10(0.80))
		// ROI analysis tops out at the crop's brightest interior value
		assert.Less(t, inROI.Ceils[ch], math.Log10(0.45))
		assert.Greater(t, inROI.Ceils[ch], math.Log10(0.30))
	}

	// the normalization stage feeds the context crop into the analysis
	cfg := negative.DefaultProcessConfig()
	cfg.AnalysisBuffer = 0
	pc := negative.NewContext(64, 64, cfg.Mode, 64)
	pc.ActiveROI = &roi
	got := NewNormalization(cfg).resolveBounds(pc, img)
	assert.Equal(t, inROI, got)
}

func TestAnalyzeBoundsE6FixedRange(t *testing.T) {
	img := uniformBuffer(32, 32, 0.8, 0.8, 0.8)
	bounds := AnalyzeBounds(img, nil, negative.ProcessE6, 0, false)
	for ch := 0; ch < 3; ch++ {
		assert.InDelta(t, bounds.Floors[ch]+e6FixedRange, bounds.Ceils[ch], 1e-9)
	}
}

func TestNormalizationBoundsPriority(t *testing.T) {
	locked := negative.NormalizationBounds{Floors: [3]float64{-1, -1, -1}, Ceils: [3]float64{-0.1, -0.1, -0.1}}
	local := negative.NormalizationBounds{Floors: [3]float64{-2, -2, -2}, Ceils: [3]float64{-0.2, -0.2, -0.2}}

	cfg := negative.DefaultProcessConfig()
	cfg.UseRollAverage = true
	cfg.LockedBounds = locked
	cfg.LocalBounds = local
	pc := negative.NewContext(8, 8, cfg.Mode, 8)
	img := uniformBuffer(8, 8, 0.5, 0.5, 0.5)

	got := NewNormalization(cfg).resolveBounds(pc, img)
	assert.Equal(t, locked, got)

	cfg.UseRollAverage = false
	got = NewNormalization(cfg).resolveBounds(pc, img)
	assert.Equal(t, local, got)

	cfg.LocalBounds = negative.NormalizationBounds{}
	got = NewNormalization(cfg).resolveBounds(pc, img)
	assert.NotEqual(t, locked, got)
	assert.True(t, got.Initialized())

	// second call hits the context cache
	cached := NewNormalization(cfg).resolveBounds(pc, img)
	assert.Equal(t, got, cached)

	// changing the analysis buffer invalidates the cached bounds
	cfg.AnalysisBuffer = 0.2
	assert.Nil(t, pc.CachedBounds(analysisKey(cfg, nil)))

	// a crop change is an analysis-input change too
	cfg.AnalysisBuffer = 0.1
	pc2 := negative.NewContext(8, 8, cfg.Mode, 8)
	NewNormalization(cfg).resolveBounds(pc2, img)
	pc2.ActiveROI = &negative.ROI{X1: 1, Y1: 1, X2: 7, Y2: 7}
	assert.Nil(t, pc2.CachedBounds(analysisKey(cfg, pc2.ActiveROI)))
}

func TestPointOffsetsShiftBounds(t *testing.T) {
	cfg := negative.DefaultProcessConfig()
	cfg.LocalBounds = negative.NormalizationBounds{
		Floors: [3]float64{-2, -2, -2},
		Ceils:  [3]float64{-0.1, -0.1, -0.1},
	}
	cfg.WhitePointOffset = 0.1
	cfg.BlackPointOffset = -0.05
	pc := negative.NewContext(4, 4, cfg.Mode, 4)
	img := uniformBuffer(4, 4, 0.5, 0.5, 0.5)

	_, err := NewNormalization(cfg).Process(pc, img)
	require.NoError(t, err)
	bounds, ok := pc.Metrics["normalized_bounds"].(negative.NormalizationBounds)
	require.True(t, ok)
	assert.InDelta(t, -1.9, bounds.Floors[0], 1e-9)
	assert.InDelta(t, -0.15, bounds.Ceils[0], 1e-9)
}

func TestShadowCastAnalysisAndApply(t *testing.T) {
	// dense half carries a red cast
	img := imagemath.NewBuffer(16, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if y < 8 {
				img.Set(x, y, 0.95, 0.85, 0.85)
			} else {
				img.Set(x, y, 0.1, 0.1, 0.1)
			}
		}
	}
	cast := AnalyzeShadowCast(img, 0.75)
	require.False(t, cast.IsZero())
	// red above average in the dense area -> negative red correction
	assert.Negative(t, cast.Vector[0])
	assert.Positive(t, cast.Vector[1])

	corrected := ApplyShadowCast(img, cast, 1.0)
	r, g, _ := corrected.At(0, 0)
	// channels pulled toward each other
	assert.Less(t, r-g, float32(0.1))
	// low-density pixels barely move
	r2, _, _ := corrected.At(0, 15)
	assert.InDelta(t, 0.1, r2, 0.02)

	// no pixel above threshold -> zero correction
	flat := uniformBuffer(4, 4, 0.2, 0.2, 0.2)
	assert.True(t, AnalyzeShadowCast(flat, 0.75).IsZero())
}

func TestAnalysisCropClampsBuffer(t *testing.T) {
	img := uniformBuffer(100, 100, 0.5, 0.5, 0.5)
	crop := analysisCrop(img, 5.0) // clamped to 0.3
	assert.Equal(t, 40, crop.W)
	assert.Equal(t, 40, crop.H)
	same := analysisCrop(img, 0)
	assert.Equal(t, 100, same.W)
}

func TestSigmoidMidpointThroughCurve(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cp := DeriveCurve(cfg, nil)
	// at the pivot the sigmoid sits at 0.5 -> density DMax/2
	v := cp.Pivot
	got := EvalCurve(cfg, cp, 0, v)
	want := math.Pow(math.Pow(10, -negative.DMax/2), 1/negative.DisplayGamma)
	assert.InDelta(t, want, got, 1e-9)
}
