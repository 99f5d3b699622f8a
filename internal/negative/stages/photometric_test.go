package stages

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/negative"
)

func TestDeriveCurveDefaults(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cp := DeriveCurve(cfg, nil)
	// density 1.0 -> shift 0.3 -> pivot 0.7; grade 2 -> slope 5
	assert.InDelta(t, 5.0, cp.Slope, 1e-12)
	assert.InDelta(t, 0.7, cp.Pivot, 1e-12)
	assert.Equal(t, [3]float64{}, cp.CMY)
}

func TestCurveMonotonicWithoutDamping(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cp := DeriveCurve(cfg, nil)
	prev := EvalCurve(cfg, cp, 0, 0)
	for v := 0.01; v <= 1.0; v += 0.01 {
		cur := EvalCurve(cfg, cp, 0, v)
		// more density on the negative -> darker print
		require.Less(t, cur, prev)
		prev = cur
	}
}

func TestCurveOutputRange(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cfg.Toe = 1.5
	cfg.Shoulder = 1.2
	cfg.Shadows = 0.8
	cfg.Highlights = -0.5
	cp := DeriveCurve(cfg, nil)
	for v := -0.5; v <= 1.5; v += 0.05 {
		out := EvalCurve(cfg, cp, 1, v)
		require.GreaterOrEqual(t, out, 0.0)
		require.LessOrEqual(t, out, 1.0)
	}
}

func TestKModAlwaysClamped(t *testing.T) {
	cases := []negative.ExposureConfig{
		func() negative.ExposureConfig {
			c := negative.DefaultExposureConfig()
			c.Toe = 100
			return c
		}(),
		func() negative.ExposureConfig {
			c := negative.DefaultExposureConfig()
			c.Shoulder = 100
			return c
		}(),
		func() negative.ExposureConfig {
			c := negative.DefaultExposureConfig()
			c.Toe = -100
			c.Shoulder = -100
			return c
		}(),
	}
	for _, cfg := range cases {
		cp := DeriveCurve(cfg, nil)
		for v := 0.0; v <= 1.0; v += 0.02 {
			k := KModFor(cfg, cp, 0, v)
			require.GreaterOrEqual(t, k, 0.1)
			require.LessOrEqual(t, k, 2.0)
		}
	}
}

func TestKModUnityWithoutToeShoulder(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cp := DeriveCurve(cfg, nil)
	for v := 0.0; v <= 1.0; v += 0.1 {
		assert.InDelta(t, 1.0, KModFor(cfg, cp, 0, v), 1e-12)
	}
}

func TestCMYOffsetsShiftChannels(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cfg.WBCyan = 0.5
	cp := DeriveCurve(cfg, nil)
	assert.InDelta(t, 0.1, cp.CMY[0], 1e-12)

	neutral := DeriveCurve(negative.DefaultExposureConfig(), nil)
	// extra cyan density darkens the red channel response
	withCyan := EvalCurve(cfg, cp, 0, 0.5)
	without := EvalCurve(cfg, neutral, 0, 0.5)
	assert.Less(t, withCyan, without)
}

func TestCameraWBApplied(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	cfg.UseCameraWB = true
	wb := [2]float64{0.05, -0.03}
	cp := DeriveCurve(cfg, &wb)
	assert.InDelta(t, 0.05, cp.CMY[1], 1e-12)
	assert.InDelta(t, -0.03, cp.CMY[2], 1e-12)

	cfg.UseCameraWB = false
	cp = DeriveCurve(cfg, &wb)
	assert.Equal(t, [3]float64{}, cp.CMY)
}

func TestBWCollapsesChannels(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	stage := NewPhotometric(cfg)
	pc := negative.NewContext(2, 2, negative.ProcessBW, 2)
	img := uniformBuffer(2, 2, 0.8, 0.4, 0.2)
	out, err := stage.Process(pc, img)
	require.NoError(t, err)
	r, g, b := out.At(0, 0)
	assert.Equal(t, r, g)
	assert.Equal(t, g, b)

	// Each channel rides the curve before the luminance merge, so the
	// result is the weighted sum of the per-channel positives, not the
	// curve of the merged negative.
	cp := DeriveCurve(cfg, nil)
	want := 0.2126*EvalCurve(cfg, cp, 0, 0.8) +
		0.7152*EvalCurve(cfg, cp, 1, 0.4) +
		0.0722*EvalCurve(cfg, cp, 2, 0.2)
	assert.InDelta(t, want, float64(r), 1e-6)
}

func TestBWCurveRunsPerChannel(t *testing.T) {
	cfg := negative.DefaultExposureConfig()
	stage := NewPhotometric(cfg)
	pc := negative.NewContext(1, 1, negative.ProcessBW, 1)
	img := uniformBuffer(1, 1, 0.15, 0.80, 0.45)
	out, err := stage.Process(pc, img)
	require.NoError(t, err)

	cp := DeriveCurve(cfg, nil)
	want := 0.2126*EvalCurve(cfg, cp, 0, 0.15) +
		0.7152*EvalCurve(cfg, cp, 1, 0.80) +
		0.0722*EvalCurve(cfg, cp, 2, 0.45)
	r, _, _ := out.At(0, 0)
	assert.InDelta(t, want, float64(r), 1e-6)

	// The orders are not interchangeable on a colored pixel.
	lum := 0.2126*0.15 + 0.7152*0.80 + 0.0722*0.45
	mergedFirst := EvalCurve(cfg, cp, 0, lum)
	assert.Greater(t, math.Abs(mergedFirst-float64(r)), 1e-3)
}
