package stages

import (
	"fmt"
	"math"
	"sort"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
	"github.com/negproof/negproof/internal/negative"
)

// Analysis percentiles. Negative processes anchor on the dark tail; E-6
// inverts, anchoring on the brightest film base.
const (
	percentileLowNegative  = 0.5
	percentileHighNegative = 99.5
	percentileLowE6        = 99.9
	percentileHighE6       = 0.01

	// e6FixedRange is the log-density span assumed for slide film when
	// full-range normalization is disabled.
	e6FixedRange = -3.0

	// denomGuard keeps the normalization denominator away from zero while
	// preserving its sign.
	denomGuard = 1e-6

	maxAnalysisBuffer = 0.3
)

// Normalization converts the scan to log density and stretches it to the
// unit range using per-channel floors and ceils, then removes any shadow
// color cast. Bounds come from a roll lock, a per-file override, or fresh
// analysis, in that priority order.
type Normalization struct {
	Config negative.ProcessConfig
}

// NewNormalization returns the normalization stage for the given config.
func NewNormalization(cfg negative.ProcessConfig) *Normalization {
	return &Normalization{Config: cfg}
}

func (n *Normalization) Name() string { return "normalization" }

func (n *Normalization) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	cfg := n.Config

	bounds := n.resolveBounds(pc, img)
	for i := 0; i < 3; i++ {
		bounds.Floors[i] += cfg.WhitePointOffset
		bounds.Ceils[i] += cfg.BlackPointOffset
	}

	out := Normalize(img, bounds)
	pc.SetMetric("normalized_bounds", bounds)

	if cfg.ShadowCastStrength > 0 {
		cast := n.resolveCast(pc, out)
		if !cast.IsZero() {
			out = ApplyShadowCast(out, cast, cfg.ShadowCastStrength)
		}
		pc.SetMetric("shadow_cast", cast)
		pc.Cast = &cast
	}
	return out, nil
}

func (n *Normalization) resolveBounds(pc *negative.Context, img *imagemath.Buffer) negative.NormalizationBounds {
	cfg := n.Config
	if cfg.UseRollAverage && cfg.LockedBounds.Initialized() {
		return cfg.LockedBounds
	}
	if cfg.LocalBounds.Initialized() {
		return cfg.LocalBounds
	}
	key := analysisKey(cfg, pc.ActiveROI)
	if cached := pc.CachedBounds(key); cached != nil {
		return *cached
	}
	bounds := AnalyzeBounds(img, pc.ActiveROI, cfg.Mode, cfg.AnalysisBuffer, cfg.E6Normalize)
	pc.StoreBounds(key, bounds)
	return bounds
}

func (n *Normalization) resolveCast(pc *negative.Context, normalized *imagemath.Buffer) negative.ShadowCastCorrection {
	cfg := n.Config
	if cfg.UseRollAverage && !cfg.LockedShadowCast.IsZero() {
		return cfg.LockedShadowCast
	}
	if !cfg.LocalShadowCast.IsZero() {
		return cfg.LocalShadowCast
	}
	if pc.Cast != nil {
		return *pc.Cast
	}
	return AnalyzeShadowCast(normalized, cfg.ShadowCastThreshold)
}

// analysisKey identifies the inputs a bounds analysis depends on; cached
// bounds are discarded when it changes.
func analysisKey(cfg negative.ProcessConfig, roi *negative.ROI) string {
	region := "full"
	if roi != nil && !roi.Empty() {
		region = fmt.Sprintf("%d,%d,%d,%d", roi.X1, roi.Y1, roi.X2, roi.Y2)
	}
	return fmt.Sprintf("%s|%.6f|%t|%s", cfg.Mode, cfg.AnalysisBuffer, cfg.E6Normalize, region)
}

// AnalyzeBounds measures per-channel log-density floors and ceils inside
// the active ROI of the oriented frame (nil roi means full frame). The
// slice happens before the border trim so the bright rebate outside a
// crop never lifts the ceiling.
func AnalyzeBounds(img *imagemath.Buffer, roi *negative.ROI, mode negative.ProcessMode, buffer float64, e6Normalize bool) negative.NormalizationBounds {
	region := img
	if roi != nil && !roi.Empty() {
		if sliced := img.Crop(roi.Y1, roi.Y2, roi.X1, roi.X2); sliced.Pixels() > 0 {
			region = sliced
		}
	}
	crop := analysisCrop(region, buffer)

	pLow, pHigh := percentileLowNegative, percentileHighNegative
	if mode.IsReversal() {
		pLow, pHigh = percentileLowE6, percentileHighE6
	}

	var bounds negative.NormalizationBounds
	n := crop.Pixels()
	vals := mempool.GetFloat32(n)
	defer mempool.PutFloat32(vals)
	for ch := 0; ch < 3; ch++ {
		for i := 0; i < n; i++ {
			vals[i] = float32(imagemath.Log10Clip(float64(crop.Data[i*3+ch])))
		}
		sorted := vals[:n]
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		bounds.Floors[ch] = imagemath.PercentileSorted(sorted, pLow)
		if mode.IsReversal() && !e6Normalize {
			bounds.Ceils[ch] = bounds.Floors[ch] + e6FixedRange
		} else {
			bounds.Ceils[ch] = imagemath.PercentileSorted(sorted, pHigh)
		}
	}
	return bounds
}

// Normalize maps the scan through log density into the unit range using
// the given bounds.
func Normalize(img *imagemath.Buffer, bounds negative.NormalizationBounds) *imagemath.Buffer {
	out := imagemath.NewBuffer(img.W, img.H)
	var denoms [3]float64
	for ch := 0; ch < 3; ch++ {
		denoms[ch] = guardDenom(bounds.Ceils[ch] - bounds.Floors[ch])
	}
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		for ch := 0; ch < 3; ch++ {
			lg := imagemath.Log10Clip(float64(img.Data[j+ch]))
			out.Data[j+ch] = float32(imagemath.Clamp((lg-bounds.Floors[ch])/denoms[ch], 0, 1))
		}
	}
	return out
}

func guardDenom(d float64) float64 {
	if d >= 0 && d < denomGuard {
		return denomGuard
	}
	if d < 0 && d > -denomGuard {
		return -denomGuard
	}
	return d
}

// analysisCrop trims the border of the frame before analysis so sprocket
// holes and rebate never skew the percentiles.
func analysisCrop(img *imagemath.Buffer, buffer float64) *imagemath.Buffer {
	b := imagemath.Clamp(buffer, 0, maxAnalysisBuffer)
	if b == 0 {
		return img
	}
	mh := int(math.Round(float64(img.H) * b))
	mw := int(math.Round(float64(img.W) * b))
	crop := img.Crop(mh, img.H-mh, mw, img.W-mw)
	if crop.Pixels() == 0 {
		return img
	}
	return crop
}
