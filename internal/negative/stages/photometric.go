package stages

import (
	"math"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Photometric applies the paper's characteristic curve: a sigmoid in
// density space with adjustable grade, toe and shoulder damping, split
// shadow/highlight filtration, and final transmittance with display gamma.
type Photometric struct {
	Config negative.ExposureConfig
}

// NewPhotometric returns the curve stage for the given config.
func NewPhotometric(cfg negative.ExposureConfig) *Photometric {
	return &Photometric{Config: cfg}
}

func (p *Photometric) Name() string { return "photometric" }

// CurveParams are the derived per-render curve constants.
type CurveParams struct {
	Slope float64
	Pivot float64

	// Per-channel additive log-exposure offsets (cyan/magenta/yellow on
	// R/G/B), for global, shadow and highlight filtration.
	CMY          [3]float64
	ShadowCMY    [3]float64
	HighlightCMY [3]float64
}

// DeriveCurve computes the curve constants from the exposure settings.
// cameraWB optionally carries magenta/yellow shifts measured off a neutral
// patch.
func DeriveCurve(cfg negative.ExposureConfig, cameraWB *[2]float64) CurveParams {
	exposureShift := 0.1 + cfg.Density*negative.DensityMultiplier
	cp := CurveParams{
		Slope: 1 + cfg.Grade*negative.GradeMultiplier,
		Pivot: 1.0 - exposureShift,
		CMY: [3]float64{
			imagemath.CMYToDensity(cfg.WBCyan),
			imagemath.CMYToDensity(cfg.WBMagenta),
			imagemath.CMYToDensity(cfg.WBYellow),
		},
		ShadowCMY: [3]float64{
			imagemath.CMYToDensity(cfg.ShadowCyan),
			imagemath.CMYToDensity(cfg.ShadowMagenta),
			imagemath.CMYToDensity(cfg.ShadowYellow),
		},
		HighlightCMY: [3]float64{
			imagemath.CMYToDensity(cfg.HighlightCyan),
			imagemath.CMYToDensity(cfg.HighlightMagenta),
			imagemath.CMYToDensity(cfg.HighlightYellow),
		},
	}
	if cfg.UseCameraWB && cameraWB != nil {
		cp.CMY[1] += cameraWB[0]
		cp.CMY[2] += cameraWB[1]
	}
	return cp
}

func (p *Photometric) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	var cameraWB *[2]float64
	if wb, ok := pc.Metrics["camera_wb"].(*[2]float64); ok {
		cameraWB = wb
	}
	cp := DeriveCurve(p.Config, cameraWB)

	out := imagemath.NewBuffer(img.W, img.H)
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		for ch := 0; ch < 3; ch++ {
			out.Data[j+ch] = float32(EvalCurve(p.Config, cp, ch, float64(img.Data[j+ch])))
		}
	}
	// BW collapses the positive, not the negative: the curve is nonlinear
	// and carries per-channel filtration, so each channel goes through it
	// before the luminance merge.
	if pc.Mode == negative.ProcessBW {
		collapseToLumaInPlace(out)
	}
	return out, nil
}

// curveTerms computes the adjusted log-exposure difference and the curve
// damping factor for one channel value.
func curveTerms(cfg negative.ExposureConfig, cp CurveParams, ch int, v float64) (diffAdj, kMod float64) {
	diff := v + cp.CMY[ch] - cp.Pivot

	sCenter := (1 - cp.Pivot) * 0.9
	hCenter := (0 - cp.Pivot) * 0.9
	sd := diff - sCenter
	hd := diff - hCenter
	sMask := math.Exp(-(sd * sd) / 0.15)
	hMask := math.Exp(-(hd * hd) / 0.15)

	diffAdj = diff +
		cp.ShadowCMY[ch]*sMask + cp.HighlightCMY[ch]*hMask -
		cfg.Shadows*sMask*0.3 - cfg.Highlights*hMask*0.3

	wS := imagemath.Sigmoid(cfg.ShoulderWidth * diffAdj / math.Max(cp.Pivot, 1e-6))
	protS := math.Pow(4*(wS-0.5)*(wS-0.5), cfg.ShoulderHardness)
	dampShoulder := cfg.Shoulder * (1 - wS) * protS

	wT := imagemath.Sigmoid(cfg.ToeWidth * diffAdj / math.Max(1-cp.Pivot, 1e-6))
	protT := math.Pow(4*(wT-0.5)*(wT-0.5), cfg.ToeHardness)
	dampToe := cfg.Toe * wT * protT

	return diffAdj, imagemath.Clamp(1-dampToe-dampShoulder, 0.1, 2.0)
}

// EvalCurve evaluates the characteristic curve for one channel value in
// normalized density space.
func EvalCurve(cfg negative.ExposureConfig, cp CurveParams, ch int, v float64) float64 {
	diffAdj, kMod := curveTerms(cfg, cp, ch, v)
	density := negative.DMax * imagemath.Sigmoid(cp.Slope*diffAdj*kMod)
	transmittance := math.Pow(10, -density)
	return imagemath.Clamp(math.Pow(transmittance, 1/negative.DisplayGamma), 0, 1)
}

// KModFor exposes the curve damping factor for a given normalized value;
// always within [0.1, 2.0].
func KModFor(cfg negative.ExposureConfig, cp CurveParams, ch int, v float64) float64 {
	_, kMod := curveTerms(cfg, cp, ch, v)
	return kMod
}

func collapseToLumaInPlace(img *imagemath.Buffer) {
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		l := imagemath.Luminance709(img.Data[j], img.Data[j+1], img.Data[j+2])
		img.Data[j], img.Data[j+1], img.Data[j+2] = l, l, l
	}
}
