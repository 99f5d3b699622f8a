package stages

import (
	"math"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
	"github.com/negproof/negproof/internal/negative"
)

// Per-process dye crosstalk calibration matrices, row-major RGB.
var (
	crosstalkC41 = [9]float64{
		1.0, -0.05, -0.02,
		-0.04, 1.0, -0.08,
		-0.01, -0.1, 1.0,
	}
	crosstalkE6 = [9]float64{
		1.1, -0.06, -0.04,
		-0.04, 1.1, -0.06,
		-0.04, -0.06, 1.1,
	}
)

// ColorLab applies the color grade: dye-crosstalk compensation in density
// space, saturation, local contrast (CLAHE), sharpening, chroma denoise
// and vibrance.
type ColorLab struct {
	Config negative.LabConfig
}

// NewColorLab returns the color grading stage for the given config.
func NewColorLab(cfg negative.LabConfig) *ColorLab {
	return &ColorLab{Config: cfg}
}

func (c *ColorLab) Name() string { return "lab" }

func (c *ColorLab) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	cfg := c.Config
	out := img

	if cfg.ColorSeparation > 1 {
		out = ApplyCrosstalk(out, crosstalkMatrix(cfg, pc.Mode), cfg.ColorSeparation)
	}
	if cfg.Saturation != 1 {
		out = ApplySaturation(out, cfg.Saturation)
	}
	if cfg.CLAHEStrength > 0 {
		out = ApplyCLAHE(out, cfg.CLAHEStrength, pc.ScaleFactor)
	}
	if cfg.Sharpen > 0 {
		out = UnsharpMask(out, cfg.Sharpen, pc.ScaleFactor)
	}
	if cfg.ChromaDenoise > 0 {
		out = ChromaDenoise(out, cfg.ChromaDenoise, pc.ScaleFactor)
	}
	if cfg.Vibrance != 1 {
		out = ApplyVibrance(out, cfg.Vibrance)
	}
	return out, nil
}

func crosstalkMatrix(cfg negative.LabConfig, mode negative.ProcessMode) [9]float64 {
	if cfg.CrosstalkMatrix != nil {
		return *cfg.CrosstalkMatrix
	}
	if mode.IsReversal() {
		return crosstalkE6
	}
	return crosstalkC41
}

// CrosstalkBlend blends the identity with the calibration matrix for the
// given separation strength and normalizes each row so neutral gray stays
// neutral. ok is false when separation is inactive.
func CrosstalkBlend(cfg negative.LabConfig, mode negative.ProcessMode) (m [9]float64, ok bool) {
	sep := math.Max(0, cfg.ColorSeparation-1)
	if sep == 0 {
		return m, false
	}
	cal := crosstalkMatrix(cfg, mode)
	for row := 0; row < 3; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			ident := 0.0
			if row == col {
				ident = 1.0
			}
			m[row*3+col] = ident*(1-sep) + cal[row*3+col]*sep
			sum += m[row*3+col]
		}
		norm := math.Max(sum, 1e-6)
		for col := 0; col < 3; col++ {
			m[row*3+col] /= norm
		}
	}
	return m, true
}

// ApplyCrosstalk blends the identity with a calibration matrix by the
// separation strength and applies the result in density space. Rows are
// normalized so neutral gray stays neutral.
func ApplyCrosstalk(img *imagemath.Buffer, cal [9]float64, separation float64) *imagemath.Buffer {
	sep := math.Max(0, separation-1)
	if sep == 0 {
		return img.Clone()
	}
	var m [9]float64
	for row := 0; row < 3; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			ident := 0.0
			if row == col {
				ident = 1.0
			}
			m[row*3+col] = ident*(1-sep) + cal[row*3+col]*sep
			sum += m[row*3+col]
		}
		norm := math.Max(sum, 1e-6)
		for col := 0; col < 3; col++ {
			m[row*3+col] /= norm
		}
	}

	out := imagemath.NewBuffer(img.W, img.H)
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		var dens [3]float64
		for ch := 0; ch < 3; ch++ {
			dens[ch] = -imagemath.Log10Clip(float64(img.Data[j+ch]))
		}
		for row := 0; row < 3; row++ {
			d := m[row*3]*dens[0] + m[row*3+1]*dens[1] + m[row*3+2]*dens[2]
			out.Data[j+row] = float32(imagemath.Clamp(math.Pow(10, -d), 0, 1))
		}
	}
	return out
}

// ApplySaturation scales HSV saturation.
func ApplySaturation(img *imagemath.Buffer, sat float64) *imagemath.Buffer {
	out := imagemath.NewBuffer(img.W, img.H)
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		h, s, v := imagemath.RGBToHSV(img.Data[j], img.Data[j+1], img.Data[j+2])
		s = imagemath.Clamp32(s*float32(sat), 0, 1)
		r, g, b := imagemath.HSVToRGB(h, s, v)
		out.Data[j], out.Data[j+1], out.Data[j+2] = r, g, b
	}
	return out
}

// UnsharpMask sharpens the L channel. The threshold suppresses halos on
// near-flat gradients; L is on the 0..100 scale here.
func UnsharpMask(img *imagemath.Buffer, amount, scale float64) *imagemath.Buffer {
	const threshold = 2.0
	amountF := amount * 2.5
	ksize := oddWindow(5 * scale)
	if ksize < 3 {
		ksize = 3
	}
	sigma := 1.0 * scale

	w, h := img.W, img.H
	n := img.Pixels()
	planes := mempool.GetPlanes(w, h, 4)
	defer mempool.PutPlanes(planes)
	lp, ap, bp, blur := planes[0], planes[1], planes[2], planes[3]
	imagemath.SplitLab(img, lp, ap, bp)
	imagemath.GaussianBlurPlane(blur, lp, w, h, ksize, sigma)
	for i := 0; i < n; i++ {
		diff := float64(lp[i]) - float64(blur[i])
		if math.Abs(diff) > threshold {
			lp[i] = float32(imagemath.Clamp(float64(lp[i])+amountF*diff, 0, 100))
		}
	}
	out := imagemath.NewBuffer(w, h)
	imagemath.MergeLab(out, lp, ap, bp)
	return out
}

// ChromaDenoise blurs only the chroma planes, leaving luminance detail.
func ChromaDenoise(img *imagemath.Buffer, radius, scale float64) *imagemath.Buffer {
	w, h := img.W, img.H
	planes := mempool.GetPlanes(w, h, 4)
	defer mempool.PutPlanes(planes)
	lp, ap, bp, tmp := planes[0], planes[1], planes[2], planes[3]
	imagemath.SplitLab(img, lp, ap, bp)

	win := oddWindow(radius * scale * 2)
	imagemath.GaussianBlurPlane(tmp, ap, w, h, win, 0)
	copy(ap, tmp)
	imagemath.GaussianBlurPlane(tmp, bp, w, h, win, 0)
	copy(bp, tmp)

	out := imagemath.NewBuffer(w, h)
	imagemath.MergeLab(out, lp, ap, bp)
	return out
}

// ApplyVibrance boosts chroma selectively where it is low, leaving already
// saturated colors alone.
func ApplyVibrance(img *imagemath.Buffer, strength float64) *imagemath.Buffer {
	w, h := img.W, img.H
	n := img.Pixels()
	planes := mempool.GetPlanes(w, h, 3)
	defer mempool.PutPlanes(planes)
	lp, ap, bp := planes[0], planes[1], planes[2]
	imagemath.SplitLab(img, lp, ap, bp)

	boost := strength - 1
	for i := 0; i < n; i++ {
		a := float64(ap[i])
		b := float64(bp[i])
		chroma := math.Sqrt(a*a + b*b)
		muted := imagemath.Clamp(1-chroma/60, 0, 1)
		f := 1 + boost*muted
		ap[i] = float32(a * f)
		bp[i] = float32(b * f)
	}
	out := imagemath.NewBuffer(w, h)
	imagemath.MergeLab(out, lp, ap, bp)
	return out
}
