package stages

import (
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Toning emulates chemical toners and the paper base. Selenium cools the
// shadows, sepia warms the midtones; the paper profile tints the whole
// print and may deepen the blacks.
type Toning struct {
	Config negative.ToningConfig
}

// NewToning returns the toning stage for the given config.
func NewToning(cfg negative.ToningConfig) *Toning {
	return &Toning{Config: cfg}
}

func (t *Toning) Name() string { return "toning" }

func (t *Toning) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	cfg := t.Config
	paper := negative.LookupPaper(cfg.PaperProfile)
	isBW := pc.Mode == negative.ProcessBW

	noTone := cfg.SeleniumStrength == 0 && cfg.SepiaStrength == 0
	if noTone && paper.Name == negative.PaperNone && !isBW {
		return img, nil
	}

	out := imagemath.NewBuffer(img.W, img.H)
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		r := float64(img.Data[j])
		g := float64(img.Data[j+1])
		b := float64(img.Data[j+2])
		lum := float64(imagemath.Luminance709(float32(r), float32(g), float32(b)))

		if isBW {
			// keep the base image neutral; only toner and paper add color
			r, g, b = lum, lum, lum
		}

		if s := cfg.SeleniumStrength; s > 0 {
			shadowW := (1 - lum) * (1 - lum)
			r *= 1 - 0.10*s*shadowW
			g *= 1 - 0.04*s*shadowW
			b *= 1 + 0.06*s*shadowW
		}
		if s := cfg.SepiaStrength; s > 0 {
			midW := 4 * lum * (1 - lum)
			r *= 1 + 0.10*s*midW
			g *= 1 + 0.04*s*midW
			b *= 1 - 0.10*s*midW
		}

		r *= paper.Tint[0]
		g *= paper.Tint[1]
		b *= paper.Tint[2]
		if paper.DMaxBoost > 0 {
			deepen := 1 - paper.DMaxBoost*(1-lum)
			r *= deepen
			g *= deepen
			b *= deepen
		}

		out.Data[j] = float32(imagemath.Clamp(r, 0, 1))
		out.Data[j+1] = float32(imagemath.Clamp(g, 0, 1))
		out.Data[j+2] = float32(imagemath.Clamp(b, 0, 1))
	}
	return out, nil
}
