package stages

import (
	"math"
	"math/rand"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
	"github.com/negproof/negproof/internal/negative"
)

// Retouch removes dust defects and applies painted local corrections.
// Manual spot and adjustment coordinates are given in the raw scan frame
// and re-mapped through the geometry transform recorded in the context.
type Retouch struct {
	Config negative.RetouchConfig
}

// NewRetouch returns the retouch stage for the given config.
func NewRetouch(cfg negative.RetouchConfig) *Retouch {
	return &Retouch{Config: cfg}
}

func (r *Retouch) Name() string { return "retouch" }

func (r *Retouch) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	cfg := r.Config
	out := img

	if cfg.DustRemove {
		out = RemoveDust(out, cfg.DustThreshold, cfg.DustSize, pc.ScaleFactor)
	}
	if len(cfg.ManualSpots) > 0 {
		out = HealSpots(out, cfg.ManualSpots, pc)
	}
	if len(cfg.LocalAdjustments) > 0 {
		out = ApplyLocalAdjustments(out, cfg.LocalAdjustments, pc)
	}
	return out, nil
}

func oddWindow(v float64) int {
	n := int(v)
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}

// RemoveDust detects small high-contrast defects against a median-filtered
// reference and blends the median over them. Sensitivity adapts to local
// texture: flat sky tolerates far less deviation than busy foliage.
func RemoveDust(img *imagemath.Buffer, threshold, size, scale float64) *imagemath.Buffer {
	w, h := img.W, img.H
	n := img.Pixels()

	win := oddWindow(size * 2 * scale)
	median := imagemath.MedianFilterRGB(img, win)

	gray := mempool.GetFloat32(n)
	graySq := mempool.GetFloat32(n)
	meanG := mempool.GetFloat32(n)
	meanSq := mempool.GetFloat32(n)
	defer mempool.PutFloat32(gray)
	defer mempool.PutFloat32(graySq)
	defer mempool.PutFloat32(meanG)
	defer mempool.PutFloat32(meanSq)

	img.LuminancePlane(gray)
	for i := 0; i < n; i++ {
		graySq[i] = gray[i] * gray[i]
	}
	stdWin := oddWindow(15 * scale)
	imagemath.BoxBlurPlane(meanG, gray, w, h, stdWin)
	imagemath.BoxBlurPlane(meanSq, graySq, w, h, stdWin)

	mask := mempool.GetZeroedFloat32(n)
	defer mempool.PutFloat32(mask)
	for i := 0; i < n; i++ {
		variance := float64(meanSq[i]) - float64(meanG[i])*float64(meanG[i])
		if variance < 0 {
			variance = 0
		}
		std := math.Sqrt(variance)
		if std > 0.2 {
			continue
		}
		flatness := imagemath.Clamp(1-std/0.08, 0, 1)
		flatWeight := math.Sqrt(flatness)
		highlightSens := imagemath.Clamp((float64(gray[i])-0.4)*1.5, 0, 1)
		detailBoost := (1 - flatness) * 0.05
		sensFactor := (1 - 0.98*flatWeight) * (1 - 0.5*highlightSens)

		j := i * 3
		var maxDev float64
		for ch := 0; ch < 3; ch++ {
			d := math.Abs(float64(img.Data[j+ch]) - float64(median.Data[j+ch]))
			if d > maxDev {
				maxDev = d
			}
		}
		if maxDev > threshold*sensFactor+detailBoost {
			mask[i] = 1
		}
	}

	kernel5 := imagemath.EllipseKernel(5)
	imagemath.ClosePlane(mask, w, h, kernel5, 5)
	kernel3 := imagemath.EllipseKernel(3)
	dilated := mempool.GetFloat32(n)
	defer mempool.PutFloat32(dilated)
	for i := 0; i < 2; i++ {
		imagemath.DilatePlane(dilated, mask, w, h, kernel3, 3)
		copy(mask, dilated)
	}
	feather := mempool.GetFloat32(n)
	defer mempool.PutFloat32(feather)
	imagemath.GaussianBlurPlane(feather, mask, w, h, win, 0)

	out := imagemath.NewBuffer(w, h)
	for i := 0; i < n; i++ {
		m := feather[i]
		j := i * 3
		for ch := 0; ch < 3; ch++ {
			out.Data[j+ch] = img.Data[j+ch]*(1-m) + median.Data[j+ch]*m
		}
	}
	return out
}

// grainNoiseSigma matches scanner grain in the 8-bit domain.
const grainNoiseSigma = 3.5

// HealSpots inpaints manually marked dust spots and re-grains the filled
// area so it doesn't read as a smooth patch.
func HealSpots(img *imagemath.Buffer, spots []negative.DustSpot, pc *negative.Context) *imagemath.Buffer {
	w, h := img.W, img.H
	n := img.Pixels()

	mask := mempool.GetZeroedFloat32(n)
	defer mempool.PutFloat32(mask)
	for _, s := range spots {
		nx, ny := s.X, s.Y
		if pc.Geometry != nil {
			nx, ny = MapPoint(s.X, s.Y, pc.Geometry, nil)
		}
		cx := nx * float64(w)
		cy := ny * float64(h)
		radius := int(s.Size * pc.ScaleFactor)
		if radius < 1 {
			radius = 1
		}
		stampCircle(mask, w, h, cx, cy, float64(radius))
	}

	inpainted := inpaintDiffuse(img, mask, oddWindow(3*pc.ScaleFactor))

	// feathered blend plus modulated grain; deterministic noise keeps
	// renders reproducible
	feather := mempool.GetFloat32(n)
	defer mempool.PutFloat32(feather)
	featherWin := oddWindow(3 * pc.ScaleFactor)
	imagemath.GaussianBlurPlane(feather, mask, w, h, featherWin, 0)

	rng := rand.New(rand.NewSource(int64(len(spots))*7919 + int64(n)))
	out := img.Clone()
	for i := 0; i < n; i++ {
		m := float64(feather[i])
		if m <= 0 {
			continue
		}
		j := i * 3
		lum := float64(imagemath.Luminance709(inpainted.Data[j], inpainted.Data[j+1], inpainted.Data[j+2]))
		grainMod := 5 * lum * (1 - lum)
		noise := rng.NormFloat64() * grainNoiseSigma / 255 * grainMod * m
		for ch := 0; ch < 3; ch++ {
			v := float64(img.Data[j+ch])*(1-m) + (float64(inpainted.Data[j+ch])+noise)*m
			out.Data[j+ch] = float32(imagemath.Clamp(v, 0, 1))
		}
	}
	return out
}

// stampCircle sets mask pixels inside the circle to 1.
func stampCircle(mask []float32, w, h int, cx, cy, radius float64) {
	x0 := clampInt(int(cx-radius)-1, 0, w-1)
	x1 := clampInt(int(cx+radius)+1, 0, w-1)
	y0 := clampInt(int(cy-radius)-1, 0, h-1)
	y1 := clampInt(int(cy+radius)+1, 0, h-1)
	r2 := radius * radius
	for y := y0; y <= y1; y++ {
		dy := float64(y) - cy
		for x := x0; x <= x1; x++ {
			dx := float64(x) - cx
			if dx*dx+dy*dy <= r2 {
				mask[y*w+x] = 1
			}
		}
	}
}

// inpaintDiffuse fills masked pixels from their surroundings: seed from a
// wide median, then smooth the filled region by iterated neighbor
// averaging while keeping unmasked pixels fixed.
func inpaintDiffuse(img *imagemath.Buffer, mask []float32, radius int) *imagemath.Buffer {
	w, h := img.W, img.H
	n := img.Pixels()
	out := imagemath.MedianFilterRGB(img, radius*2+1)
	for i := 0; i < n; i++ {
		if mask[i] == 0 {
			j := i * 3
			out.Data[j] = img.Data[j]
			out.Data[j+1] = img.Data[j+1]
			out.Data[j+2] = img.Data[j+2]
		}
	}
	const iters = 8
	cur := out
	for it := 0; it < iters; it++ {
		next := cur.Clone()
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				if mask[i] == 0 {
					continue
				}
				var acc [3]float64
				var cnt float64
				for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
					sx := clampInt(x+d[0], 0, w-1)
					sy := clampInt(y+d[1], 0, h-1)
					sj := (sy*w + sx) * 3
					acc[0] += float64(cur.Data[sj])
					acc[1] += float64(cur.Data[sj+1])
					acc[2] += float64(cur.Data[sj+2])
					cnt++
				}
				j := i * 3
				for ch := 0; ch < 3; ch++ {
					next.Data[j+ch] = float32(acc[ch] / cnt)
				}
			}
		}
		cur = next
	}
	return cur
}

// ApplyLocalAdjustments multiplies exposure by 2^(mask*strength) for each
// painted dodge/burn region.
func ApplyLocalAdjustments(img *imagemath.Buffer, adjustments []negative.LocalAdjustment, pc *negative.Context) *imagemath.Buffer {
	w, h := img.W, img.H
	n := img.Pixels()
	out := img.Clone()

	lum := mempool.GetFloat32(n)
	defer mempool.PutFloat32(lum)
	img.LuminancePlane(lum)

	for _, adj := range adjustments {
		if len(adj.Points) == 0 || adj.Strength == 0 {
			continue
		}
		mask := buildAdjustmentMask(adj, pc, w, h)
		if adj.LumaRange != nil {
			applyLumaMask(mask, lum, *adj.LumaRange, adj.LumaSoftness)
		}
		for i := 0; i < n; i++ {
			m := float64(mask[i])
			if m == 0 {
				continue
			}
			mult := math.Exp(m * adj.Strength * math.Ln2)
			j := i * 3
			for ch := 0; ch < 3; ch++ {
				out.Data[j+ch] = float32(imagemath.Clamp(float64(out.Data[j+ch])*mult, 0, 1))
			}
		}
		mempool.PutFloat32(mask)
	}
	return out
}

// AdjustmentStops accumulates all painted dodge/burn regions into one
// per-pixel exposure offset plane, in stops. Applying 2^stops is
// equivalent to running ApplyLocalAdjustments.
func AdjustmentStops(img *imagemath.Buffer, adjustments []negative.LocalAdjustment, pc *negative.Context) []float32 {
	w, h := img.W, img.H
	n := img.Pixels()
	stops := make([]float32, n)

	lum := mempool.GetFloat32(n)
	defer mempool.PutFloat32(lum)
	img.LuminancePlane(lum)

	for _, adj := range adjustments {
		if len(adj.Points) == 0 || adj.Strength == 0 {
			continue
		}
		mask := buildAdjustmentMask(adj, pc, w, h)
		if adj.LumaRange != nil {
			applyLumaMask(mask, lum, *adj.LumaRange, adj.LumaSoftness)
		}
		for i := 0; i < n; i++ {
			stops[i] += mask[i] * float32(adj.Strength)
		}
		mempool.PutFloat32(mask)
	}
	return stops
}

func buildAdjustmentMask(adj negative.LocalAdjustment, pc *negative.Context, w, h int) []float32 {
	mask := mempool.GetZeroedFloat32(w * h)
	radius := adj.Radius * pc.ScaleFactor
	if radius < 1 {
		radius = 1
	}

	var prev *[2]float64
	for _, p := range adj.Points {
		nx, ny := p[0], p[1]
		if pc.Geometry != nil {
			nx, ny = MapPoint(p[0], p[1], pc.Geometry, nil)
		}
		cx := nx * float64(w)
		cy := ny * float64(h)
		stampCircle(mask, w, h, cx, cy, radius)
		if prev != nil {
			stampSegment(mask, w, h, prev[0], prev[1], cx, cy, radius)
		}
		prev = &[2]float64{cx, cy}
	}

	if adj.Feather > 0 {
		blurred := mempool.GetFloat32(w * h)
		imagemath.GaussianBlurPlane(blurred, mask, w, h, oddWindow(adj.Feather*pc.ScaleFactor), 0)
		mempool.PutFloat32(mask)
		return blurred
	}
	return mask
}

// stampSegment stamps circles along the segment so strokes are continuous.
func stampSegment(mask []float32, w, h int, x0, y0, x1, y1, radius float64) {
	dist := math.Hypot(x1-x0, y1-y0)
	steps := int(dist/math.Max(radius/2, 1)) + 1
	for s := 1; s < steps; s++ {
		t := float64(s) / float64(steps)
		stampCircle(mask, w, h, x0+(x1-x0)*t, y0+(y1-y0)*t, radius)
	}
}

// applyLumaMask windows the painted mask by a soft luminance range, so an
// adjustment can target only shadows or only highlights.
func applyLumaMask(mask, lum []float32, rng [2]float64, softness float64) {
	lo, hi := rng[0], rng[1]
	if softness <= 0 {
		softness = 1e-3
	}
	for i := range mask {
		if mask[i] == 0 {
			continue
		}
		l := float64(lum[i])
		wLow := imagemath.Sigmoid((l - lo) / softness)
		wHigh := imagemath.Sigmoid((hi - l) / softness)
		mask[i] *= float32(wLow * wHigh)
	}
}
