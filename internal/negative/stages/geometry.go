package stages

import (
	"math"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Geometry orients the scan (quarter turns, flips, fine rotation) and
// selects the active crop. The crop is only recorded in the context; the
// Crop stage applies it after toning so every stage sees full-frame
// context.
type Geometry struct {
	Config negative.GeometryConfig
}

// NewGeometry returns the orientation stage for the given config.
func NewGeometry(cfg negative.GeometryConfig) *Geometry {
	return &Geometry{Config: cfg}
}

func (g *Geometry) Name() string { return "geometry" }

func (g *Geometry) Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	cfg := g.Config

	out := imagemath.RotateQuarter(img, cfg.Rotation)
	if cfg.FlipH {
		out = imagemath.FlipH(out)
	}
	if cfg.FlipV {
		out = imagemath.FlipV(out)
	}
	if cfg.FineRotation != 0 {
		out = imagemath.FineRotate(out, cfg.FineRotation)
	}

	gp := &negative.GeometryParams{
		Rotation:     cfg.Rotation,
		FineRotation: cfg.FineRotation,
		FlipH:        cfg.FlipH,
		FlipV:        cfg.FlipV,
		SrcW:         img.W,
		SrcH:         img.H,
		OutW:         out.W,
		OutH:         out.H,
	}
	pc.Geometry = gp

	var roi negative.ROI
	switch {
	case cfg.ManualCrop && len(cfg.ManualCropRect) == 4:
		roi = manualRectROI(cfg, gp, pc.ScaleFactor)
	case cfg.Autocrop:
		roi = Autocrop(out, cfg, pc.ScaleFactor)
	default:
		margin := int(math.Round(float64(2+cfg.AutocropOffset) * pc.ScaleFactor))
		roi = applyMargin(negative.ROI{Y1: 0, Y2: out.H, X1: 0, X2: out.W}, margin, out.W, out.H)
	}
	if roi.Empty() {
		roi = negative.ROI{Y1: 0, Y2: out.H, X1: 0, X2: out.W}
	}
	pc.ActiveROI = &roi
	return out, nil
}

// MapPoint maps a normalized coordinate of the raw scan into the oriented
// frame. With a non-nil roi the result is renormalized to the crop. The
// result is clamped to [0, 1].
func MapPoint(nx, ny float64, gp *negative.GeometryParams, roi *negative.ROI) (float64, float64) {
	px := nx * float64(gp.SrcW)
	py := ny * float64(gp.SrcH)
	w := float64(gp.SrcW)
	h := float64(gp.SrcH)

	switch ((gp.Rotation % 4) + 4) % 4 {
	case 1:
		px, py = py, w-px
		w, h = h, w
	case 2:
		px, py = w-px, h-py
	case 3:
		px, py = h-py, px
		w, h = h, w
	}
	if gp.FlipH {
		px = w - px
	}
	if gp.FlipV {
		py = h - py
	}
	if gp.FineRotation != 0 {
		px, py = imagemath.RotatePointForward(px, py, w/2, h/2, gp.FineRotation)
	}

	if roi != nil && !roi.Empty() {
		nx = (px - float64(roi.X1)) / float64(roi.Width())
		ny = (py - float64(roi.Y1)) / float64(roi.Height())
	} else {
		nx = px / w
		ny = py / h
	}
	return imagemath.Clamp(nx, 0, 1), imagemath.Clamp(ny, 0, 1)
}

// UnmapPoint is the inverse of MapPoint: it maps a normalized coordinate
// of the oriented (optionally cropped) frame back to the raw scan.
func UnmapPoint(nx, ny float64, gp *negative.GeometryParams, roi *negative.ROI) (float64, float64) {
	w := float64(gp.OutW)
	h := float64(gp.OutH)

	var px, py float64
	if roi != nil && !roi.Empty() {
		px = float64(roi.X1) + nx*float64(roi.Width())
		py = float64(roi.Y1) + ny*float64(roi.Height())
	} else {
		px = nx * w
		py = ny * h
	}

	if gp.FineRotation != 0 {
		px, py = imagemath.RotatePointForward(px, py, w/2, h/2, -gp.FineRotation)
	}
	if gp.FlipH {
		px = w - px
	}
	if gp.FlipV {
		py = h - py
	}

	// invert the quarter turns; w/h here are the oriented dims
	switch ((gp.Rotation % 4) + 4) % 4 {
	case 1:
		// forward was (px, py) -> (py, srcW - px)
		px, py = float64(gp.SrcW)-py, px
	case 2:
		px, py = float64(gp.SrcW)-px, float64(gp.SrcH)-py
	case 3:
		// forward was (px, py) -> (srcH - py, px)
		px, py = py, float64(gp.SrcH)-px
	}

	return imagemath.Clamp(px/float64(gp.SrcW), 0, 1), imagemath.Clamp(py/float64(gp.SrcH), 0, 1)
}

func manualRectROI(cfg negative.GeometryConfig, gp *negative.GeometryParams, scale float64) negative.ROI {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range cfg.ManualCropRect {
		nx, ny := MapPoint(c[0], c[1], gp, nil)
		px := nx * float64(gp.OutW)
		py := ny * float64(gp.OutH)
		minX = math.Min(minX, px)
		minY = math.Min(minY, py)
		maxX = math.Max(maxX, px)
		maxY = math.Max(maxY, py)
	}
	roi := negative.ROI{
		Y1: int(math.Round(minY)),
		Y2: int(math.Round(maxY)),
		X1: int(math.Round(minX)),
		X2: int(math.Round(maxX)),
	}
	margin := int(math.Round(float64(cfg.AutocropOffset) * scale))
	return applyMargin(roi, margin, gp.OutW, gp.OutH)
}

// applyMargin shrinks the ROI by margin pixels on every side, clamped to
// the frame.
func applyMargin(roi negative.ROI, margin, w, h int) negative.ROI {
	out := negative.ROI{
		Y1: clampInt(roi.Y1+margin, 0, h),
		Y2: clampInt(roi.Y2-margin, 0, h),
		X1: clampInt(roi.X1+margin, 0, w),
		X2: clampInt(roi.X2-margin, 0, w),
	}
	if out.Empty() {
		return roi
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
