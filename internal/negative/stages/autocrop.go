package stages

import (
	"math"
	"strconv"
	"strings"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
	"github.com/negproof/negproof/internal/negative"
)

const (
	// autocropDetectRes caps the long edge of the detection image.
	autocropDetectRes = 1800

	// autocropLumaThreshold separates exposed frame content from the
	// clear film rebate, which scans close to white.
	autocropLumaThreshold = 0.96

	// autocropMinRun is the minimum number of content rows and columns
	// required before a detection is trusted.
	autocropMinRun = 10
)

// Autocrop finds the exposed frame inside the film rebate of an oriented
// scan. When detection fails the full frame (minus margin) is returned.
func Autocrop(img *imagemath.Buffer, cfg negative.GeometryConfig, scale float64) negative.ROI {
	w, h := img.W, img.H
	full := negative.ROI{Y1: 0, Y2: h, X1: 0, X2: w}
	if w < 4 || h < 4 {
		return full
	}

	long := w
	if h > long {
		long = h
	}
	detScale := 1.0
	dw, dh := w, h
	if long > autocropDetectRes {
		detScale = float64(autocropDetectRes) / float64(long)
		dw = int(float64(w) * detScale)
		dh = int(float64(h) * detScale)
	}

	luma := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(luma)
	img.LuminancePlane(luma)

	det := luma
	if detScale != 1 {
		det = mempool.GetFloat32(dw * dh)
		defer mempool.PutFloat32(det)
		imagemath.DownsamplePlaneMean(luma, w, h, dw, dh, det)
	}

	threshold := autocropLumaThreshold
	if cfg.AssistLuma != nil {
		threshold = imagemath.Clamp(*cfg.AssistLuma-0.02, 0.5, 0.98)
	}

	rowContent := contentRuns(det, dw, dh, threshold, true)
	colContent := contentRuns(det, dw, dh, threshold, false)
	y1, y2, okRows := firstLastTrue(rowContent)
	x1, x2, okCols := firstLastTrue(colContent)
	if !okRows || !okCols || y2-y1 < autocropMinRun || x2-x1 < autocropMinRun {
		margin := int(math.Round(float64(2+cfg.AutocropOffset) * scale))
		return applyMargin(full, margin, w, h)
	}

	inv := 1.0 / detScale
	roi := negative.ROI{
		Y1: int(float64(y1) * inv),
		Y2: int(float64(y2+1) * inv),
		X1: int(float64(x1) * inv),
		X2: int(float64(x2+1) * inv),
	}
	margin := int(math.Round(float64(2+cfg.AutocropOffset) * scale))
	roi = applyMargin(roi, margin, w, h)
	return EnforceAspect(roi, cfg.AutocropRatio, w, h)
}

// contentRuns marks rows (or columns) whose mean luminance falls below the
// threshold, i.e. rows that contain exposed content rather than rebate.
func contentRuns(plane []float32, w, h int, threshold float64, rows bool) []bool {
	n := h
	if !rows {
		n = w
	}
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		var sum float64
		if rows {
			row := plane[i*w : (i+1)*w]
			for _, v := range row {
				sum += float64(v)
			}
			sum /= float64(w)
		} else {
			for y := 0; y < h; y++ {
				sum += float64(plane[y*w+i])
			}
			sum /= float64(h)
		}
		out[i] = sum < threshold
	}
	return out
}

func firstLastTrue(marks []bool) (first, last int, ok bool) {
	first, last = -1, -1
	for i, m := range marks {
		if m {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last, first >= 0
}

// EnforceAspect symmetrically trims the longer axis of the ROI until it
// matches the named ratio. "Free" and "Original" leave the ROI untouched.
// The ratio is inverted automatically for vertical content.
func EnforceAspect(roi negative.ROI, ratio string, w, h int) negative.ROI {
	target, ok := ParseRatio(ratio)
	if !ok || roi.Empty() {
		return roi
	}
	cw := float64(roi.Width())
	ch := float64(roi.Height())
	if ch > cw && target > 1 {
		target = 1 / target
	} else if cw > ch && target < 1 {
		target = 1 / target
	}

	current := cw / ch
	out := roi
	if current > target {
		// too wide: trim columns
		newW := ch * target
		trim := (cw - newW) / 2
		out.X1 = roi.X1 + int(math.Round(trim))
		out.X2 = roi.X2 - int(math.Round(trim))
	} else if current < target {
		newH := cw / target
		trim := (ch - newH) / 2
		out.Y1 = roi.Y1 + int(math.Round(trim))
		out.Y2 = roi.Y2 - int(math.Round(trim))
	}
	out.Y1 = clampInt(out.Y1, 0, h)
	out.Y2 = clampInt(out.Y2, 0, h)
	out.X1 = clampInt(out.X1, 0, w)
	out.X2 = clampInt(out.X2, 0, w)
	if out.Empty() {
		return roi
	}
	return out
}

// ParseRatio parses "W:H" into a width/height quotient. Returns ok=false
// for the free-form names and malformed strings.
func ParseRatio(s string) (float64, bool) {
	if s == "" || s == negative.RatioFree || s == negative.RatioOriginal {
		return 0, false
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	a, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || a <= 0 || b <= 0 {
		return 0, false
	}
	return a / b, true
}
