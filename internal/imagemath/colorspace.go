package imagemath

import (
	"math"
)

// CIELAB conversion, D65 white, L in [0, 100]. Input RGB is treated as
// companded values in [0, 1]; the linear matrix is applied directly, which
// matches the float path of the reference pipeline.

const (
	labXn = 0.950456
	labZn = 1.088754
	labT0 = 0.008856
)

func labF(t float64) float64 {
	if t > labT0 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(t float64) float64 {
	t3 := t * t * t
	if t3 > labT0 {
		return t3
	}
	return (t - 16.0/116.0) / 7.787
}

// RGBToLab converts one RGB triple to L (0..100), a, b.
func RGBToLab(r, g, b float32) (l, a, bb float32) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	x := (0.412453*rf + 0.357580*gf + 0.180423*bf) / labXn
	y := 0.212671*rf + 0.715160*gf + 0.072169*bf
	z := (0.019334*rf + 0.119193*gf + 0.950227*bf) / labZn

	fy := labF(y)
	l = float32(116*fy - 16)
	a = float32(500 * (labF(x) - fy))
	bb = float32(200 * (fy - labF(z)))
	return l, a, bb
}

// LabToRGB converts L (0..100), a, b back to RGB. Output is clamped to
// [0, 1].
func LabToRGB(l, a, bb float32) (r, g, b float32) {
	fy := (float64(l) + 16) / 116
	fx := fy + float64(a)/500
	fz := fy - float64(bb)/200

	x := labFInv(fx) * labXn
	y := labFInv(fy)
	z := labFInv(fz) * labZn

	rf := 3.240479*x - 1.537150*y - 0.498535*z
	gf := -0.969256*x + 1.875992*y + 0.041556*z
	bf := 0.055648*x - 0.204043*y + 1.057311*z
	return float32(Clamp(rf, 0, 1)), float32(Clamp(gf, 0, 1)), float32(Clamp(bf, 0, 1))
}

// SplitLab converts the buffer into separate L, A, B planes.
func SplitLab(src *Buffer, lp, ap, bp []float32) {
	n := src.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		lp[i], ap[i], bp[i] = RGBToLab(src.Data[j], src.Data[j+1], src.Data[j+2])
	}
}

// MergeLab writes L, A, B planes back into dst as RGB.
func MergeLab(dst *Buffer, lp, ap, bp []float32) {
	n := dst.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		dst.Data[j], dst.Data[j+1], dst.Data[j+2] = LabToRGB(lp[i], ap[i], bp[i])
	}
}

// RGBToHSV converts RGB in [0,1] to hue (0..360), saturation and value.
func RGBToHSV(r, g, b float32) (h, s, v float32) {
	maxC := r
	if g > maxC {
		maxC = g
	}
	if b > maxC {
		maxC = b
	}
	minC := r
	if g < minC {
		minC = g
	}
	if b < minC {
		minC = b
	}
	v = maxC
	d := maxC - minC
	if maxC > 0 {
		s = d / maxC
	}
	if d == 0 {
		return 0, s, v
	}
	switch maxC {
	case r:
		h = 60 * (g - b) / d
	case g:
		h = 120 + 60*(b-r)/d
	default:
		h = 240 + 60*(r-g)/d
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

// HSVToRGB converts hue (0..360), saturation and value back to RGB.
func HSVToRGB(h, s, v float32) (r, g, b float32) {
	if s <= 0 {
		return v, v, v
	}
	h = float32(math.Mod(float64(h), 360))
	if h < 0 {
		h += 360
	}
	sector := h / 60
	i := int(sector)
	f := sector - float32(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	switch i {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}
