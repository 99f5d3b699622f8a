package imagemath

import (
	"math"
)

// RotateQuarter rotates the buffer clockwise by k quarter turns (k in 0..3).
// A point (x, y) in the source lands at (y, W-1-x) after one turn.
func RotateQuarter(src *Buffer, k int) *Buffer {
	k = ((k % 4) + 4) % 4
	if k == 0 {
		return src.Clone()
	}
	var out *Buffer
	switch k {
	case 1:
		out = NewBuffer(src.H, src.W)
		for y := 0; y < src.H; y++ {
			for x := 0; x < src.W; x++ {
				r, g, b := src.At(x, y)
				out.Set(y, src.W-1-x, r, g, b)
			}
		}
	case 2:
		out = NewBuffer(src.W, src.H)
		for y := 0; y < src.H; y++ {
			for x := 0; x < src.W; x++ {
				r, g, b := src.At(x, y)
				out.Set(src.W-1-x, src.H-1-y, r, g, b)
			}
		}
	case 3:
		out = NewBuffer(src.H, src.W)
		for y := 0; y < src.H; y++ {
			for x := 0; x < src.W; x++ {
				r, g, b := src.At(x, y)
				out.Set(src.H-1-y, x, r, g, b)
			}
		}
	}
	return out
}

// FlipH mirrors the buffer horizontally.
func FlipH(src *Buffer) *Buffer {
	out := NewBuffer(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			r, g, b := src.At(x, y)
			out.Set(src.W-1-x, y, r, g, b)
		}
	}
	return out
}

// FlipV mirrors the buffer vertically.
func FlipV(src *Buffer) *Buffer {
	out := NewBuffer(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			r, g, b := src.At(x, y)
			out.Set(x, src.H-1-y, r, g, b)
		}
	}
	return out
}

// BilinearSample samples the buffer at fractional coordinates. Samples
// outside the frame return the constant border (black).
func BilinearSample(b *Buffer, fx, fy float64) (r, g, bl float32) {
	if fx < -0.5 || fy < -0.5 || fx > float64(b.W)-0.5 || fy > float64(b.H)-0.5 {
		return 0, 0, 0
	}
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := float32(fx - float64(x0))
	ty := float32(fy - float64(y0))

	x0c := clampInt(x0, 0, b.W-1)
	x1c := clampInt(x0+1, 0, b.W-1)
	y0c := clampInt(y0, 0, b.H-1)
	y1c := clampInt(y0+1, 0, b.H-1)

	r00, g00, b00 := b.At(x0c, y0c)
	r10, g10, b10 := b.At(x1c, y0c)
	r01, g01, b01 := b.At(x0c, y1c)
	r11, g11, b11 := b.At(x1c, y1c)

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	r = lerp(lerp(r00, r10, tx), lerp(r01, r11, tx), ty)
	g = lerp(lerp(g00, g10, tx), lerp(g01, g11, tx), ty)
	bl = lerp(lerp(b00, b10, tx), lerp(b01, b11, tx), ty)
	return r, g, bl
}

// FineRotate rotates the buffer by angle degrees about its center with
// bilinear interpolation and a constant black border. Output keeps the
// source dimensions.
func FineRotate(src *Buffer, angleDeg float64) *Buffer {
	if angleDeg == 0 {
		return src.Clone()
	}
	out := NewBuffer(src.W, src.H)
	theta := angleDeg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	cx := float64(src.W-1) / 2
	cy := float64(src.H-1) / 2
	for y := 0; y < src.H; y++ {
		dy := float64(y) - cy
		for x := 0; x < src.W; x++ {
			dx := float64(x) - cx
			// inverse map: rotate destination by -angle
			sx := cx + dx*cos - dy*sin
			sy := cy + dx*sin + dy*cos
			r, g, b := BilinearSample(src, sx, sy)
			out.Set(x, y, r, g, b)
		}
	}
	return out
}

// RotatePointForward maps a pixel coordinate through a forward rotation of
// angle degrees about the given center.
func RotatePointForward(px, py, cx, cy, angleDeg float64) (float64, float64) {
	theta := angleDeg * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	dx, dy := px-cx, py-cy
	return cx + dx*cos + dy*sin, cy - dx*sin + dy*cos
}
