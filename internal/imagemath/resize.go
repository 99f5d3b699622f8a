package imagemath

// ResizeBilinear scales the buffer to w×h with bilinear sampling. Stage
// code uses this for float planes where a round trip through 8-bit would
// cost precision; preview and thumbnail paths resize decoded images with
// the image libraries instead.
func ResizeBilinear(src *Buffer, w, h int) *Buffer {
	if w <= 0 || h <= 0 {
		return NewBuffer(0, 0)
	}
	if w == src.W && h == src.H {
		return src.Clone()
	}
	out := NewBuffer(w, h)
	sx := float64(src.W) / float64(w)
	sy := float64(src.H) / float64(h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			r, g, b := BilinearSample(src, fx, fy)
			out.Set(x, y, r, g, b)
		}
	}
	return out
}

// DownsamplePlaneMean reduces a single-channel plane by integer-free box
// sampling to the target dimensions, averaging the covered source region.
// Used by content detection, where each output cell should reflect every
// source pixel it covers.
func DownsamplePlaneMean(src []float32, w, h, outW, outH int, dst []float32) {
	for oy := 0; oy < outH; oy++ {
		y0 := oy * h / outH
		y1 := (oy + 1) * h / outH
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for ox := 0; ox < outW; ox++ {
			x0 := ox * w / outW
			x1 := (ox + 1) * w / outW
			if x1 <= x0 {
				x1 = x0 + 1
			}
			var sum float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += float64(src[y*w+x])
				}
			}
			dst[oy*outW+ox] = float32(sum / float64((y1-y0)*(x1-x0)))
		}
	}
}
