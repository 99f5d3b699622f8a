package imagemath

import (
	"math"
	"sort"

	"github.com/negproof/negproof/internal/mempool"
)

// Plane filters operate on single-channel w*h float32 slices. Borders are
// replicated.

// BoxBlurPlane overwrites dst with the normalized box mean of src using an
// odd window size win. dst and src must not alias.
func BoxBlurPlane(dst, src []float32, w, h, win int) {
	if win < 1 {
		win = 1
	}
	if win%2 == 0 {
		win++
	}
	r := win / 2
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	// horizontal pass with running sum
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		var sum float64
		for k := -r; k <= r; k++ {
			sum += float64(row[clampInt(k, 0, w-1)])
		}
		out := tmp[y*w : (y+1)*w]
		inv := 1.0 / float64(win)
		for x := 0; x < w; x++ {
			out[x] = float32(sum * inv)
			sum += float64(row[clampInt(x+r+1, 0, w-1)])
			sum -= float64(row[clampInt(x-r, 0, w-1)])
		}
	}
	// vertical pass
	inv := 1.0 / float64(win)
	for x := 0; x < w; x++ {
		var sum float64
		for k := -r; k <= r; k++ {
			sum += float64(tmp[clampInt(k, 0, h-1)*w+x])
		}
		for y := 0; y < h; y++ {
			dst[y*w+x] = float32(sum * inv)
			sum += float64(tmp[clampInt(y+r+1, 0, h-1)*w+x])
			sum -= float64(tmp[clampInt(y-r, 0, h-1)*w+x])
		}
	}
}

// GaussianKernel returns a normalized 1-D Gaussian of odd size ksize. If
// ksize <= 0 the size is derived from sigma.
func GaussianKernel(ksize int, sigma float64) []float32 {
	if sigma <= 0 {
		sigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}
	if ksize <= 0 {
		ksize = 2*int(math.Ceil(3*sigma)) + 1
	}
	if ksize%2 == 0 {
		ksize++
	}
	k := make([]float32, ksize)
	r := ksize / 2
	var sum float64
	for i := 0; i < ksize; i++ {
		d := float64(i - r)
		v := math.Exp(-d * d / (2 * sigma * sigma))
		k[i] = float32(v)
		sum += v
	}
	for i := range k {
		k[i] = float32(float64(k[i]) / sum)
	}
	return k
}

// GaussianBlurPlane overwrites dst with a separable Gaussian blur of src.
func GaussianBlurPlane(dst, src []float32, w, h, ksize int, sigma float64) {
	kernel := GaussianKernel(ksize, sigma)
	r := len(kernel) / 2
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float64
			for k := -r; k <= r; k++ {
				acc += float64(kernel[k+r]) * float64(row[clampInt(x+k, 0, w-1)])
			}
			out[x] = float32(acc)
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var acc float64
			for k := -r; k <= r; k++ {
				acc += float64(kernel[k+r]) * float64(tmp[clampInt(y+k, 0, h-1)*w+x])
			}
			dst[y*w+x] = float32(acc)
		}
	}
}

// MedianFilterPlane overwrites dst with the window median of src. win is
// forced odd. Intended for modest windows; cost grows with win².
func MedianFilterPlane(dst, src []float32, w, h, win int) {
	if win < 3 {
		copy(dst, src)
		return
	}
	if win%2 == 0 {
		win++
	}
	r := win / 2
	window := make([]float32, 0, win*win)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			window = window[:0]
			for dy := -r; dy <= r; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -r; dx <= r; dx++ {
					window = append(window, src[sy*w+clampInt(x+dx, 0, w-1)])
				}
			}
			sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })
			dst[y*w+x] = window[len(window)/2]
		}
	}
}

// MedianFilterRGB applies MedianFilterPlane per channel.
func MedianFilterRGB(src *Buffer, win int) *Buffer {
	out := NewBuffer(src.W, src.H)
	plane := mempool.GetFloat32(src.Pixels())
	med := mempool.GetFloat32(src.Pixels())
	defer mempool.PutFloat32(plane)
	defer mempool.PutFloat32(med)
	for ch := 0; ch < 3; ch++ {
		src.Plane(ch, plane)
		MedianFilterPlane(med, plane, src.W, src.H, win)
		out.SetPlane(ch, med)
	}
	return out
}

// EllipseKernel builds an elliptical structuring element of odd size n×n.
func EllipseKernel(n int) []bool {
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	k := make([]bool, n*n)
	r := float64(n) / 2
	c := float64(n-1) / 2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dx := (float64(x) - c) / r
			dy := (float64(y) - c) / r
			if dx*dx+dy*dy <= 1 {
				k[y*n+x] = true
			}
		}
	}
	return k
}

// DilatePlane overwrites dst with the morphological dilation of src by the
// n×n structuring element kernel.
func DilatePlane(dst, src []float32, w, h int, kernel []bool, n int) {
	r := n / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var m float32
			for dy := -r; dy <= r; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -r; dx <= r; dx++ {
					if !kernel[(dy+r)*n+(dx+r)] {
						continue
					}
					v := src[sy*w+clampInt(x+dx, 0, w-1)]
					if v > m {
						m = v
					}
				}
			}
			dst[y*w+x] = m
		}
	}
}

// ErodePlane overwrites dst with the morphological erosion of src.
func ErodePlane(dst, src []float32, w, h int, kernel []bool, n int) {
	r := n / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := float32(math.MaxFloat32)
			for dy := -r; dy <= r; dy++ {
				sy := clampInt(y+dy, 0, h-1)
				for dx := -r; dx <= r; dx++ {
					if !kernel[(dy+r)*n+(dx+r)] {
						continue
					}
					v := src[sy*w+clampInt(x+dx, 0, w-1)]
					if v < m {
						m = v
					}
				}
			}
			dst[y*w+x] = m
		}
	}
}

// ClosePlane performs dilation followed by erosion in place on mask.
func ClosePlane(mask []float32, w, h int, kernel []bool, n int) {
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)
	DilatePlane(tmp, mask, w, h, kernel, n)
	ErodePlane(mask, tmp, w, h, kernel, n)
}
