package stages

import (
	"math"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
)

// HistogramBins is the bin count shared by CLAHE and the metrics
// histogram, on the CPU and GPU paths alike.
const HistogramBins = 256

// ApplyCLAHE runs contrast-limited adaptive histogram equalization on the
// L channel and blends the result by strength.
func ApplyCLAHE(img *imagemath.Buffer, strength, scale float64) *imagemath.Buffer {
	if strength <= 0 {
		return img.Clone()
	}
	w, h := img.W, img.H
	n := img.Pixels()

	planes := mempool.GetPlanes(w, h, 3)
	defer mempool.PutPlanes(planes)
	lp, ap, bp := planes[0], planes[1], planes[2]
	imagemath.SplitLab(img, lp, ap, bp)

	grid := int(8 * scale)
	if grid < 2 {
		grid = 2
	}
	clipLimit := strength * 2.5

	enhanced := mempool.GetFloat32(n)
	defer mempool.PutFloat32(enhanced)
	claheL(enhanced, lp, w, h, grid, clipLimit)

	for i := 0; i < n; i++ {
		lp[i] = float32(float64(lp[i])*(1-strength) + float64(enhanced[i])*strength)
	}
	out := imagemath.NewBuffer(w, h)
	imagemath.MergeLab(out, lp, ap, bp)
	return out
}

// claheL equalizes an L plane (0..100) with a grid×grid tile layout and
// bilinear interpolation between tile CDFs.
func claheL(dst, src []float32, w, h, grid int, clipLimit float64) {
	cdfs := ComputeTileCDFs(src, w, h, grid, clipLimit)
	tileW := float64(w) / float64(grid)
	tileH := float64(h) / float64(grid)

	for y := 0; y < h; y++ {
		ty := (float64(y)+0.5)/tileH - 0.5
		ty0 := int(math.Floor(ty))
		fy := ty - float64(ty0)
		gy0 := clampInt(ty0, 0, grid-1)
		gy1 := clampInt(ty0+1, 0, grid-1)
		for x := 0; x < w; x++ {
			tx := (float64(x)+0.5)/tileW - 0.5
			tx0 := int(math.Floor(tx))
			fx := tx - float64(tx0)
			gx0 := clampInt(tx0, 0, grid-1)
			gx1 := clampInt(tx0+1, 0, grid-1)

			bin := lBin(src[y*w+x])
			v00 := cdfs[gy0*grid+gx0][bin]
			v10 := cdfs[gy0*grid+gx1][bin]
			v01 := cdfs[gy1*grid+gx0][bin]
			v11 := cdfs[gy1*grid+gx1][bin]
			top := v00*(1-fx) + v10*fx
			bot := v01*(1-fx) + v11*fx
			dst[y*w+x] = float32((top*(1-fy) + bot*fy) * 100)
		}
	}
}

func lBin(l float32) int {
	b := int(float64(l) / 100 * float64(HistogramBins-1))
	return clampInt(b, 0, HistogramBins-1)
}

// ComputeTileCDFs builds the clipped, renormalized cumulative histograms
// for every tile. The GPU tiled path reuses these CDFs computed on a
// downsampled frame, which keeps local contrast globally consistent
// across tiles.
func ComputeTileCDFs(src []float32, w, h, grid int, clipLimit float64) [][]float64 {
	cdfs := make([][]float64, grid*grid)
	hist := make([]float64, HistogramBins)

	for gy := 0; gy < grid; gy++ {
		y0 := gy * h / grid
		y1 := (gy + 1) * h / grid
		for gx := 0; gx < grid; gx++ {
			x0 := gx * w / grid
			x1 := (gx + 1) * w / grid
			for i := range hist {
				hist[i] = 0
			}
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[lBin(src[y*w+x])]++
				}
			}
			area := float64((y1 - y0) * (x1 - x0))
			if area == 0 {
				area = 1
			}

			// clip and redistribute the excess uniformly
			limit := math.Max(1, clipLimit*area/float64(HistogramBins))
			var excess float64
			for i := range hist {
				if hist[i] > limit {
					excess += hist[i] - limit
					hist[i] = limit
				}
			}
			incr := excess / float64(HistogramBins)
			for i := range hist {
				hist[i] += incr
			}

			cdf := make([]float64, HistogramBins)
			var run float64
			for i := range hist {
				run += hist[i]
				cdf[i] = run / area
			}
			cdfs[gy*grid+gx] = cdf
		}
	}
	return cdfs
}
