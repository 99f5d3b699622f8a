package render

import (
	"runtime"
	"sync"

	"github.com/negproof/negproof/internal/imagemath"
)

// HistogramBins is the resolution of the per-channel output histogram.
const HistogramBins = 256

// Histogram holds per-channel bin counts of a rendered image.
type Histogram struct {
	R, G, B [HistogramBins]int
}

// ComputeHistogram bins every pixel of the rendered image, sliced across
// workers by row with per-worker partial counts merged at the end.
func ComputeHistogram(img *imagemath.Buffer) *Histogram {
	partials := make([]Histogram, 0, runtime.NumCPU())
	var mu sync.Mutex

	parallelRows(img.H, func(y0, y1 int) {
		var p Histogram
		for y := y0; y < y1; y++ {
			row := y * img.W * 3
			for x := 0; x < img.W; x++ {
				j := row + x*3
				p.R[histBin(img.Data[j])]++
				p.G[histBin(img.Data[j+1])]++
				p.B[histBin(img.Data[j+2])]++
			}
		}
		mu.Lock()
		partials = append(partials, p)
		mu.Unlock()
	})

	out := &Histogram{}
	for i := range partials {
		for b := 0; b < HistogramBins; b++ {
			out.R[b] += partials[i].R[b]
			out.G[b] += partials[i].G[b]
			out.B[b] += partials[i].B[b]
		}
	}
	return out
}

func histBin(v float32) int {
	b := int(v * (HistogramBins - 1))
	if b < 0 {
		return 0
	}
	if b >= HistogramBins {
		return HistogramBins - 1
	}
	return b
}

// parallelRows splits [0,h) into per-worker row bands and runs fn on each
// band concurrently.
func parallelRows(h int, fn func(y0, y1 int)) {
	workers := runtime.NumCPU()
	if workers > h {
		workers = h
	}
	if workers <= 1 {
		fn(0, h)
		return
	}
	var wg sync.WaitGroup
	band := (h + workers - 1) / workers
	for y0 := 0; y0 < h; y0 += band {
		y1 := min(y0+band, h)
		wg.Add(1)
		go func(a, b int) {
			defer wg.Done()
			fn(a, b)
		}(y0, y1)
	}
	wg.Wait()
}
