package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/negproof/negproof/internal/imagemath"
)

func TestComputeHistogramCountsEveryPixel(t *testing.T) {
	img := imagemath.NewBuffer(64, 48)
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			img.Set(x, y, float32(x)/64, 0.5, 1.0)
		}
	}
	hist := ComputeHistogram(img)

	var rTotal, gTotal, bTotal int
	for b := 0; b < HistogramBins; b++ {
		rTotal += hist.R[b]
		gTotal += hist.G[b]
		bTotal += hist.B[b]
	}
	n := img.Pixels()
	assert.Equal(t, n, rTotal)
	assert.Equal(t, n, gTotal)
	assert.Equal(t, n, bTotal)

	// constant channels land in a single bin
	assert.Equal(t, n, hist.G[histBin(0.5)])
	assert.Equal(t, n, hist.B[HistogramBins-1])
}

func TestHistBinClamps(t *testing.T) {
	assert.Equal(t, 0, histBin(-0.1))
	assert.Equal(t, 0, histBin(0))
	assert.Equal(t, HistogramBins-1, histBin(1))
	assert.Equal(t, HistogramBins-1, histBin(1.5))
	assert.Equal(t, 127, histBin(0.5))
}
