package imagemath

import (
	"math"
	"sort"
)

// Constants shared by the density math across CPU and GPU paths.
const (
	// LogFloor is the smallest value fed to log10; keeps densities finite.
	LogFloor = 1e-6

	// CMYMaxDensity scales unit CMY filtration sliders into density offsets.
	CMYMaxDensity = 0.2
)

// Luminance coefficients (Rec.709).
const (
	LumaR = 0.2126
	LumaG = 0.7152
	LumaB = 0.0722
)

// Sigmoid is the logistic function, evaluated without overflow for any x.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		z := math.Exp(-x)
		return 1 / (1 + z)
	}
	z := math.Exp(x)
	return z / (1 + z)
}

// Log10Clip returns log10 of x clamped to [LogFloor, 1].
func Log10Clip(x float64) float64 {
	if x < LogFloor {
		x = LogFloor
	} else if x > 1 {
		x = 1
	}
	return math.Log10(x)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp32 limits v to [lo, hi] in float32.
func Clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Luminance709 returns the Rec.709 luminance of an RGB triple.
func Luminance709(r, g, b float32) float32 {
	return LumaR*r + LumaG*g + LumaB*b
}

// Percentile returns the p-th percentile (0..100) of values using linear
// interpolation between ranks. The input is not modified.
func Percentile(values []float32, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float32, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentileSorted(sorted, p)
}

// PercentileSorted is Percentile over values already in ascending order.
func PercentileSorted(sorted []float32, p float64) float64 {
	return percentileSorted(sorted, p)
}

func percentileSorted(sorted []float32, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return float64(sorted[0])
	}
	idx := Clamp(p, 0, 100) / 100 * float64(n-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return float64(sorted[lo])
	}
	frac := idx - float64(lo)
	return float64(sorted[lo])*(1-frac) + float64(sorted[hi])*frac
}

// CMYToDensity converts a unit filtration value into a density offset.
func CMYToDensity(v float64) float64 {
	return v * CMYMaxDensity
}

// DensityToCMY converts a density offset back to a unit filtration value.
func DensityToCMY(d float64) float64 {
	return d / CMYMaxDensity
}

// WBShiftsFromGray derives magenta/yellow white-balance shifts from an RGB
// sample of a neutral patch, as log-density differences against red.
func WBShiftsFromGray(r, g, b float64) (mg, yl float64) {
	lr := Log10Clip(r)
	return Log10Clip(g) - lr, Log10Clip(b) - lr
}
