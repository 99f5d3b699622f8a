package stages

import (
	"math"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// AnalyzeShadowCast measures the color cast of the densest regions of a
// normalized scan. Pixels whose mean density exceeds the threshold form
// the sample; the correction vector pulls their average back to neutral.
func AnalyzeShadowCast(normalized *imagemath.Buffer, threshold float64) negative.ShadowCastCorrection {
	if threshold <= 0 {
		threshold = 0.75
	}
	var sum [3]float64
	var count int
	n := normalized.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		r := float64(normalized.Data[j])
		g := float64(normalized.Data[j+1])
		b := float64(normalized.Data[j+2])
		density := (r + g + b) / 3
		if density > threshold {
			sum[0] += r
			sum[1] += g
			sum[2] += b
			count++
		}
	}
	if count == 0 {
		return negative.ShadowCastCorrection{}
	}
	var avg [3]float64
	var mean float64
	for ch := 0; ch < 3; ch++ {
		avg[ch] = sum[ch] / float64(count)
		mean += avg[ch]
	}
	mean /= 3
	var c negative.ShadowCastCorrection
	for ch := 0; ch < 3; ch++ {
		c.Vector[ch] = mean - avg[ch]
	}
	return c
}

// ApplyShadowCast adds the correction vector weighted by density^1.5, so
// the correction fades out of the midtones and highlights.
func ApplyShadowCast(img *imagemath.Buffer, cast negative.ShadowCastCorrection, strength float64) *imagemath.Buffer {
	out := imagemath.NewBuffer(img.W, img.H)
	n := img.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		density := float64(img.Data[j]+img.Data[j+1]+img.Data[j+2]) / 3
		weight := math.Pow(density, 1.5) * strength
		for ch := 0; ch < 3; ch++ {
			v := float64(img.Data[j+ch]) + cast.Vector[ch]*weight
			out.Data[j+ch] = float32(imagemath.Clamp(v, 0, 1))
		}
	}
	return out
}
