package gpu

import (
	"encoding/binary"
	"math"
)

// Stage parameters live in one uniform buffer, one 256-byte region per
// pass so bind group offsets satisfy the minimum uniform alignment.
const uniformStride = 256

// Uniform region indices, in pass order.
const (
	regionGeometry = iota
	regionNormalize
	regionExposure
	regionCLAHE
	regionRetouch
	regionLab
	regionToning
	regionLayout
	regionHistogram
	numRegions
)

// regionSizes holds the packed byte size of each region, 16-byte aligned.
var regionSizes = [numRegions]uint64{
	regionGeometry:  32,
	regionNormalize: 64,
	regionExposure:  96,
	regionCLAHE:     48,
	regionRetouch:   16,
	regionLab:       96,
	regionToning:    48,
	regionLayout:    64,
	regionHistogram: 16,
}

type packer struct {
	buf []byte
}

func (p *packer) u32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *packer) i32(v int) {
	p.u32(uint32(int32(v)))
}

func (p *packer) f32(v float64) {
	p.u32(math.Float32bits(float32(v)))
}

func (p *packer) padTo(size int) []byte {
	for len(p.buf) < size {
		p.buf = append(p.buf, 0)
	}
	return p.buf
}

func packGeometry(srcW, srcH, dstW, dstH int, angleRad float64, rotation, flips uint32) []byte {
	var p packer
	p.i32(srcW)
	p.i32(srcH)
	p.i32(dstW)
	p.i32(dstH)
	p.f32(math.Cos(angleRad))
	p.f32(math.Sin(angleRad))
	p.u32(rotation)
	p.u32(flips)
	return p.padTo(int(regionSizes[regionGeometry]))
}

func packNormalize(w, h int, reversal bool, floors, ceils, cast [3]float64, castStrength float64) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.u32(boolU32(reversal))
	p.u32(0)
	for _, v := range floors {
		p.f32(v)
	}
	for _, v := range ceils {
		p.f32(v)
	}
	for _, v := range cast {
		p.f32(v)
	}
	p.f32(castStrength)
	return p.padTo(int(regionSizes[regionNormalize]))
}

// exposureUniforms mirrors the tone-curve inputs of the exposure pass.
type exposureUniforms struct {
	Slope, Pivot                 float64
	CMY, ShadowCMY, HighlightCMY [3]float64
	Toe, Shoulder                float64
	ToeWidth, ShoulderWidth      float64
	ToeHardness, ShoulderHard    float64
	Shadows, Highlights          float64
}

func packExposure(w, h int, collapseBW bool, u exposureUniforms) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.u32(boolU32(collapseBW))
	p.u32(0)
	p.f32(u.Slope)
	p.f32(u.Pivot)
	for _, v := range u.CMY {
		p.f32(v)
	}
	for _, v := range u.ShadowCMY {
		p.f32(v)
	}
	for _, v := range u.HighlightCMY {
		p.f32(v)
	}
	p.f32(u.Toe)
	p.f32(u.Shoulder)
	p.f32(u.ToeWidth)
	p.f32(u.ShoulderWidth)
	p.f32(u.ToeHardness)
	p.f32(u.ShoulderHard)
	p.f32(u.Shadows)
	p.f32(u.Highlights)
	return p.padTo(int(regionSizes[regionExposure]))
}

// packCLAHE carries both the bound buffer dims and the frame the tile
// grid spans; the tiled path sets an origin, the untiled path passes the
// frame itself with origin (0, 0).
func packCLAHE(w, h, grid, bins int, strength, clipLimit float64, fullW, fullH, originX, originY int) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.i32(grid)
	p.i32(bins)
	p.f32(strength)
	p.f32(clipLimit)
	p.i32(fullW)
	p.i32(fullH)
	p.i32(originX)
	p.i32(originY)
	return p.padTo(int(regionSizes[regionCLAHE]))
}

func packRetouch(w, h int) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	return p.padTo(int(regionSizes[regionRetouch]))
}

// Lab pass flag bits, matching the shader.
const (
	labFlagCrosstalk = 1 << iota
	labFlagSaturation
	labFlagSharpen
	labFlagDenoise
	labFlagVibrance
)

// labUniforms carries both entry points of the color grade pass. The
// crosstalk matrix is pre-blended and row-normalized; radii and sigmas
// are already scaled to the working resolution.
type labUniforms struct {
	Flags         uint32
	Matrix        [9]float64
	Saturation    float64
	SharpenRadius int
	SharpenAmount float64
	SharpenSigma  float64
	DenoiseRadius int
	DenoiseSigma  float64
	VibranceBoost float64
}

func packLab(w, h int, u labUniforms) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.u32(u.Flags)
	p.i32(u.SharpenRadius)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			p.f32(u.Matrix[row*3+col])
		}
		p.f32(0) // vec4 row padding
	}
	p.f32(u.Saturation)
	p.f32(u.SharpenAmount)
	p.f32(u.SharpenSigma)
	p.f32(u.DenoiseSigma)
	p.i32(u.DenoiseRadius)
	p.f32(u.VibranceBoost)
	return p.padTo(int(regionSizes[regionLab]))
}

func packToning(w, h int, bw bool, selenium, sepia, dmaxBoost float64, tint [3]float64) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.u32(boolU32(bw))
	p.u32(0)
	p.f32(selenium)
	p.f32(sepia)
	p.f32(dmaxBoost)
	p.f32(0)
	for _, v := range tint {
		p.f32(v)
	}
	p.f32(1)
	return p.padTo(int(regionSizes[regionToning]))
}

// layoutUniforms positions the crop region of the source on the paper.
type layoutUniforms struct {
	SrcW, SrcH                int
	CropX, CropY              int
	CropW, CropH              int
	PaperW, PaperH            int
	ContentW, ContentH        int
	OffsetX, OffsetY          int
	BorderR, BorderG, BorderB float64
}

func packLayout(u layoutUniforms) []byte {
	var p packer
	p.i32(u.SrcW)
	p.i32(u.SrcH)
	p.i32(u.CropX)
	p.i32(u.CropY)
	p.i32(u.CropW)
	p.i32(u.CropH)
	p.i32(u.PaperW)
	p.i32(u.PaperH)
	p.i32(u.ContentW)
	p.i32(u.ContentH)
	p.i32(u.OffsetX)
	p.i32(u.OffsetY)
	p.f32(u.BorderR)
	p.f32(u.BorderG)
	p.f32(u.BorderB)
	p.f32(1)
	return p.padTo(int(regionSizes[regionLayout]))
}

func packHistogram(w, h, bins int) []byte {
	var p packer
	p.i32(w)
	p.i32(h)
	p.i32(bins)
	p.u32(0)
	return p.padTo(int(regionSizes[regionHistogram]))
}

func boolU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
