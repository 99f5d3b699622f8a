package imagemath

import (
	"fmt"
	"image"
	"math"
)

// Buffer is an interleaved RGB float32 image with components in [0, 1].
// It is the working currency of every render stage.
type Buffer struct {
	Data []float32 // len == W*H*3, RGB interleaved
	W    int
	H    int
}

// OpError wraps a pixel-operation failure with the operation name.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("imagemath %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewBuffer allocates a zeroed RGB buffer.
func NewBuffer(w, h int) *Buffer {
	return &Buffer{Data: make([]float32, w*h*3), W: w, H: h}
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Data: make([]float32, len(b.Data)), W: b.W, H: b.H}
	copy(out.Data, b.Data)
	return out
}

// Pixels returns the pixel count W*H.
func (b *Buffer) Pixels() int {
	return b.W * b.H
}

// At returns the RGB triple at (x, y). No bounds check; hot path.
func (b *Buffer) At(x, y int) (r, g, bl float32) {
	i := (y*b.W + x) * 3
	return b.Data[i], b.Data[i+1], b.Data[i+2]
}

// Set writes the RGB triple at (x, y).
func (b *Buffer) Set(x, y int, r, g, bl float32) {
	i := (y*b.W + x) * 3
	b.Data[i], b.Data[i+1], b.Data[i+2] = r, g, bl
}

// Crop returns a copy of the rectangle rows [y1,y2) and cols [x1,x2),
// clamped to the buffer bounds.
func (b *Buffer) Crop(y1, y2, x1, x2 int) *Buffer {
	y1 = clampInt(y1, 0, b.H)
	y2 = clampInt(y2, 0, b.H)
	x1 = clampInt(x1, 0, b.W)
	x2 = clampInt(x2, 0, b.W)
	if y2 <= y1 || x2 <= x1 {
		return NewBuffer(0, 0)
	}
	out := NewBuffer(x2-x1, y2-y1)
	for y := y1; y < y2; y++ {
		src := (y*b.W + x1) * 3
		dst := (y - y1) * out.W * 3
		copy(out.Data[dst:dst+out.W*3], b.Data[src:src+out.W*3])
	}
	return out
}

// Plane extracts channel ch (0..2) into dst, which must hold W*H values.
func (b *Buffer) Plane(ch int, dst []float32) {
	n := b.Pixels()
	for i := 0; i < n; i++ {
		dst[i] = b.Data[i*3+ch]
	}
}

// SetPlane writes channel ch from src.
func (b *Buffer) SetPlane(ch int, src []float32) {
	n := b.Pixels()
	for i := 0; i < n; i++ {
		b.Data[i*3+ch] = src[i]
	}
}

// LuminancePlane writes the Rec.709 luminance of every pixel into dst.
func (b *Buffer) LuminancePlane(dst []float32) {
	n := b.Pixels()
	for i := 0; i < n; i++ {
		j := i * 3
		dst[i] = Luminance709(b.Data[j], b.Data[j+1], b.Data[j+2])
	}
}

// FromImage converts any image.Image into an RGB float buffer, flattening
// alpha against black. NaNs cannot occur here; integer sources only.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := NewBuffer(w, h)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				out.Data[i] = float32(row[x*4]) / 255
				out.Data[i+1] = float32(row[x*4+1]) / 255
				out.Data[i+2] = float32(row[x*4+2]) / 255
			}
		}
	case *image.RGBA64:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := src.RGBA64At(bounds.Min.X+x, bounds.Min.Y+y)
				i := (y*w + x) * 3
				out.Data[i] = float32(c.R) / 65535
				out.Data[i+1] = float32(c.G) / 65535
				out.Data[i+2] = float32(c.B) / 65535
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				i := (y*w + x) * 3
				out.Data[i] = float32(r) / 65535
				out.Data[i+1] = float32(g) / 65535
				out.Data[i+2] = float32(bl) / 65535
			}
		}
	}
	return out
}

// ToNRGBA converts the buffer to an 8-bit image. Values are clamped to
// [0, 1]; NaN maps to 0.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			i := (y*b.W + x) * 3
			j := y*out.Stride + x*4
			out.Pix[j] = quantize8(b.Data[i])
			out.Pix[j+1] = quantize8(b.Data[i+1])
			out.Pix[j+2] = quantize8(b.Data[i+2])
			out.Pix[j+3] = 0xff
		}
	}
	return out
}

// ToRGBA64 converts the buffer to a 16-bit image for TIFF export.
func (b *Buffer) ToRGBA64() *image.RGBA64 {
	out := image.NewRGBA64(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			i := (y*b.W + x) * 3
			j := y*out.Stride + x*8
			putUint16(out.Pix[j:], quantize16(b.Data[i]))
			putUint16(out.Pix[j+2:], quantize16(b.Data[i+1]))
			putUint16(out.Pix[j+4:], quantize16(b.Data[i+2]))
			putUint16(out.Pix[j+6:], 0xffff)
		}
	}
	return out
}

func putUint16(p []byte, v uint16) {
	p[0] = byte(v >> 8)
	p[1] = byte(v)
}

func quantize8(v float32) uint8 {
	if math.IsNaN(float64(v)) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func quantize16(v float32) uint16 {
	if math.IsNaN(float64(v)) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(v*65535 + 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
