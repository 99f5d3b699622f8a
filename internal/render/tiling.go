package render

import "github.com/negproof/negproof/internal/imagemath"

// Tiled execution bounds GPU memory on very large scans: the image is cut
// into fixed-size tiles that are processed independently and reassembled.
// Each tile carries a halo of surrounding pixels so windowed kernels see
// the same neighborhood they would in a whole-image pass.
const (
	TileSize = 2048
	TileHalo = 32

	// TilingThresholdPx is the pixel count above which an accelerated
	// render switches to tiled execution.
	TilingThresholdPx = 12_000_000
)

// Tile is one rectangle of a tiled render. The content rect is the region
// this tile owns in the output; the padded rect adds the halo, clamped to
// the image, and is what actually gets processed.
type Tile struct {
	// Content rect, half-open, in image coordinates.
	X0, Y0, X1, Y1 int
	// Padded rect including the halo.
	PX0, PY0, PX1, PY1 int
}

// ContentOffset returns where the content rect starts inside the padded
// tile buffer.
func (t Tile) ContentOffset() (x, y int) {
	return t.X0 - t.PX0, t.Y0 - t.PY0
}

// PaddedSize returns the dimensions of the processed tile buffer.
func (t Tile) PaddedSize() (w, h int) {
	return t.PX1 - t.PX0, t.PY1 - t.PY0
}

// NeedsTiling reports whether an image of the given size exceeds the
// single-dispatch budget.
func NeedsTiling(w, h int) bool {
	return w*h > TilingThresholdPx
}

// TileGrid cuts a w by h image into tiles. Content rects partition the
// image exactly; padded rects overlap by up to the halo.
func TileGrid(w, h int) []Tile {
	var tiles []Tile
	for y0 := 0; y0 < h; y0 += TileSize {
		y1 := min(y0+TileSize, h)
		for x0 := 0; x0 < w; x0 += TileSize {
			x1 := min(x0+TileSize, w)
			tiles = append(tiles, Tile{
				X0: x0, Y0: y0, X1: x1, Y1: y1,
				PX0: max(x0-TileHalo, 0),
				PY0: max(y0-TileHalo, 0),
				PX1: min(x1+TileHalo, w),
				PY1: min(y1+TileHalo, h),
			})
		}
	}
	return tiles
}

// ExtractTile copies the padded rect of a tile out of the source buffer.
func ExtractTile(src *imagemath.Buffer, t Tile) *imagemath.Buffer {
	return src.Crop(t.PY0, t.PY1, t.PX0, t.PX1)
}

// PlaceTile writes the content rect of a processed padded tile into the
// destination buffer, discarding the halo.
func PlaceTile(dst *imagemath.Buffer, processed *imagemath.Buffer, t Tile) {
	offX, offY := t.ContentOffset()
	cw := t.X1 - t.X0
	for y := t.Y0; y < t.Y1; y++ {
		srcRow := ((y - t.Y0 + offY) * processed.W + offX) * 3
		dstRow := (y * dst.W + t.X0) * 3
		copy(dst.Data[dstRow:dstRow+cw*3], processed.Data[srcRow:srcRow+cw*3])
	}
}
