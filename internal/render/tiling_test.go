package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/imagemath"
)

func TestNeedsTiling(t *testing.T) {
	assert.False(t, NeedsTiling(3000, 2000))
	assert.False(t, NeedsTiling(4000, 3000)) // exactly at the threshold
	assert.True(t, NeedsTiling(4000, 3001))
	assert.True(t, NeedsTiling(8000, 6000))
}

func TestTileGridPartitionsExactly(t *testing.T) {
	const w, h = 5000, 3000
	tiles := TileGrid(w, h)
	require.Len(t, tiles, 6) // 3 across, 2 down

	covered := make(map[int]bool)
	for _, tile := range tiles {
		assert.Less(t, tile.X0, tile.X1)
		assert.Less(t, tile.Y0, tile.Y1)
		for y := tile.Y0; y < tile.Y1; y++ {
			for x := tile.X0; x < tile.X1; x += 97 {
				i := y*w + x
				assert.False(t, covered[i], "pixel covered twice")
				covered[i] = true
			}
		}
	}
	// spot-check corners and the far edge
	assert.True(t, covered[0])
	assert.True(t, covered[(h-1)*w])
}

func TestTileGridHaloClampedAtBorders(t *testing.T) {
	tiles := TileGrid(5000, 3000)

	first := tiles[0]
	assert.Equal(t, 0, first.PX0)
	assert.Equal(t, 0, first.PY0)
	assert.Equal(t, first.X1+TileHalo, first.PX1)
	assert.Equal(t, first.Y1+TileHalo, first.PY1)

	last := tiles[len(tiles)-1]
	assert.Equal(t, 5000, last.PX1)
	assert.Equal(t, 3000, last.PY1)
	assert.Equal(t, last.X0-TileHalo, last.PX0)

	offX, offY := first.ContentOffset()
	assert.Equal(t, 0, offX)
	assert.Equal(t, 0, offY)
	offX, offY = last.ContentOffset()
	assert.Equal(t, TileHalo, offX)
	assert.Equal(t, TileHalo, offY)
}

func TestExtractPlaceRoundTripMatchesFullPass(t *testing.T) {
	const w, h = 30, 20
	src := imagemath.NewBuffer(w, h)
	for i := range src.Data {
		src.Data[i] = float32(i%251) / 250
	}

	// hand-built 2x1 grid with a 3 pixel halo
	halo := 3
	tiles := []Tile{
		{X0: 0, Y0: 0, X1: 16, Y1: h, PX0: 0, PY0: 0, PX1: 16 + halo, PY1: h},
		{X0: 16, Y0: 0, X1: w, Y1: h, PX0: 16 - halo, PY0: 0, PX1: w, PY1: h},
	}

	scale := func(b *imagemath.Buffer) {
		for i := range b.Data {
			b.Data[i] *= 0.5
		}
	}

	tiled := imagemath.NewBuffer(w, h)
	for _, tile := range tiles {
		part := ExtractTile(src, tile)
		scale(part)
		PlaceTile(tiled, part, tile)
	}

	full := src.Clone()
	scale(full)
	assert.Equal(t, full.Data, tiled.Data)
}
