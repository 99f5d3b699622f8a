//go:build !nogpu

package gpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/mempool"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/negative/stages"
	"github.com/negproof/negproof/internal/render"
)

// errTiledRetouch reports that the tiled path cannot honor painted
// retouch; the coordinator falls back to the CPU engine for these
// renders.
var errTiledRetouch = fmt.Errorf("tiled render: retouch requires the cpu engine")

// renderTiled processes frames above the tiling threshold in 2048² tiles
// with a halo for the gather passes. Orientation and paper layout run on
// the CPU; normalization bounds, the shadow cast and the local-contrast
// CDFs come from one downsampled pass so every tile sees the same
// globals.
func (e *Engine) renderTiled(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	if cfg.Retouch.DustRemove || len(cfg.Retouch.ManualSpots) > 0 || len(cfg.Retouch.LocalAdjustments) > 0 {
		return nil, errTiledRetouch
	}

	oriented, err := stages.NewGeometry(cfg.Geometry).Process(pc, src)
	if err != nil {
		return nil, fmt.Errorf("tiled geometry: %w", err)
	}
	w, h := oriented.W, oriented.H

	small := oriented
	long := max(w, h)
	if long > analysisMaxEdge {
		f := float64(analysisMaxEdge) / float64(long)
		small = imagemath.ResizeBilinear(oriented, max(1, int(float64(w)*f)), max(1, int(float64(h)*f)))
	}
	bounds := resolveBounds(cfg.Process, small, scaleROI(pc.ActiveROI, small.W, small.H, w, h))
	for i := 0; i < 3; i++ {
		bounds.Floors[i] += cfg.Process.WhitePointOffset
		bounds.Ceils[i] += cfg.Process.BlackPointOffset
	}
	pc.Bounds = &bounds
	pc.SetMetric("normalized_bounds", bounds)

	normalized := stages.Normalize(small, bounds)
	var castVec [3]float64
	if cfg.Process.ShadowCastStrength > 0 {
		cast := resolveCast(cfg.Process, normalized)
		castVec = cast.Vector
		pc.Cast = &cast
		pc.SetMetric("shadow_cast", cast)
	}

	claheOn := cfg.Lab.CLAHEStrength > 0
	grid := max(2, int(8*pc.ScaleFactor))
	var cdfBytes []byte
	if claheOn {
		cdfBytes = floatBytes(globalCDFs(normalized, grid, cfg.Lab.CLAHEStrength*2.5))
	}

	ub, err := e.pool.uniform("uniforms", numRegions*uniformStride)
	if err != nil {
		return nil, err
	}
	content := imagemath.NewBuffer(w, h)
	for _, tile := range render.TileGrid(w, h) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, terr := e.renderTile(oriented, tile, cfg, pc, bounds.Floors, bounds.Ceils, castVec, grid, cdfBytes, ub)
		if terr != nil {
			return nil, terr
		}
		render.PlaceTile(content, out, tile)
	}

	return e.assemble(content, cfg, pc)
}

// renderTile runs the pointwise chain on one padded tile.
func (e *Engine) renderTile(oriented *imagemath.Buffer, tile render.Tile, cfg *negative.WorkspaceConfig, pc *negative.Context, floors, ceils, castVec [3]float64, grid int, cdfBytes []byte, ub hal.Buffer) (*imagemath.Buffer, error) {
	padded := render.ExtractTile(oriented, tile)
	tw, th := padded.W, padded.H
	pix := imageBytes(tw, th)

	bufA, err := e.pool.storage("tile_a", pix)
	if err != nil {
		return nil, err
	}
	bufB, err := e.pool.storage("tile_b", pix)
	if err != nil {
		return nil, err
	}
	e.queue.WriteBuffer(bufA, 0, floatBytes(padded.Data))

	e.writeTileUniforms(ub, cfg, pc, tw, th, oriented.W, oriented.H, tile.PX0, tile.PY0, floors, ceils, castVec, grid)

	gx, gy := groups2D(tw, th)
	pointwise := func(pipe, region int, in, out hal.Buffer) passRun {
		return passRun{pipe, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, region),
			bufEntry(1, in, pix),
			bufEntry(2, out, pix),
		}, gx, gy}
	}

	runs := []passRun{
		pointwise(pipeNormalize, regionNormalize, bufA, bufB),
		pointwise(pipeExposure, regionExposure, bufB, bufA),
	}
	cur, alt := bufA, bufB
	if len(cdfBytes) > 0 {
		cdfBuf, cerr := e.pool.storage("clahe_cdfs", uint64(len(cdfBytes)))
		if cerr != nil {
			return nil, cerr
		}
		e.queue.WriteBuffer(cdfBuf, 0, cdfBytes)
		runs = append(runs, passRun{pipeCLAHEApply, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, regionCLAHE),
			bufEntry(1, cur, pix),
			bufEntry(2, cdfBuf, uint64(len(cdfBytes))),
			bufEntry(3, alt, pix),
		}, gx, gy})
		cur, alt = alt, cur
	}
	runs = append(runs,
		pointwise(pipeLabPre, regionLab, cur, alt),
		pointwise(pipeLabPost, regionLab, alt, cur),
		pointwise(pipeToning, regionToning, cur, alt),
	)
	staging, err := e.pool.staging("tile_staging", pix)
	if err != nil {
		return nil, err
	}
	if err := e.submit("tile", runs, []bufferCopy{{src: alt, dst: staging, size: pix}}); err != nil {
		return nil, err
	}
	raw := make([]byte, pix)
	if err := e.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("readback tile: %w", err)
	}
	out := imagemath.NewBuffer(tw, th)
	bytesToFloats(raw, out.Data)
	return out, nil
}

// writeTileUniforms packs the pointwise regions for one padded tile.
func (e *Engine) writeTileUniforms(ub hal.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context, tw, th, fullW, fullH, originX, originY int, floors, ceils, castVec [3]float64, grid int) {
	all := make([]byte, numRegions*uniformStride)
	put := func(region int, data []byte) {
		copy(all[region*uniformStride:], data)
	}

	put(regionNormalize, packNormalize(tw, th, cfg.Process.Mode.IsReversal(),
		floors, ceils, castVec, cfg.Process.ShadowCastStrength))

	var cameraWB *[2]float64
	if wb, ok := pc.Metrics["camera_wb"].(*[2]float64); ok {
		cameraWB = wb
	}
	cp := stages.DeriveCurve(cfg.Exposure, cameraWB)
	put(regionExposure, packExposure(tw, th, pc.Mode == negative.ProcessBW, exposureUniforms{
		Slope: cp.Slope, Pivot: cp.Pivot,
		CMY: cp.CMY, ShadowCMY: cp.ShadowCMY, HighlightCMY: cp.HighlightCMY,
		Toe: cfg.Exposure.Toe, Shoulder: cfg.Exposure.Shoulder,
		ToeWidth: cfg.Exposure.ToeWidth, ShoulderWidth: cfg.Exposure.ShoulderWidth,
		ToeHardness: cfg.Exposure.ToeHardness, ShoulderHard: cfg.Exposure.ShoulderHardness,
		Shadows: cfg.Exposure.Shadows, Highlights: cfg.Exposure.Highlights,
	}))

	put(regionCLAHE, packCLAHE(tw, th, grid, render.HistogramBins,
		cfg.Lab.CLAHEStrength, cfg.Lab.CLAHEStrength*2.5, fullW, fullH, originX, originY))

	put(regionLab, packLab(tw, th, labParams(cfg.Lab, pc)))

	paper := negative.LookupPaper(cfg.Toning.PaperProfile)
	put(regionToning, packToning(tw, th, pc.Mode == negative.ProcessBW,
		cfg.Toning.SeleniumStrength, cfg.Toning.SepiaStrength, paper.DMaxBoost, paper.Tint))

	e.queue.WriteBuffer(ub, 0, all)
}

// globalCDFs computes the tile CDFs of the L plane on the downsampled
// normalized frame, flattened tile-major for the apply pass.
func globalCDFs(normalized *imagemath.Buffer, grid int, clipLimit float64) []float32 {
	w, h := normalized.W, normalized.H
	planes := mempool.GetPlanes(w, h, 3)
	defer mempool.PutPlanes(planes)
	lp, ap, bp := planes[0], planes[1], planes[2]
	imagemath.SplitLab(normalized, lp, ap, bp)

	cdfs := stages.ComputeTileCDFs(lp, w, h, grid, clipLimit)
	flat := make([]float32, 0, len(cdfs)*render.HistogramBins)
	for _, cdf := range cdfs {
		for _, v := range cdf {
			flat = append(flat, float32(v))
		}
	}
	return flat
}

// assemble crops the stitched content and lays it out on paper.
func (e *Engine) assemble(content *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	out := content
	if !cfg.Geometry.KeepFullFrame && pc.ActiveROI != nil && !pc.ActiveROI.Empty() {
		roi := *pc.ActiveROI
		out = out.Crop(roi.Y1, roi.Y2, roi.X1, roi.X2)
	}
	if cfg.Export.BorderSize > 0 || (cfg.Export.PaperRatio != negative.RatioFree && cfg.Export.PaperRatio != "") {
		dims := stages.CalculateLayoutDims(out.W, out.H, cfg.Export, max(out.W, out.H))
		br, bg, bb, err := stages.ParseHexColor(cfg.Export.BorderColor)
		if err != nil {
			return nil, fmt.Errorf("tiled layout: %w", err)
		}
		out = stages.ComposeOnPaper(out, dims, br, bg, bb)
	}
	pc.SetMetric("histogram", render.ComputeHistogram(out))
	return out, nil
}
