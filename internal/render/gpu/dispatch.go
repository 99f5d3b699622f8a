//go:build !nogpu

package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/negative/stages"
	"github.com/negproof/negproof/internal/render"
)

// Invalidation slots with resident outputs. A config change re-runs the
// first changed slot and everything after it; earlier outputs are reused
// from device memory.
const (
	slotGeometry = iota // orientation + normalization
	slotExposure
	slotCLAHE
	slotRetouch
	slotLab
	numResident
)

// analysisMaxEdge bounds the CPU analysis frame. Autocrop, normalization
// bounds and the shadow cast are measured on a downsample and applied to
// the full-resolution dispatch.
const analysisMaxEdge = 1024

const fenceTimeout = 5 * time.Second

// frameState is the resident per-source state: which slot outputs on the
// device are valid, and the analysis they were computed with.
type frameState struct {
	srcW, srcH int
	hashes     [numResident]string
	valid      [numResident]bool
	analysis   *frameAnalysis
	uploaded   bool
}

type frameAnalysis struct {
	geometry *negative.GeometryParams
	roi      negative.ROI
	bounds   negative.NormalizationBounds
	cast     negative.ShadowCastCorrection
	grid     int
	cdfs     [][]float64
}

func (a *frameAnalysis) restore(pc *negative.Context) {
	pc.Geometry = a.geometry
	roi := a.roi
	pc.ActiveROI = &roi
	bounds := a.bounds
	pc.Bounds = &bounds
	if !a.cast.IsZero() {
		cast := a.cast
		pc.Cast = &cast
		pc.SetMetric("shadow_cast", cast)
	}
	pc.SetMetric("normalized_bounds", bounds)
}

func slotHashes(cfg *negative.WorkspaceConfig) [numResident]string {
	return [numResident]string{
		slotGeometry: negative.ConfigHash(cfg.Geometry) + negative.ConfigHash(cfg.Process),
		slotExposure: negative.ConfigHash(cfg.Exposure),
		slotCLAHE:    fmt.Sprintf("clahe:%.6f", cfg.Lab.CLAHEStrength),
		slotRetouch:  negative.ConfigHash(cfg.Retouch),
		slotLab:      negative.ConfigHash(cfg.Lab),
	}
}

func (fs *frameState) firstInvalid(hashes [numResident]string) int {
	for i := 0; i < numResident; i++ {
		if !fs.valid[i] || fs.hashes[i] != hashes[i] {
			return i
		}
	}
	return numResident
}

// passRun describes one compute dispatch: pipeline, bindings, grid.
type passRun struct {
	pipe             int
	entries          []gputypes.BindGroupEntry
	groupsX, groupsY uint32
}

// bufferCopy is a buffer-to-buffer copy appended after the passes of a
// submission, used both for disabled-stage pass-through and readback
// staging.
type bufferCopy struct {
	src, dst hal.Buffer
	size     uint64
}

func groups2D(w, h int) (uint32, uint32) {
	return uint32((w + 15) / 16), uint32((h + 15) / 16)
}

func (e *Engine) uniformEntry(binding uint32, ub hal.Buffer, region int) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding: binding,
		Resource: gputypes.BufferBinding{
			Buffer: ub.NativeHandle(),
			Offset: uint64(region) * uniformStride,
			Size:   regionSizes[region],
		},
	}
}

func bufEntry(binding uint32, buf hal.Buffer, size uint64) gputypes.BindGroupEntry {
	return gputypes.BindGroupEntry{
		Binding:  binding,
		Resource: gputypes.BufferBinding{Buffer: buf.NativeHandle(), Offset: 0, Size: size},
	}
}

// submit encodes the passes and copies into one command buffer, submits
// it and blocks on the fence.
func (e *Engine) submit(label string, runs []passRun, copies []bufferCopy) error {
	bindGroups := make([]hal.BindGroup, 0, len(runs))
	defer func() {
		for _, bg := range bindGroups {
			e.device.DestroyBindGroup(bg)
		}
	}()

	encoder, err := e.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	specs := pipelineSpecs()
	for _, run := range runs {
		bg, bgErr := e.device.CreateBindGroup(&hal.BindGroupDescriptor{
			Label:   specs[run.pipe].label + "_bind",
			Layout:  e.pipelines.bgLayouts[run.pipe],
			Entries: run.entries,
		})
		if bgErr != nil {
			return fmt.Errorf("create %s bind group: %w", specs[run.pipe].label, bgErr)
		}
		bindGroups = append(bindGroups, bg)

		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: specs[run.pipe].label})
		pass.SetPipeline(e.pipelines.pipelines[run.pipe])
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(run.groupsX, run.groupsY, 1)
		pass.End()
	}
	for _, c := range copies {
		encoder.CopyBufferToBuffer(c.src, c.dst, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: c.size},
		})
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer e.device.FreeCommandBuffer(cmdBuf)

	fence, err := e.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer e.device.DestroyFence(fence)
	if err := e.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := e.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for %s: ok=%v err=%w", label, ok, err)
	}
	return nil
}

// readImage copies a device image buffer through a staging buffer into a
// new host buffer of the given dimensions.
func (e *Engine) readImage(buf hal.Buffer, w, h int, stagingLabel string) (*imagemath.Buffer, error) {
	size := imageBytes(w, h)
	staging, err := e.pool.staging(stagingLabel, size)
	if err != nil {
		return nil, err
	}
	if err := e.submit("readback", nil, []bufferCopy{{src: buf, dst: staging, size: size}}); err != nil {
		return nil, err
	}
	raw := make([]byte, size)
	if err := e.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("readback %s: %w", stagingLabel, err)
	}
	out := imagemath.NewBuffer(w, h)
	bytesToFloats(raw, out.Data)
	return out, nil
}

func imageBytes(w, h int) uint64 {
	return uint64(w) * uint64(h) * 3 * 4
}

func floatBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4) //nolint:gosec // upload serialization
}

func bytesToFloats(raw []byte, dst []float32) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
}

// analyze measures everything the dispatch needs on a CPU downsample:
// the orientation transform, the crop, normalization bounds and the
// shadow cast. Results are in full-resolution terms.
func (e *Engine) analyze(src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*frameAnalysis, error) {
	small := src
	long := max(src.W, src.H)
	if long > analysisMaxEdge {
		f := float64(analysisMaxEdge) / float64(long)
		small = imagemath.ResizeBilinear(src, max(1, int(float64(src.W)*f)), max(1, int(float64(src.H)*f)))
	}
	apc := &negative.Context{
		ScaleFactor: pc.ScaleFactor * float64(small.W) / float64(src.W),
		OriginalW:   small.W,
		OriginalH:   small.H,
		Mode:        pc.Mode,
		Metrics:     make(map[string]any),
	}

	oriented, err := stages.NewGeometry(cfg.Geometry).Process(apc, small)
	if err != nil {
		return nil, fmt.Errorf("analysis geometry: %w", err)
	}

	// full-resolution transform; quarter turns swap the frame
	outW, outH := src.W, src.H
	if cfg.Geometry.Rotation%2 == 1 {
		outW, outH = outH, outW
	}
	gp := &negative.GeometryParams{
		Rotation:     cfg.Geometry.Rotation,
		FineRotation: cfg.Geometry.FineRotation,
		FlipH:        cfg.Geometry.FlipH,
		FlipV:        cfg.Geometry.FlipV,
		SrcW:         src.W,
		SrcH:         src.H,
		OutW:         outW,
		OutH:         outH,
	}

	roi := negative.ROI{Y1: 0, Y2: outH, X1: 0, X2: outW}
	if apc.ActiveROI != nil && !apc.ActiveROI.Empty() {
		sx := float64(outW) / float64(oriented.W)
		sy := float64(outH) / float64(oriented.H)
		roi = negative.ROI{
			X1: clampRange(int(math.Round(float64(apc.ActiveROI.X1)*sx)), 0, outW-1),
			X2: clampRange(int(math.Round(float64(apc.ActiveROI.X2)*sx)), 1, outW),
			Y1: clampRange(int(math.Round(float64(apc.ActiveROI.Y1)*sy)), 0, outH-1),
			Y2: clampRange(int(math.Round(float64(apc.ActiveROI.Y2)*sy)), 1, outH),
		}
	}

	bounds := resolveBounds(cfg.Process, oriented, apc.ActiveROI)
	for i := 0; i < 3; i++ {
		bounds.Floors[i] += cfg.Process.WhitePointOffset
		bounds.Ceils[i] += cfg.Process.BlackPointOffset
	}

	var cast negative.ShadowCastCorrection
	if cfg.Process.ShadowCastStrength > 0 {
		normalized := stages.Normalize(oriented, bounds)
		cast = resolveCast(cfg.Process, normalized)
	}

	return &frameAnalysis{geometry: gp, roi: roi, bounds: bounds, cast: cast}, nil
}

// resolveBounds mirrors the CPU normalization stage's priority order; roi
// is in pixels of the oriented buffer.
func resolveBounds(cfg negative.ProcessConfig, oriented *imagemath.Buffer, roi *negative.ROI) negative.NormalizationBounds {
	if cfg.UseRollAverage && cfg.LockedBounds.Initialized() {
		return cfg.LockedBounds
	}
	if cfg.LocalBounds.Initialized() {
		return cfg.LocalBounds
	}
	return stages.AnalyzeBounds(oriented, roi, cfg.Mode, cfg.AnalysisBuffer, cfg.E6Normalize)
}

func resolveCast(cfg negative.ProcessConfig, normalized *imagemath.Buffer) negative.ShadowCastCorrection {
	if cfg.UseRollAverage && !cfg.LockedShadowCast.IsZero() {
		return cfg.LockedShadowCast
	}
	if !cfg.LocalShadowCast.IsZero() {
		return cfg.LocalShadowCast
	}
	return stages.AnalyzeShadowCast(normalized, cfg.ShadowCastThreshold)
}

// scaleROI maps a crop from the oriented frame into the downsampled
// analysis frame.
func scaleROI(roi *negative.ROI, toW, toH, fromW, fromH int) *negative.ROI {
	if roi == nil || roi.Empty() || (toW == fromW && toH == fromH) {
		return roi
	}
	sx := float64(toW) / float64(fromW)
	sy := float64(toH) / float64(fromH)
	scaled := negative.ROI{
		X1: clampRange(int(math.Round(float64(roi.X1)*sx)), 0, toW-1),
		X2: clampRange(int(math.Round(float64(roi.X2)*sx)), 1, toW),
		Y1: clampRange(int(math.Round(float64(roi.Y1)*sy)), 0, toH-1),
		Y2: clampRange(int(math.Round(float64(roi.Y2)*sy)), 1, toH),
	}
	return &scaled
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// renderFrame runs the untiled path: upload once, re-dispatch from the
// first invalidated slot, read the print and its histogram back.
func (e *Engine) renderFrame(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	fs := e.frame
	if fs == nil || fs.srcW != src.W || fs.srcH != src.H {
		fs = &frameState{srcW: src.W, srcH: src.H}
		e.frame = fs
	}
	hashes := slotHashes(cfg)
	start := fs.firstInvalid(hashes)
	if fs.analysis == nil || start == slotGeometry {
		an, err := e.analyze(src, cfg, pc)
		if err != nil {
			return nil, err
		}
		fs.analysis = an
		start = slotGeometry
	}
	an := fs.analysis
	an.restore(pc)
	outW, outH := an.geometry.OutW, an.geometry.OutH
	pix := imageBytes(outW, outH)

	srcBuf, err := e.pool.storage("source", imageBytes(src.W, src.H))
	if err != nil {
		return nil, err
	}
	if !fs.uploaded {
		e.queue.WriteBuffer(srcBuf, 0, floatBytes(src.Data))
		fs.uploaded = true
	}
	stage := [numResident]hal.Buffer{}
	labels := [numResident]string{"stage_base", "stage_exposure", "stage_clahe", "stage_retouch", "stage_lab"}
	for i := range stage {
		if stage[i], err = e.pool.storage(labels[i], pix); err != nil {
			return nil, err
		}
	}
	geomTmp, err := e.pool.storage("oriented", pix)
	if err != nil {
		return nil, err
	}
	ub, err := e.pool.uniform("uniforms", numRegions*uniformStride)
	if err != nil {
		return nil, err
	}

	// crop and paper geometry
	crop := cropRect(cfg, an, outW, outH)
	dims, border, err := layoutFor(cfg.Export, crop, cfg.Geometry.KeepFullFrame)
	if err != nil {
		return nil, err
	}
	printBuf, err := e.pool.storage("print", imageBytes(dims.PaperW, dims.PaperH))
	if err != nil {
		return nil, err
	}
	histBuf, err := e.pool.storage("histogram", uint64(3*render.HistogramBins*4))
	if err != nil {
		return nil, err
	}

	claheOn := cfg.Lab.CLAHEStrength > 0
	grid := max(2, int(8*pc.ScaleFactor))
	if err := e.writeUniforms(ub, cfg, pc, an, outW, outH, grid, crop, dims, border); err != nil {
		return nil, err
	}

	gx, gy := groups2D(outW, outH)

	// part one: orientation through local contrast
	if start <= slotCLAHE {
		var runs []passRun
		var copies []bufferCopy
		if start <= slotGeometry {
			runs = append(runs,
				passRun{pipeGeometry, []gputypes.BindGroupEntry{
					e.uniformEntry(0, ub, regionGeometry),
					bufEntry(1, srcBuf, imageBytes(src.W, src.H)),
					bufEntry(2, geomTmp, pix),
				}, gx, gy},
				passRun{pipeNormalize, []gputypes.BindGroupEntry{
					e.uniformEntry(0, ub, regionNormalize),
					bufEntry(1, geomTmp, pix),
					bufEntry(2, stage[slotGeometry], pix),
				}, gx, gy},
			)
		}
		if start <= slotExposure {
			runs = append(runs, passRun{pipeExposure, []gputypes.BindGroupEntry{
				e.uniformEntry(0, ub, regionExposure),
				bufEntry(1, stage[slotGeometry], pix),
				bufEntry(2, stage[slotExposure], pix),
			}, gx, gy})
		}
		if claheOn {
			histSize := uint64(grid*grid*render.HistogramBins) * 4
			claheHist, herr := e.pool.storage("clahe_hist", histSize)
			if herr != nil {
				return nil, herr
			}
			cdfs, cerr := e.pool.storage("clahe_cdfs", histSize)
			if cerr != nil {
				return nil, cerr
			}
			e.queue.WriteBuffer(claheHist, 0, make([]byte, histSize))
			runs = append(runs,
				passRun{pipeCLAHEHist, []gputypes.BindGroupEntry{
					e.uniformEntry(0, ub, regionCLAHE),
					bufEntry(1, stage[slotExposure], pix),
					bufEntry(2, claheHist, histSize),
				}, gx, gy},
				passRun{pipeCLAHECDF, []gputypes.BindGroupEntry{
					e.uniformEntry(0, ub, regionCLAHE),
					bufEntry(1, claheHist, histSize),
					bufEntry(2, cdfs, histSize),
				}, uint32((grid*grid + 63) / 64), 1},
				passRun{pipeCLAHEApply, []gputypes.BindGroupEntry{
					e.uniformEntry(0, ub, regionCLAHE),
					bufEntry(1, stage[slotExposure], pix),
					bufEntry(2, cdfs, histSize),
					bufEntry(3, stage[slotCLAHE], pix),
				}, gx, gy},
			)
		} else {
			copies = append(copies, bufferCopy{src: stage[slotExposure], dst: stage[slotCLAHE], size: pix})
		}
		if err := e.submit("render_front", runs, copies); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	var runs []passRun

	// part two: retouch masks come from the CPU kernels on a readback of
	// the stage input
	if start <= slotRetouch {
		fillBuf, fillSize := stage[slotCLAHE], pix
		masksSize := uint64(outW*outH*2) * 4
		masksBuf, merr := e.pool.storage("retouch_masks", masksSize)
		if merr != nil {
			return nil, merr
		}
		retouchOn := cfg.Retouch.DustRemove || len(cfg.Retouch.ManualSpots) > 0 || len(cfg.Retouch.LocalAdjustments) > 0
		if retouchOn {
			upstream, rerr := e.readImage(stage[slotCLAHE], outW, outH, "staging_mid")
			if rerr != nil {
				return nil, rerr
			}
			fill, masks := e.retouchPlanes(upstream, cfg, pc)
			if fill != nil {
				if fillBuf, err = e.pool.storage("retouch_fill", pix); err != nil {
					return nil, err
				}
				e.queue.WriteBuffer(fillBuf, 0, floatBytes(fill.Data))
			}
			e.queue.WriteBuffer(masksBuf, 0, floatBytes(masks))
		} else {
			// neutral masks: zero weight, zero stops
			e.queue.WriteBuffer(masksBuf, 0, make([]byte, masksSize))
		}
		runs = append(runs, passRun{pipeRetouch, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, regionRetouch),
			bufEntry(1, stage[slotCLAHE], pix),
			bufEntry(2, fillBuf, fillSize),
			bufEntry(3, masksBuf, masksSize),
			bufEntry(4, stage[slotRetouch], pix),
		}, gx, gy})
	}
	if start <= slotLab {
		labTmp, lerr := e.pool.storage("lab_mid", pix)
		if lerr != nil {
			return nil, lerr
		}
		runs = append(runs,
			passRun{pipeLabPre, []gputypes.BindGroupEntry{
				e.uniformEntry(0, ub, regionLab),
				bufEntry(1, stage[slotRetouch], pix),
				bufEntry(2, labTmp, pix),
			}, gx, gy},
			passRun{pipeLabPost, []gputypes.BindGroupEntry{
				e.uniformEntry(0, ub, regionLab),
				bufEntry(1, labTmp, pix),
				bufEntry(2, stage[slotLab], pix),
			}, gx, gy},
		)
	}
	tonedBuf, err := e.pool.storage("toned", pix)
	if err != nil {
		return nil, err
	}
	printSize := imageBytes(dims.PaperW, dims.PaperH)
	pgx, pgy := groups2D(dims.PaperW, dims.PaperH)
	e.queue.WriteBuffer(histBuf, 0, make([]byte, 3*render.HistogramBins*4))
	runs = append(runs,
		passRun{pipeToning, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, regionToning),
			bufEntry(1, stage[slotLab], pix),
			bufEntry(2, tonedBuf, pix),
		}, gx, gy},
		passRun{pipeLayout, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, regionLayout),
			bufEntry(1, tonedBuf, pix),
			bufEntry(2, printBuf, printSize),
		}, pgx, pgy},
		passRun{pipeHistogram, []gputypes.BindGroupEntry{
			e.uniformEntry(0, ub, regionHistogram),
			bufEntry(1, printBuf, printSize),
			bufEntry(2, histBuf, uint64(3*render.HistogramBins*4)),
		}, pgx, pgy},
	)
	stagingPrint, err := e.pool.staging("staging_print", printSize)
	if err != nil {
		return nil, err
	}
	stagingHist, err := e.pool.staging("staging_hist", uint64(3*render.HistogramBins*4))
	if err != nil {
		return nil, err
	}
	copies := []bufferCopy{
		{src: printBuf, dst: stagingPrint, size: printSize},
		{src: histBuf, dst: stagingHist, size: uint64(3 * render.HistogramBins * 4)},
	}
	if err := e.submit("render_back", runs, copies); err != nil {
		return nil, err
	}

	raw := make([]byte, printSize)
	if err := e.queue.ReadBuffer(stagingPrint, 0, raw); err != nil {
		return nil, fmt.Errorf("readback print: %w", err)
	}
	out := imagemath.NewBuffer(dims.PaperW, dims.PaperH)
	bytesToFloats(raw, out.Data)

	histRaw := make([]byte, 3*render.HistogramBins*4)
	if err := e.queue.ReadBuffer(stagingHist, 0, histRaw); err != nil {
		return nil, fmt.Errorf("readback histogram: %w", err)
	}
	pc.SetMetric("histogram", decodeHistogram(histRaw))

	fs.hashes = hashes
	for i := range fs.valid {
		fs.valid[i] = true
	}
	return out, nil
}

// retouchPlanes runs the CPU retouch kernels on the stage input and
// reduces them to a fill image plus interleaved (weight, stops) planes
// for the apply pass.
func (e *Engine) retouchPlanes(upstream *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, []float32) {
	n := upstream.Pixels()
	masks := make([]float32, n*2)

	var fill *imagemath.Buffer
	healed := upstream
	if cfg.Retouch.DustRemove {
		healed = stages.RemoveDust(healed, cfg.Retouch.DustThreshold, cfg.Retouch.DustSize, pc.ScaleFactor)
	}
	if len(cfg.Retouch.ManualSpots) > 0 {
		healed = stages.HealSpots(healed, cfg.Retouch.ManualSpots, pc)
	}
	if healed != upstream {
		fill = healed
		for i := 0; i < n; i++ {
			masks[i*2] = 1
		}
	}
	if len(cfg.Retouch.LocalAdjustments) > 0 {
		stops := stages.AdjustmentStops(healed, cfg.Retouch.LocalAdjustments, pc)
		for i := 0; i < n; i++ {
			masks[i*2+1] = stops[i]
		}
	}
	return fill, masks
}

func decodeHistogram(raw []byte) *render.Histogram {
	var h render.Histogram
	for i := 0; i < render.HistogramBins; i++ {
		h.R[i] = int(binary.LittleEndian.Uint32(raw[i*4:]))
		h.G[i] = int(binary.LittleEndian.Uint32(raw[(render.HistogramBins+i)*4:]))
		h.B[i] = int(binary.LittleEndian.Uint32(raw[(2*render.HistogramBins+i)*4:]))
	}
	return &h
}

// cropRect resolves the active crop in oriented-frame pixels.
func cropRect(cfg *negative.WorkspaceConfig, an *frameAnalysis, outW, outH int) negative.ROI {
	if cfg.Geometry.KeepFullFrame || an.roi.Empty() {
		return negative.ROI{Y1: 0, Y2: outH, X1: 0, X2: outW}
	}
	return an.roi
}

// layoutFor computes the paper geometry. Without a border or a fixed
// paper ratio the print is the bare crop.
func layoutFor(cfg negative.ExportConfig, crop negative.ROI, keepFullFrame bool) (stages.LayoutDims, [3]float32, error) {
	cw := crop.X2 - crop.X1
	ch := crop.Y2 - crop.Y1
	if cfg.BorderSize <= 0 && (cfg.PaperRatio == negative.RatioFree || cfg.PaperRatio == "") {
		return stages.LayoutDims{
			PaperW: cw, PaperH: ch,
			ContentW: cw, ContentH: ch,
		}, [3]float32{1, 1, 1}, nil
	}
	dims := stages.CalculateLayoutDims(cw, ch, cfg, max(cw, ch))
	br, bg, bb, err := stages.ParseHexColor(cfg.BorderColor)
	if err != nil {
		return stages.LayoutDims{}, [3]float32{}, fmt.Errorf("layout: %w", err)
	}
	return dims, [3]float32{br, bg, bb}, nil
}

// writeUniforms packs every stage region and uploads the whole uniform
// buffer in one write.
func (e *Engine) writeUniforms(ub hal.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context, an *frameAnalysis, outW, outH, grid int, crop negative.ROI, dims stages.LayoutDims, border [3]float32) error {
	all := make([]byte, numRegions*uniformStride)
	put := func(region int, data []byte) {
		copy(all[region*uniformStride:], data)
	}

	g := cfg.Geometry
	var flips uint32
	if g.FlipH {
		flips |= 1
	}
	if g.FlipV {
		flips |= 2
	}
	put(regionGeometry, packGeometry(
		an.geometry.SrcW, an.geometry.SrcH, outW, outH,
		g.FineRotation*math.Pi/180, uint32(((g.Rotation%4)+4)%4), flips,
	))

	var castVec [3]float64
	if pc.Cast != nil {
		castVec = pc.Cast.Vector
	}
	put(regionNormalize, packNormalize(
		outW, outH, cfg.Process.Mode.IsReversal(),
		an.bounds.Floors, an.bounds.Ceils, castVec, cfg.Process.ShadowCastStrength,
	))

	var cameraWB *[2]float64
	if wb, ok := pc.Metrics["camera_wb"].(*[2]float64); ok {
		cameraWB = wb
	}
	cp := stages.DeriveCurve(cfg.Exposure, cameraWB)
	put(regionExposure, packExposure(outW, outH, pc.Mode == negative.ProcessBW, exposureUniforms{
		Slope: cp.Slope, Pivot: cp.Pivot,
		CMY: cp.CMY, ShadowCMY: cp.ShadowCMY, HighlightCMY: cp.HighlightCMY,
		Toe: cfg.Exposure.Toe, Shoulder: cfg.Exposure.Shoulder,
		ToeWidth: cfg.Exposure.ToeWidth, ShoulderWidth: cfg.Exposure.ShoulderWidth,
		ToeHardness: cfg.Exposure.ToeHardness, ShoulderHard: cfg.Exposure.ShoulderHardness,
		Shadows: cfg.Exposure.Shadows, Highlights: cfg.Exposure.Highlights,
	}))

	put(regionCLAHE, packCLAHE(outW, outH, grid, render.HistogramBins,
		cfg.Lab.CLAHEStrength, cfg.Lab.CLAHEStrength*2.5, outW, outH, 0, 0))

	put(regionRetouch, packRetouch(outW, outH))

	put(regionLab, packLab(outW, outH, labParams(cfg.Lab, pc)))

	paper := negative.LookupPaper(cfg.Toning.PaperProfile)
	put(regionToning, packToning(outW, outH, pc.Mode == negative.ProcessBW,
		cfg.Toning.SeleniumStrength, cfg.Toning.SepiaStrength, paper.DMaxBoost, paper.Tint))

	put(regionLayout, packLayout(layoutUniforms{
		SrcW: outW, SrcH: outH,
		CropX: crop.X1, CropY: crop.Y1,
		CropW: crop.X2 - crop.X1, CropH: crop.Y2 - crop.Y1,
		PaperW: dims.PaperW, PaperH: dims.PaperH,
		ContentW: dims.ContentW, ContentH: dims.ContentH,
		OffsetX: dims.OffsetX, OffsetY: dims.OffsetY,
		BorderR: float64(border[0]), BorderG: float64(border[1]), BorderB: float64(border[2]),
	}))

	put(regionHistogram, packHistogram(dims.PaperW, dims.PaperH, render.HistogramBins))

	e.queue.WriteBuffer(ub, 0, all)
	return nil
}

// labParams derives the two-pass color grade uniforms. Kernel radii and
// sigmas follow the CPU kernels at the working scale.
func labParams(cfg negative.LabConfig, pc *negative.Context) labUniforms {
	u := labUniforms{Saturation: cfg.Saturation, VibranceBoost: cfg.Vibrance - 1}
	if m, ok := stages.CrosstalkBlend(cfg, pc.Mode); ok {
		u.Matrix = m
		u.Flags |= labFlagCrosstalk
	}
	if cfg.Saturation != 1 {
		u.Flags |= labFlagSaturation
	}
	if cfg.Sharpen > 0 {
		ksize := oddKernel(5 * pc.ScaleFactor)
		if ksize < 3 {
			ksize = 3
		}
		u.Flags |= labFlagSharpen
		u.SharpenRadius = ksize / 2
		u.SharpenAmount = cfg.Sharpen * 2.5
		u.SharpenSigma = 1.0 * pc.ScaleFactor
	}
	if cfg.ChromaDenoise > 0 {
		ksize := oddKernel(cfg.ChromaDenoise * pc.ScaleFactor * 2)
		u.Flags |= labFlagDenoise
		u.DenoiseRadius = ksize / 2
		u.DenoiseSigma = 0.3*(float64(ksize-1)*0.5-1) + 0.8
	}
	if cfg.Vibrance != 1 {
		u.Flags |= labFlagVibrance
	}
	return u
}

func oddKernel(v float64) int {
	n := int(v)
	if n < 1 {
		n = 1
	}
	if n%2 == 0 {
		n++
	}
	return n
}
