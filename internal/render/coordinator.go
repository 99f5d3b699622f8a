package render

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/nfnt/resize"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Coordinator routes renders to the accelerated engine when one is
// available and falls back to the CPU engine when it fails. Interactive
// previews are superseding: submitting a new one cancels the in-flight
// render.
type Coordinator struct {
	cpu    *CPUEngine
	gpu    Engine
	logger *slog.Logger

	mu         sync.Mutex
	cancelPrev context.CancelFunc
	closed     bool
}

// NewCoordinator wires the CPU engine with an optional accelerated engine.
// gpu may be nil.
func NewCoordinator(gpu Engine, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cpu:    NewCPUEngine(),
		gpu:    gpu,
		logger: logger,
	}
}

// SetSource tells both engines which image is loaded so per-source caches
// stay coherent.
func (c *Coordinator) SetSource(hash string) {
	c.cpu.SetSource(hash)
	if s, ok := c.gpu.(SourceSetter); ok {
		s.SetSource(hash)
	}
}

// Render processes src synchronously. The accelerated engine is tried
// first; any failure other than cancellation drops down to the CPU path.
func (c *Coordinator) Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	if c.gpu != nil {
		out, err := c.renderWith(ctx, c.gpu, src, cfg, pc)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		gpuFallbacksTotal.Inc()
		c.logger.Warn("accelerated render failed, falling back to cpu",
			"engine", c.gpu.Name(), "error", err)
	}
	return c.renderWith(ctx, c.cpu, src, cfg, pc)
}

func (c *Coordinator) renderWith(ctx context.Context, eng Engine, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	start := time.Now()
	out, err := eng.Render(ctx, src, cfg, pc)
	switch {
	case err == nil:
		rendersTotal.WithLabelValues(eng.Name(), "ok").Inc()
		renderDuration.WithLabelValues(eng.Name()).Observe(time.Since(start).Seconds())
	case errors.Is(err, context.Canceled):
		rendersTotal.WithLabelValues(eng.Name(), "canceled").Inc()
	default:
		rendersTotal.WithLabelValues(eng.Name(), "error").Inc()
	}
	return out, err
}

// Result is delivered to the preview callback when a submitted render
// finishes without being superseded.
type Result struct {
	Image     *imagemath.Buffer
	Histogram *Histogram
	Metrics   map[string]any
	Err       error
}

// Submit starts an asynchronous preview render, canceling any render still
// in flight. Superseded renders complete silently; only the latest one
// reaches its callback.
func (c *Coordinator) Submit(src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context, deliver func(Result)) {
	c.mu.Lock()
	if c.cancelPrev != nil {
		c.cancelPrev()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelPrev = cancel
	closed := c.closed
	c.mu.Unlock()
	if closed {
		cancel()
		return
	}

	go func() {
		defer cancel()
		out, err := c.Render(ctx, src, cfg, pc)
		if errors.Is(err, context.Canceled) {
			return
		}
		res := Result{Image: out, Err: err}
		if err == nil {
			res.Metrics = pc.CloneMetrics()
			// Accelerated engines bin the histogram on-device and
			// publish it as a metric; only compute it when absent.
			if h, ok := res.Metrics["histogram"].(*Histogram); ok {
				res.Histogram = h
			} else {
				res.Histogram = ComputeHistogram(out)
			}
		}
		deliver(res)
	}()
}

// RenderExport produces the final image for disk output. TIFF and PNG
// exports keep 16-bit depth; JPEG gets the 8-bit path.
func (c *Coordinator) RenderExport(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (image.Image, error) {
	out, err := c.Render(ctx, src, cfg, pc)
	if err != nil {
		return nil, err
	}
	return BufferToImage(out, cfg.Export.Format), nil
}

// Close cancels any in-flight preview and shuts both engines down.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.cancelPrev != nil {
		c.cancelPrev()
		c.cancelPrev = nil
	}
	c.mu.Unlock()

	err := c.cpu.Close()
	if c.gpu != nil {
		if gerr := c.gpu.Close(); err == nil {
			err = gerr
		}
	}
	return err
}

// BufferToImage converts a rendered buffer to a standard image at the bit
// depth the export format supports.
func BufferToImage(buf *imagemath.Buffer, format negative.ExportFormat) image.Image {
	switch format {
	case negative.FormatTIFF, negative.FormatPNG:
		return buf.ToRGBA64()
	default:
		return buf.ToNRGBA()
	}
}

// PreviewThumbnail scales a rendered image down to fit maxEdge, preserving
// aspect ratio.
func PreviewThumbnail(img image.Image, maxEdge uint) image.Image {
	return resize.Thumbnail(maxEdge, maxEdge, img, resize.Lanczos3)
}
