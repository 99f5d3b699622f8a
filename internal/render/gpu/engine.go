//go:build !nogpu

package gpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Vulkan backend registers itself via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/render"
)

// Engine renders the full stage chain on a compute device. Stage outputs
// stay resident between renders; a config change re-dispatches only the
// invalidated stages and everything downstream.
type Engine struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	pipelines *stagePipelines
	pool      *bufferPool

	frame      *frameState
	sourceHash string
	ready      bool
	logger     *slog.Logger
}

// New initializes the GPU engine: vulkan instance, best adapter, device,
// and the per-stage compute pipelines. Returns ErrUnavailable wrapped
// with the cause when no device can be opened.
func New(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{logger: logger}
	if err := e.initGPU(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return e, nil
}

func (e *Engine) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	e.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		e.instance = nil
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		for i := range adapters {
			if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
				selected = &adapters[i]
				break
			}
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		e.instance = nil
		return fmt.Errorf("open device: %w", err)
	}
	e.device = openDev.Device
	e.queue = openDev.Queue

	pipelines, err := newStagePipelines(e.device)
	if err != nil {
		e.device.Destroy()
		e.device = nil
		e.queue = nil
		instance.Destroy()
		e.instance = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	e.pipelines = pipelines
	e.pool = newBufferPool(e.device)
	e.ready = true
	e.logger.Info("gpu engine initialized", "adapter", selected.Info.Name)
	return nil
}

func (e *Engine) Name() string { return "gpu" }

// SetSource drops all resident stage outputs when the source changes.
func (e *Engine) SetSource(hash string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hash == e.sourceHash {
		return
	}
	e.sourceHash = hash
	e.frame = nil
}

// Render executes the stage chain on the device and reads the final
// print back. Any device failure is returned to the caller, which is
// expected to fall back to the CPU engine.
func (e *Engine) Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if render.NeedsTiling(src.W, src.H) {
		return e.renderTiled(ctx, src, cfg, pc)
	}
	return e.renderFrame(ctx, src, cfg, pc)
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return nil
	}
	e.frame = nil
	if e.pool != nil {
		e.pool.destroy()
		e.pool = nil
	}
	if e.pipelines != nil {
		e.pipelines.Close()
		e.pipelines = nil
	}
	if e.device != nil {
		e.device.Destroy()
		e.device = nil
	}
	if e.instance != nil {
		e.instance.Destroy()
		e.instance = nil
	}
	e.queue = nil
	e.ready = false
	return nil
}
